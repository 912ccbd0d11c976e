package http

import (
	"context"
	"errors"
	"testing"
	"time"

	pay "github.com/thisyearnofear/imperfectcoach-pay"
)

type staticFees struct {
	estimates []pay.FeeEstimate
}

func (s *staticFees) Estimates(context.Context, []string) []pay.FeeEstimate {
	return s.estimates
}

func newEngine(t *testing.T, registry *pay.Registry, fees pay.FeeSource, client *Client, opts ...pay.EngineOption) *pay.Engine {
	t.Helper()
	router, err := pay.NewRouter(registry, fees, pay.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create router: %v", err)
	}
	return pay.NewEngine(router, registry, client, opts...)
}

// The happy path: a premium payment routes to the dramatically cheaper
// network, negotiates the challenge, and settles on the first attempt.
func TestEngine_PaysOnCheapestNetwork(t *testing.T) {
	registry := testRegistry(t)
	server := paidServer(t, "eip155:84532", "solana:devnet")
	defer server.Close()

	client, err := NewClient(registry, WithAdapter(
		newMockAdapter(pay.FamilyAccount, "0xpayer"),
		newMockAdapter(pay.FamilyInstruction, "SoLPayer111"),
	))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	fees := &staticFees{estimates: []pay.FeeEstimate{
		{Network: "eip155:84532", EstimatedFee: 200_000, EstimatedConfirmSeconds: 4, Health: pay.HealthHealthy},
		{Network: "solana:devnet", EstimatedFee: 5_000, EstimatedConfirmSeconds: 1, Health: pay.HealthHealthy},
	}}
	engine := newEngine(t, registry, fees, client)

	req := pay.NewPaymentRequest(50_000, pay.ContextPremium, "SoLPayer111")
	result, err := engine.RouteAndPay(context.Background(), server.URL, req, []byte(`{"exercise":"pull-up"}`))
	if err != nil {
		t.Fatalf("RouteAndPay failed: %v", err)
	}

	if result.Network != "solana:devnet" {
		t.Errorf("Expected the cheap network, got %s", result.Network)
	}
	if result.Decision.Reason != pay.ReasonCostOptimal {
		t.Errorf("Expected cost_optimal, got %s", result.Decision.Reason)
	}
	if result.FallbackUsed {
		t.Error("Expected no fallback")
	}
	if result.TransactionHash == "" {
		t.Error("Expected a settlement transaction hash")
	}
}

// A wallet rejection on the routed network triggers exactly one fallback
// hop to the established default, which settles.
func TestEngine_FallsBackAfterSigningRejection(t *testing.T) {
	registry := testRegistry(t)
	server := paidServer(t, "eip155:84532", "solana:devnet")
	defer server.Close()

	rejecting := newMockAdapter(pay.FamilyInstruction, "SoLPayer111")
	rejecting.signErr = pay.NewPaymentError(pay.ErrCodeSigningRejected, "user declined", pay.ErrSigningRejected)

	client, err := NewClient(registry, WithAdapter(
		newMockAdapter(pay.FamilyAccount, "0xpayer"),
		rejecting,
	))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	fees := &staticFees{estimates: []pay.FeeEstimate{
		{Network: "eip155:84532", EstimatedFee: 200, EstimatedConfirmSeconds: 4, Health: pay.HealthHealthy},
		{Network: "solana:devnet", EstimatedFee: 50, EstimatedConfirmSeconds: 1, Health: pay.HealthHealthy},
	}}

	type record struct {
		hash  string
		payer string
	}
	var recorded []record
	recorder := recorderFunc(func(hash, payer string, amount int64) {
		recorded = append(recorded, record{hash: hash, payer: payer})
	})

	engine := newEngine(t, registry, fees, client, pay.WithLedger(recorder))

	req := pay.NewPaymentRequest(50_000_000, pay.ContextPremium, "0xpayer")
	result, err := engine.RouteAndPay(context.Background(), server.URL, req, nil)
	if err != nil {
		t.Fatalf("RouteAndPay failed: %v", err)
	}

	if !result.FallbackUsed {
		t.Error("Expected FallbackUsed after the rejection")
	}
	if result.Network != "eip155:84532" {
		t.Errorf("Expected settlement on the established default, got %s", result.Network)
	}
	if result.Decision.Reason != pay.ReasonFallback {
		t.Errorf("Expected fallback reason, got %s", result.Decision.Reason)
	}

	if len(recorded) != 1 {
		t.Fatalf("Expected 1 session record, got %d", len(recorded))
	}
	if recorded[0].payer != "0xpayer" {
		t.Errorf("Expected the fallback signer recorded, got %s", recorded[0].payer)
	}
}

// A rejection on an explicitly preferred network surfaces without a
// fallback hop.
func TestEngine_PreferredFailureSurfaces(t *testing.T) {
	registry := testRegistry(t)
	server := paidServer(t, "eip155:84532", "solana:devnet")
	defer server.Close()

	rejecting := newMockAdapter(pay.FamilyInstruction, "SoLPayer111")
	rejecting.signErr = pay.NewPaymentError(pay.ErrCodeSigningRejected, "user declined", pay.ErrSigningRejected)

	client, err := NewClient(registry, WithAdapter(
		newMockAdapter(pay.FamilyAccount, "0xpayer"),
		rejecting,
	))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	fees := &staticFees{estimates: []pay.FeeEstimate{
		{Network: "eip155:84532", EstimatedFee: 200, Health: pay.HealthHealthy},
		{Network: "solana:devnet", EstimatedFee: 50, Health: pay.HealthHealthy},
	}}
	engine := newEngine(t, registry, fees, client)

	req := pay.NewPaymentRequest(50_000_000, pay.ContextPremium, "SoLPayer111")
	req.PreferredNetwork = "solana:devnet"

	_, err = engine.RouteAndPay(context.Background(), server.URL, req, nil)
	if !errors.Is(err, pay.ErrSigningRejected) {
		t.Fatalf("Expected ErrSigningRejected surfaced, got %v", err)
	}
}

// recorderFunc adapts a func to pay.SessionRecorder.
type recorderFunc func(hash, payer string, amount int64)

func (f recorderFunc) Record(hash, payer string, amount int64, _ time.Time) error {
	f(hash, payer, amount)
	return nil
}
