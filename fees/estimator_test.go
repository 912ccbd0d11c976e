package fees

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	pay "github.com/thisyearnofear/imperfectcoach-pay"
)

// fakeQuoter scripts a quote result per network.
type fakeQuoter struct {
	network  string
	estimate pay.FeeEstimate
	err      error
	delay    time.Duration
	calls    atomic.Int64
}

func (f *fakeQuoter) Network() string {
	return f.network
}

func (f *fakeQuoter) Quote(ctx context.Context) (pay.FeeEstimate, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return pay.FeeEstimate{}, ctx.Err()
		}
	}
	if f.err != nil {
		return pay.FeeEstimate{}, f.err
	}
	return f.estimate, nil
}

func TestEstimator_Estimates(t *testing.T) {
	evm := &fakeQuoter{
		network:  "eip155:84532",
		estimate: pay.FeeEstimate{EstimatedFee: 5_000, EstimatedConfirmSeconds: 4, Health: pay.HealthHealthy},
	}
	svm := &fakeQuoter{
		network:  "solana:devnet",
		estimate: pay.FeeEstimate{EstimatedFee: 200, EstimatedConfirmSeconds: 1, Health: pay.HealthHealthy},
	}
	e := NewEstimator([]Quoter{evm, svm})

	estimates := e.Estimates(context.Background(), []string{"eip155:84532", "solana:devnet"})
	if len(estimates) != 2 {
		t.Fatalf("Expected 2 estimates, got %d", len(estimates))
	}

	// Result order follows the request order.
	if estimates[0].Network != "eip155:84532" || estimates[0].EstimatedFee != 5_000 {
		t.Errorf("Unexpected first estimate: %+v", estimates[0])
	}
	if estimates[1].Network != "solana:devnet" || estimates[1].EstimatedFee != 200 {
		t.Errorf("Unexpected second estimate: %+v", estimates[1])
	}
}

func TestEstimator_FailureIsUnknown(t *testing.T) {
	ok := &fakeQuoter{
		network:  "eip155:84532",
		estimate: pay.FeeEstimate{EstimatedFee: 5_000, Health: pay.HealthHealthy},
	}
	bad := &fakeQuoter{
		network: "solana:devnet",
		err:     errors.New("connection refused"),
	}
	e := NewEstimator([]Quoter{ok, bad})

	estimates := e.Estimates(context.Background(), []string{"eip155:84532", "solana:devnet"})

	if estimates[0].Health != pay.HealthHealthy {
		t.Errorf("Expected healthy first estimate, got %s", estimates[0].Health)
	}
	if estimates[1].Health != pay.HealthUnknown {
		t.Errorf("Expected unknown health for failed quoter, got %s", estimates[1].Health)
	}
	if estimates[1].Network != "solana:devnet" {
		t.Errorf("Failed estimate must still carry its network id, got %q", estimates[1].Network)
	}
}

func TestEstimator_TimeoutIsUnknown(t *testing.T) {
	slow := &fakeQuoter{
		network:  "eip155:84532",
		estimate: pay.FeeEstimate{EstimatedFee: 5_000, Health: pay.HealthHealthy},
		delay:    200 * time.Millisecond,
	}
	e := NewEstimator([]Quoter{slow}, WithTimeout(20*time.Millisecond))

	estimates := e.Estimates(context.Background(), []string{"eip155:84532"})
	if estimates[0].Health != pay.HealthUnknown {
		t.Errorf("Expected unknown health on timeout, got %s", estimates[0].Health)
	}
}

func TestEstimator_UnconfiguredNetworkIsUnknown(t *testing.T) {
	e := NewEstimator(nil)

	estimates := e.Estimates(context.Background(), []string{"eip155:84532"})
	if estimates[0].Health != pay.HealthUnknown {
		t.Errorf("Expected unknown health without a quoter, got %s", estimates[0].Health)
	}
}

func TestEstimator_Cache(t *testing.T) {
	q := &fakeQuoter{
		network:  "eip155:84532",
		estimate: pay.FeeEstimate{EstimatedFee: 5_000, Health: pay.HealthHealthy},
	}
	e := NewEstimator([]Quoter{q}, WithCacheTTL(30*time.Second))

	now := time.Now()
	e.now = func() time.Time { return now }

	e.Estimates(context.Background(), []string{"eip155:84532"})
	e.Estimates(context.Background(), []string{"eip155:84532"})
	if got := q.calls.Load(); got != 1 {
		t.Errorf("Expected 1 quote within the cache window, got %d", got)
	}

	// Past the TTL the quoter is consulted again.
	now = now.Add(31 * time.Second)
	e.Estimates(context.Background(), []string{"eip155:84532"})
	if got := q.calls.Load(); got != 2 {
		t.Errorf("Expected a fresh quote after the TTL, got %d", got)
	}
}

func TestEstimator_FailuresNotCached(t *testing.T) {
	q := &fakeQuoter{
		network: "eip155:84532",
		err:     errors.New("connection refused"),
	}
	e := NewEstimator([]Quoter{q})

	e.Estimates(context.Background(), []string{"eip155:84532"})
	e.Estimates(context.Background(), []string{"eip155:84532"})
	if got := q.calls.Load(); got != 2 {
		t.Errorf("Expected failures to bypass the cache, got %d calls", got)
	}
}
