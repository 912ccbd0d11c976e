// Package pay implements the payment negotiation core for Imperfect Coach:
// chain selection across independent settlement networks, the 402
// challenge/response protocol client, per-family signing adapters, and the
// retry/fallback orchestration around a metered request.
//
// The surrounding product (UI, leaderboard display, feature gating screens)
// calls into this package with a PaymentRequest and gets back a Result plus a
// settlement receipt; everything else is opaque to the core.
package pay

import (
	"time"

	"github.com/google/uuid"
)

// SigningFamily is the class of signature scheme a network uses.
type SigningFamily string

const (
	// FamilyAccount covers EVM-like networks that sign arbitrary UTF-8
	// messages with an account key (EIP-191 style).
	FamilyAccount SigningFamily = "account"

	// FamilyInstruction covers account-model chains (Solana) where the
	// same key also signs value-transfer instructions directly.
	FamilyInstruction SigningFamily = "instruction"
)

// UsageContext describes what the caller is paying for.
type UsageContext string

const (
	ContextMicro   UsageContext = "micro"
	ContextPremium UsageContext = "premium"
	ContextAgent   UsageContext = "agent"
	ContextBooking UsageContext = "booking"
)

// Health is the observed state of a settlement network.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthUnknown  Health = "unknown"
)

// Reason records why the routing engine picked a network.
type Reason string

const (
	ReasonCostOptimal    Reason = "cost_optimal"
	ReasonUserPreference Reason = "user_preference"
	ReasonPrivacy        Reason = "privacy"
	ReasonContextDefault Reason = "context_default"
	ReasonFallback       Reason = "fallback"
)

// PaymentRequest is the caller's intent to pay for a metered operation.
// It is created once, never mutated, and consumed by exactly one
// negotiation (the nonce ties it to a single flow).
type PaymentRequest struct {
	// Amount is the payment amount in the smallest unit of the
	// settlement asset.
	Amount int64

	// Context is the usage context being paid for.
	Context UsageContext

	// Payer is the paying wallet's public identity.
	Payer string

	// Timestamp is when the request was created.
	Timestamp time.Time

	// Nonce uniquely identifies this logical payment. Concurrent calls
	// with the same nonce share one in-flight negotiation.
	Nonce string

	// PreferredNetwork optionally pins the network choice. Failures on an
	// explicit preference are surfaced without a fallback hop.
	PreferredNetwork string

	// PrivacyRequested asks for a network with confidential settlement.
	PrivacyRequested bool
}

// NewPaymentRequest builds a request with a fresh nonce and timestamp.
func NewPaymentRequest(amount int64, context UsageContext, payer string) PaymentRequest {
	return PaymentRequest{
		Amount:    amount,
		Context:   context,
		Payer:     payer,
		Timestamp: time.Now().UTC(),
		Nonce:     uuid.NewString(),
	}
}

// FeeEstimate is a point-in-time quote for settling on one network.
// Estimates are cached briefly and never persisted.
type FeeEstimate struct {
	// Network is the network identifier the quote applies to.
	Network string `json:"network"`

	// EstimatedFee is the expected fee in atomic units of the settlement
	// asset (same unit as PaymentRequest.Amount).
	EstimatedFee int64 `json:"estimatedFee"`

	// EstimatedConfirmSeconds is the expected confirmation latency.
	EstimatedConfirmSeconds int `json:"estimatedConfirmSeconds"`

	// Health is the network's observed health at quote time.
	Health Health `json:"health"`
}

// RoutingDecision is the audit trail for a network selection. It is
// produced once per request and immutable after creation.
type RoutingDecision struct {
	// Selected is the chosen network.
	Selected Network

	// Reason is why the network was picked.
	Reason Reason

	// ChosenEstimate is the estimate for the selected network.
	ChosenEstimate FeeEstimate

	// Alternatives holds the estimates for every candidate considered.
	Alternatives []FeeEstimate
}

// Challenge is the server-issued description of a required payment.
// It is received, never generated client-side, and must be signed over the
// canonical serialization of exactly these fields.
type Challenge struct {
	// Scheme is the payment scheme identifier (e.g. "exact").
	Scheme string `json:"scheme"`

	// Network is the settlement network the server will accept on.
	Network string `json:"network"`

	// Asset is the settlement asset (contract or mint address).
	Asset string `json:"asset"`

	// Amount is the required amount in atomic units, as a string.
	Amount string `json:"amount"`

	// PayTo is the recipient address.
	PayTo string `json:"payTo"`

	// Nonce uniquely ties an authorization to this challenge.
	Nonce string `json:"nonce"`

	// Timestamp is the server's issue time (unix seconds).
	Timestamp int64 `json:"timestamp"`

	// Extra carries scheme-specific additional data.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// PaymentRequired is the 402 response body. Servers send the candidate
// challenges under "accepts"; older deployments used "schemes".
type PaymentRequired struct {
	Accepts []Challenge `json:"accepts"`

	// Schemes is the legacy field name for Accepts.
	Schemes []Challenge `json:"schemes,omitempty"`

	// Error is an optional human-readable message from the server.
	Error string `json:"error,omitempty"`
}

// Candidates returns the challenge list regardless of which key the
// server used.
func (p *PaymentRequired) Candidates() []Challenge {
	if len(p.Accepts) > 0 {
		return p.Accepts
	}
	return p.Schemes
}

// SignedAuthorization is a challenge plus the payer's signature over its
// canonical serialization. Single-use: the nonce ties it to one challenge
// and the session ledger rejects a second submission with the same hash.
type SignedAuthorization struct {
	Challenge

	// Signature is the hex-encoded signature over the canonical message.
	Signature string `json:"signature"`

	// Payer is the signing wallet's public identity.
	Payer string `json:"payer"`
}

// Settlement is the opaque settlement metadata returned by the server
// after a successful retry.
type Settlement struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transactionHash,omitempty"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
}

// Session is a time-boxed access grant recorded after a verified
// successful payment. Feature-gating collaborators read sessions to
// decide access without re-charging.
type Session struct {
	// AuthorizationHash is the idempotency key derived from the signed
	// authorization.
	AuthorizationHash string `json:"authorizationHash"`

	// Payer is the paying wallet's identity.
	Payer string `json:"payer"`

	// IssuedAt is when the session was recorded.
	IssuedAt time.Time `json:"issuedAt"`

	// ExpiresAt is when the grant lapses. A session with
	// ExpiresAt <= now is expired; the boundary instant counts as
	// expired.
	ExpiresAt time.Time `json:"expiresAt"`

	// Amount is the paid amount in atomic units.
	Amount int64 `json:"amount"`
}

// Negotiation is one completed challenge/response exchange, as reported
// by the protocol client.
type Negotiation struct {
	// StatusCode is the final HTTP status.
	StatusCode int

	// Body is the final response body.
	Body []byte

	// Settlement is the settlement metadata, if the server sent any.
	Settlement *Settlement

	// Authorization is the signed authorization that was attached, nil
	// when the first response was not a 402.
	Authorization *SignedAuthorization

	// AuthorizationHash is the idempotency key for Authorization.
	AuthorizationHash string
}

// Result is the outcome of a full routeAndPay flow.
type Result struct {
	// Success reports whether the server accepted the payment and
	// returned the business payload.
	Success bool

	// Network is the network the payment finally settled on.
	Network string

	// TransactionHash is the settlement reference, if the server
	// provided one. Consumed opaquely for display and audit.
	TransactionHash string

	// FallbackUsed reports whether the fallback hop was taken.
	FallbackUsed bool

	// Decision is the routing decision for the successful attempt.
	Decision RoutingDecision

	// Body is the business payload from the final 2xx response.
	Body []byte
}
