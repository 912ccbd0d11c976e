package pay

import "time"

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	// PaymentEventAttempt indicates a payment is being attempted.
	PaymentEventAttempt PaymentEventType = "attempt"

	// PaymentEventSuccess indicates a payment succeeded.
	PaymentEventSuccess PaymentEventType = "success"

	// PaymentEventFailure indicates a payment failed.
	PaymentEventFailure PaymentEventType = "failure"

	// PaymentEventFallback indicates the flow is retrying against the
	// established default network.
	PaymentEventFallback PaymentEventType = "fallback"
)

// PaymentEvent represents a payment lifecycle event.
type PaymentEvent struct {
	// Type is the event type.
	Type PaymentEventType

	// Timestamp is when the event occurred.
	Timestamp time.Time

	// Nonce identifies the logical payment.
	Nonce string

	// Network is the settlement network attempted.
	Network string

	// Reason is the routing reason for the attempt.
	Reason Reason

	// Amount is the payment amount in atomic units.
	Amount int64

	// Payer is the signing wallet identity.
	Payer string

	// Transaction is the settlement reference (available on success).
	Transaction string

	// Error contains failure details (available on failure).
	Error error

	// Duration is the elapsed time for the attempt.
	Duration time.Duration
}

// PaymentCallback handles payment events. Callbacks are invoked
// synchronously during the flow, so they should be fast; spawn a
// goroutine for anything slow.
type PaymentCallback func(PaymentEvent)
