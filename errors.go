package pay

import "errors"

// Sentinel errors for the payment negotiation core.
var (
	// ErrNoWalletConnected indicates no wallet capability is available
	// for the required signing family.
	ErrNoWalletConnected = errors.New("pay: no wallet connected")

	// ErrUnsupportedOperation indicates the request asked for something
	// no configured network supports (e.g. confidential settlement).
	ErrUnsupportedOperation = errors.New("pay: unsupported operation")

	// ErrChallengeMalformed indicates the server sent no usable scheme.
	ErrChallengeMalformed = errors.New("pay: malformed payment challenge")

	// ErrSigningRejected indicates the wallet declined or failed to sign.
	ErrSigningRejected = errors.New("pay: signing rejected")

	// ErrSettlementRejected indicates the server's final response after
	// the paid retry was not 2xx.
	ErrSettlementRejected = errors.New("pay: settlement rejected")

	// ErrNetworkDegraded excludes a candidate network internally; it only
	// surfaces when degradation eliminates every option.
	ErrNetworkDegraded = errors.New("pay: network degraded")

	// ErrUserCancelled indicates the caller aborted the flow, typically
	// by dismissing a wallet approval prompt.
	ErrUserCancelled = errors.New("pay: cancelled by user")

	// ErrUnknownNetwork indicates a network id absent from the registry.
	ErrUnknownNetwork = errors.New("pay: unknown network")

	// ErrInvalidAmount indicates a non-positive or unparseable amount.
	ErrInvalidAmount = errors.New("pay: invalid amount")
)

// ErrorCode classifies payment errors for programmatic handling.
type ErrorCode string

const (
	ErrCodeNoWallet             ErrorCode = "NO_WALLET_CONNECTED"
	ErrCodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"
	ErrCodeChallengeMalformed   ErrorCode = "CHALLENGE_MALFORMED"
	ErrCodeSigningRejected      ErrorCode = "SIGNING_REJECTED"
	ErrCodeSettlementRejected   ErrorCode = "SETTLEMENT_REJECTED"
	ErrCodeNetworkDegraded      ErrorCode = "NETWORK_DEGRADED"
	ErrCodeUserCancelled        ErrorCode = "USER_CANCELLED"
	ErrCodeUnknownNetwork       ErrorCode = "UNKNOWN_NETWORK"
	ErrCodeInvalidAmount        ErrorCode = "INVALID_AMOUNT"
)

// PaymentError provides structured error information.
type PaymentError struct {
	// Code is the error code for programmatic handling.
	Code ErrorCode

	// Message is the human-readable error message.
	Message string

	// Details contains additional error context.
	Details map[string]interface{}

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a PaymentError with the given code and message.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// WithDetails adds additional context to the error.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}
