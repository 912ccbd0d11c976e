// Package helpers provides internal HTTP utilities for the payment
// challenge/response protocol.
package helpers

import (
	"encoding/json"
	"net/http"

	pay "github.com/thisyearnofear/imperfectcoach-pay"
	"github.com/thisyearnofear/imperfectcoach-pay/encoding"
)

// Protocol headers.
const (
	// HeaderChain hints the client's chosen network to the server.
	HeaderChain = "X-Chain"

	// HeaderPayment carries the base64 JSON signed authorization.
	HeaderPayment = "X-Payment"

	// HeaderPaymentResponse carries the server's settlement metadata.
	HeaderPaymentResponse = "X-Payment-Response"
)

// ParseChallenges extracts the challenge candidates from a 402 response
// body. Returns ErrChallengeMalformed when the server sent no usable
// scheme.
func ParseChallenges(resp *http.Response) ([]pay.Challenge, error) {
	if resp == nil || resp.Body == nil {
		return nil, pay.NewPaymentError(pay.ErrCodeChallengeMalformed,
			"missing 402 response body", pay.ErrChallengeMalformed)
	}

	var required pay.PaymentRequired
	if err := json.NewDecoder(resp.Body).Decode(&required); err != nil {
		return nil, pay.NewPaymentError(pay.ErrCodeChallengeMalformed,
			"failed to decode payment challenge", err)
	}

	candidates := required.Candidates()
	if len(candidates) == 0 {
		return nil, pay.NewPaymentError(pay.ErrCodeChallengeMalformed,
			"no challenge candidates in 402 response", pay.ErrChallengeMalformed)
	}
	return candidates, nil
}

// SelectCandidate picks the challenge matching the routed network.
// Falling back to the first candidate is deliberate leniency: servers
// may only support a subset of the client's networks.
func SelectCandidate(candidates []pay.Challenge, networkID string) pay.Challenge {
	for _, c := range candidates {
		if c.Network == networkID {
			return c
		}
	}
	return candidates[0]
}

// BuildPaymentHeader creates the X-Payment header value.
func BuildPaymentHeader(auth pay.SignedAuthorization) (string, error) {
	return encoding.EncodeAuthorization(auth)
}

// ParseSettlement extracts settlement metadata from an
// X-Payment-Response header value. Returns nil if absent or
// unparseable.
func ParseSettlement(headerValue string) *pay.Settlement {
	if headerValue == "" {
		return nil
	}
	s, err := encoding.DecodeSettlement(headerValue)
	if err != nil {
		return nil
	}
	return &s
}

// SettlementFromBody pulls the transaction reference out of a business
// payload that inlines it. The payload is otherwise opaque to the core.
func SettlementFromBody(body []byte) *pay.Settlement {
	var probe struct {
		TransactionHash string `json:"transactionHash"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.TransactionHash == "" {
		return nil
	}
	return &pay.Settlement{Success: true, Transaction: probe.TransactionHash}
}
