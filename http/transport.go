// Package http implements the challenge/response protocol client as an
// http.RoundTripper: initial request with a network hint, 402 challenge
// parsing, canonical-message signing through the per-family adapters, and
// a single retry with the authorization attached.
package http

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	pay "github.com/thisyearnofear/imperfectcoach-pay"
	"github.com/thisyearnofear/imperfectcoach-pay/encoding"
	"github.com/thisyearnofear/imperfectcoach-pay/http/internal/helpers"
)

// FlowState names the protocol client's position in the exchange; it is
// attached to errors so callers can tell where a flow died.
type FlowState string

const (
	StateIdle              FlowState = "Idle"
	StateRequesting        FlowState = "Requesting"
	StateChallengeReceived FlowState = "ChallengeReceived"
	StateSigning           FlowState = "Signing"
	StateRetrying          FlowState = "Retrying"
	StateSettled           FlowState = "Settled"
	StateFailed            FlowState = "Failed"
)

// Re-exported header names for callers that set or inspect them.
const (
	HeaderChain           = helpers.HeaderChain
	HeaderPayment         = helpers.HeaderPayment
	HeaderPaymentResponse = helpers.HeaderPaymentResponse
)

// PaymentTransport is a RoundTripper that negotiates 402 challenges.
// The flow per request is strictly sequential: the signed authorization
// depends on the exact challenge received, so there is no concurrency
// inside one exchange, and a second 402 after payment is terminal.
//
// The routed network is read from the request's X-Chain header, which
// the orchestrator (or caller) sets before sending.
type PaymentTransport struct {
	// Base is the underlying RoundTripper (http.DefaultTransport when
	// nil).
	Base http.RoundTripper

	// Registry resolves challenge networks to their signing family.
	Registry *pay.Registry

	// Adapters holds the signing adapter per family.
	Adapters pay.AdapterSet

	// OnPaymentAttempt is called when a payment attempt is made.
	OnPaymentAttempt pay.PaymentCallback

	// OnPaymentSuccess is called when the paid retry settles.
	OnPaymentSuccess pay.PaymentCallback

	// OnPaymentFailure is called when the exchange fails.
	OnPaymentFailure pay.PaymentCallback
}

// trace captures the exchange's progress for the orchestrator: the
// state reached, the challenge selected, and the authorization that was
// attached. Attached to the request context by Negotiate.
type trace struct {
	state             FlowState
	challenge         *pay.Challenge
	authorization     *pay.SignedAuthorization
	authorizationHash string
}

type traceKey struct{}

func withTrace(ctx context.Context, tr *trace) context.Context {
	return context.WithValue(ctx, traceKey{}, tr)
}

func traceFrom(ctx context.Context) *trace {
	tr, _ := ctx.Value(traceKey{}).(*trace)
	return tr
}

// RoundTrip implements http.RoundTripper. Any non-402 first response
// ends the flow immediately; the response is handed back untouched.
func (t *PaymentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	tr := traceFrom(req.Context())
	setState := func(s FlowState) {
		if tr != nil {
			tr.state = s
		}
	}

	first, err := cloneWithBody(req)
	if err != nil {
		return nil, err
	}

	// Requesting.
	setState(StateRequesting)
	resp, err := base.RoundTrip(first)
	if err != nil {
		setState(StateFailed)
		return nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		setState(StateSettled)
		return resp, nil
	}

	// ChallengeReceived.
	setState(StateChallengeReceived)
	candidates, err := helpers.ParseChallenges(resp)
	resp.Body.Close()
	if err != nil {
		setState(StateFailed)
		return nil, stateErr(err, StateChallengeReceived)
	}

	challenge := helpers.SelectCandidate(candidates, req.Header.Get(HeaderChain))
	if tr != nil {
		tr.challenge = &challenge
	}

	network, err := t.Registry.Lookup(challenge.Network)
	if err != nil {
		setState(StateFailed)
		return nil, stateErr(err, StateChallengeReceived)
	}

	adapter, err := t.Adapters.For(network.Family)
	if err != nil {
		setState(StateFailed)
		return nil, stateErr(err, StateSigning)
	}

	start := time.Now()
	t.emit(t.OnPaymentAttempt, pay.PaymentEvent{
		Type:      pay.PaymentEventAttempt,
		Timestamp: start,
		Nonce:     challenge.Nonce,
		Network:   challenge.Network,
		Payer:     adapter.Identity(),
	})

	// Signing: the canonical bytes are signed exactly as serialized;
	// re-deriving them must be byte-identical or the server's check
	// fails.
	setState(StateSigning)
	canonical := encoding.CanonicalMessage(challenge)
	sig, err := adapter.Sign(req.Context(), canonical)
	if err != nil {
		setState(StateFailed)
		t.fail(req, challenge, err, start)
		return nil, stateErr(err, StateSigning)
	}

	auth := pay.SignedAuthorization{
		Challenge: challenge,
		Signature: "0x" + hex.EncodeToString(sig),
		Payer:     adapter.Identity(),
	}
	if tr != nil {
		tr.authorization = &auth
		tr.authorizationHash = encoding.AuthorizationHash(auth)
	}

	header, err := helpers.BuildPaymentHeader(auth)
	if err != nil {
		setState(StateFailed)
		t.fail(req, challenge, err, start)
		return nil, stateErr(err, StateSigning)
	}

	// Retrying: resend the original body with the authorization
	// attached. One shot only; a second 402 here would loop forever.
	setState(StateRetrying)
	retry, err := cloneWithBody(req)
	if err != nil {
		return nil, err
	}
	retry.Header.Set(HeaderPayment, header)
	retry.Header.Set(HeaderChain, challenge.Network)

	final, err := base.RoundTrip(retry)
	duration := time.Since(start)
	if err != nil {
		setState(StateFailed)
		t.fail(req, challenge, err, start)
		return nil, err
	}

	if final.StatusCode >= 200 && final.StatusCode <= 299 {
		setState(StateSettled)
	} else {
		setState(StateFailed)
	}

	if settlement := helpers.ParseSettlement(final.Header.Get(HeaderPaymentResponse)); settlement != nil && settlement.Success {
		t.emit(t.OnPaymentSuccess, pay.PaymentEvent{
			Type:        pay.PaymentEventSuccess,
			Timestamp:   time.Now(),
			Nonce:       challenge.Nonce,
			Network:     challenge.Network,
			Payer:       auth.Payer,
			Transaction: settlement.Transaction,
			Duration:    duration,
		})
	}

	return final, nil
}

func (t *PaymentTransport) fail(req *http.Request, challenge pay.Challenge, err error, start time.Time) {
	t.emit(t.OnPaymentFailure, pay.PaymentEvent{
		Type:      pay.PaymentEventFailure,
		Timestamp: time.Now(),
		Nonce:     challenge.Nonce,
		Network:   challenge.Network,
		Error:     err,
		Duration:  time.Since(start),
	})
}

func (t *PaymentTransport) emit(cb pay.PaymentCallback, ev pay.PaymentEvent) {
	if cb != nil {
		cb(ev)
	}
}

// cloneWithBody clones a request with a replayable body. The negotiation
// sends the caller's body up to twice, so requests must carry GetBody
// (http.NewRequest sets it for byte and string readers).
func cloneWithBody(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("payhttp: request body is not replayable")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("payhttp: reread request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

func stateErr(err error, state FlowState) error {
	var perr *pay.PaymentError
	if errors.As(err, &perr) {
		return perr.WithDetails("state", string(state))
	}
	return err
}

// ReadBody drains and returns a response body, closing it.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
