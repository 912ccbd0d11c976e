package pay

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/thisyearnofear/imperfectcoach-pay/logger"
	"github.com/thisyearnofear/imperfectcoach-pay/metrics"
)

// Negotiator runs one challenge/response exchange against the paid
// resource server on the given network. Implemented by the http
// subpackage's Client.
type Negotiator interface {
	Negotiate(ctx context.Context, endpoint string, body []byte, networkID string) (*Negotiation, error)
}

// SessionRecorder records completed authorizations. Implemented by the
// session subpackage's Ledger; nil disables recording.
type SessionRecorder interface {
	Record(authorizationHash, payer string, amount int64, expiresAt time.Time) error
}

// Engine is the retry/fallback orchestrator: it routes, negotiates,
// falls back at most once to the established default network, and
// records the session on success.
type Engine struct {
	router     *Router
	registry   *Registry
	negotiator Negotiator
	ledger     SessionRecorder

	log        logger.Logger
	metrics    metrics.Recorder
	sessionTTL time.Duration
	timeouts   TimeoutConfig

	// inflight deduplicates negotiations: a second call for the same
	// nonce waits for and reuses the first call's result.
	inflight singleflight.Group
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLedger enables session recording on success.
func WithLedger(ledger SessionRecorder) EngineOption {
	return func(e *Engine) { e.ledger = ledger }
}

// WithLogger sets the logger (default noop).
func WithLogger(log logger.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// WithMetrics sets the metrics recorder (default noop).
func WithMetrics(rec metrics.Recorder) EngineOption {
	return func(e *Engine) { e.metrics = rec }
}

// WithSessionTTL sets the access-grant lifetime recorded on success
// (default 1h).
func WithSessionTTL(d time.Duration) EngineOption {
	return func(e *Engine) { e.sessionTTL = d }
}

// NewEngine wires the orchestrator.
func NewEngine(router *Router, registry *Registry, negotiator Negotiator, opts ...EngineOption) *Engine {
	e := &Engine{
		router:     router,
		registry:   registry,
		negotiator: negotiator,
		log:        logger.NoopLogger{},
		metrics:    metrics.NoopRecorder{},
		sessionTTL: time.Hour,
		timeouts:   router.cfg.Timeouts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RouteAndPay is the single entry point callers use: select a network,
// negotiate the payment, fall back once if allowed, and report the
// outcome. Failures on an explicit preferred network, and failures on
// the fallback hop itself, surface unmodified.
func (e *Engine) RouteAndPay(ctx context.Context, endpoint string, req PaymentRequest, body []byte) (*Result, error) {
	v, err, _ := e.inflight.Do(req.Nonce, func() (interface{}, error) {
		return e.routeAndPay(ctx, endpoint, req, body)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (e *Engine) routeAndPay(ctx context.Context, endpoint string, req PaymentRequest, body []byte) (*Result, error) {
	decision, err := e.router.SelectNetwork(ctx, req)
	if err != nil {
		return nil, err
	}

	result, primaryErr := e.attempt(ctx, endpoint, req, body, decision)
	if primaryErr == nil {
		return result, nil
	}

	if cancelled(ctx, primaryErr) {
		return nil, NewPaymentError(ErrCodeUserCancelled, "payment flow cancelled", ErrUserCancelled)
	}

	// One fallback hop, never more: bounded latency, and users should
	// not face a third signature prompt. No hop when the failed network
	// was the caller's explicit preference, or already the default.
	established := e.registry.Established()
	if decision.Selected.ID == req.PreferredNetwork || decision.Selected.ID == established.ID {
		return nil, primaryErr
	}

	e.log.Warn("falling back to established network", map[string]any{
		"nonce":  req.Nonce,
		"from":   decision.Selected.ID,
		"to":     established.ID,
		"reason": errString(primaryErr),
	})
	e.metrics.IncCounter(string(PaymentEventFallback), map[string]string{"network": established.ID})

	fallback := RoutingDecision{
		Selected:     established,
		Reason:       ReasonFallback,
		Alternatives: append([]FeeEstimate{decision.ChosenEstimate}, decision.Alternatives...),

		// Unknown until the primary decision's estimates say otherwise;
		// the audit trail must never show a blank network.
		ChosenEstimate: FeeEstimate{Network: established.ID, Health: HealthUnknown},
	}
	for _, est := range fallback.Alternatives {
		if est.Network == established.ID {
			fallback.ChosenEstimate = est
			break
		}
	}

	result, fallbackErr := e.attempt(ctx, endpoint, req, body, fallback)
	if fallbackErr != nil {
		if cancelled(ctx, fallbackErr) {
			return nil, NewPaymentError(ErrCodeUserCancelled, "payment flow cancelled", ErrUserCancelled)
		}
		return nil, fallbackErr
	}
	result.FallbackUsed = true
	return result, nil
}

// attempt runs one full negotiation on one network and logs its outcome.
func (e *Engine) attempt(ctx context.Context, endpoint string, req PaymentRequest, body []byte, decision RoutingDecision) (*Result, error) {
	networkID := decision.Selected.ID
	start := time.Now()

	actx := ctx
	if e.timeouts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, e.timeouts.RequestTimeout)
		defer cancel()
	}

	neg, err := e.negotiator.Negotiate(actx, endpoint, body, networkID)
	elapsed := time.Since(start)
	e.metrics.ObserveLatency("negotiate", elapsed, map[string]string{"network": networkID})

	if err != nil {
		e.log.Warn("payment attempt failed", map[string]any{
			"nonce":   req.Nonce,
			"network": networkID,
			"reason":  errString(err),
			"elapsed": elapsed.String(),
		})
		e.metrics.IncCounter(string(PaymentEventFailure), map[string]string{"network": networkID})
		return nil, err
	}

	if neg.StatusCode < 200 || neg.StatusCode > 299 {
		err := NewPaymentError(ErrCodeSettlementRejected, "server rejected settlement", ErrSettlementRejected).
			WithDetails("status", neg.StatusCode).
			WithDetails("network", networkID)
		e.log.Warn("payment attempt rejected", map[string]any{
			"nonce":   req.Nonce,
			"network": networkID,
			"status":  neg.StatusCode,
			"elapsed": elapsed.String(),
		})
		e.metrics.IncCounter(string(PaymentEventFailure), map[string]string{"network": networkID})
		return nil, err
	}

	e.log.Info("payment settled", map[string]any{
		"nonce":   req.Nonce,
		"network": networkID,
		"reason":  string(decision.Reason),
		"elapsed": elapsed.String(),
	})
	e.metrics.IncCounter(string(PaymentEventSuccess), map[string]string{"network": networkID})

	result := &Result{
		Success:  true,
		Network:  networkID,
		Decision: decision,
		Body:     neg.Body,
	}
	if neg.Settlement != nil {
		result.TransactionHash = neg.Settlement.Transaction
	}

	e.record(req, neg)

	return result, nil
}

// record stores the session grant. Recording failures are logged, not
// surfaced: the payment already settled.
func (e *Engine) record(req PaymentRequest, neg *Negotiation) {
	if e.ledger == nil || neg.Authorization == nil {
		return
	}
	expiresAt := time.Now().Add(e.sessionTTL)
	if err := e.ledger.Record(neg.AuthorizationHash, neg.Authorization.Payer, req.Amount, expiresAt); err != nil {
		e.log.Error("failed to record session", map[string]any{
			"nonce": req.Nonce,
			"payer": neg.Authorization.Payer,
			"error": err.Error(),
		})
	}
}

// cancelled reports user dismissal. Deadline expiry is an ordinary
// failure, not a cancellation: only an explicit cancel (or the wallet's
// own rejection sentinel) maps to ErrUserCancelled.
func cancelled(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.Canceled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrUserCancelled)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
