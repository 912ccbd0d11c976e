// Package fees queries candidate networks for current fee, latency and
// health. Quotes are gathered concurrently with a per-network timeout and
// cached briefly; a network that fails or times out is reported with
// Health unknown rather than an error, so estimation failures never
// surface to callers directly.
package fees

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	pay "github.com/thisyearnofear/imperfectcoach-pay"
	"github.com/thisyearnofear/imperfectcoach-pay/logger"
)

// Quoter produces a fee estimate for a single network from genuine RPC
// queries.
type Quoter interface {
	// Network returns the network id the quoter serves.
	Network() string

	// Quote returns the current estimate. Implementations must honor
	// context cancellation.
	Quote(ctx context.Context) (pay.FeeEstimate, error)
}

// Estimator implements pay.FeeSource over a set of per-network quoters.
type Estimator struct {
	quoters map[string]Quoter
	timeout time.Duration
	ttl     time.Duration
	log     logger.Logger

	mu    sync.Mutex
	cache map[string]cachedEstimate

	now func() time.Time
}

type cachedEstimate struct {
	estimate pay.FeeEstimate
	fetched  time.Time
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithTimeout sets the per-network quote timeout (default 3s).
func WithTimeout(d time.Duration) Option {
	return func(e *Estimator) { e.timeout = d }
}

// WithCacheTTL sets the estimate cache window (default 30s).
func WithCacheTTL(d time.Duration) Option {
	return func(e *Estimator) { e.ttl = d }
}

// WithLogger sets the logger (default noop).
func WithLogger(log logger.Logger) Option {
	return func(e *Estimator) { e.log = log }
}

// NewEstimator builds an estimator over the given quoters.
func NewEstimator(quoters []Quoter, opts ...Option) *Estimator {
	e := &Estimator{
		quoters: make(map[string]Quoter, len(quoters)),
		timeout: 3 * time.Second,
		ttl:     30 * time.Second,
		log:     logger.NoopLogger{},
		cache:   make(map[string]cachedEstimate),
		now:     time.Now,
	}
	for _, q := range quoters {
		e.quoters[q.Network()] = q
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimates implements pay.FeeSource: fan-out to every requested
// network, fan-in with per-network timeouts, unknown health on failure.
func (e *Estimator) Estimates(ctx context.Context, networks []string) []pay.FeeEstimate {
	results := make([]pay.FeeEstimate, len(networks))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range networks {
		i, id := i, id

		if est, ok := e.cached(id); ok {
			results[i] = est
			continue
		}

		g.Go(func() error {
			results[i] = e.quote(gctx, id)
			return nil
		})
	}
	// Quoter failures are absorbed into the estimates, never returned.
	_ = g.Wait()

	return results
}

func (e *Estimator) quote(ctx context.Context, network string) pay.FeeEstimate {
	unknown := pay.FeeEstimate{Network: network, Health: pay.HealthUnknown}

	q, ok := e.quoters[network]
	if !ok {
		return unknown
	}

	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	est, err := q.Quote(qctx)
	if err != nil {
		e.log.Warn("fee quote failed", map[string]any{
			"network": network,
			"error":   err.Error(),
		})
		return unknown
	}
	est.Network = network

	e.store(network, est)
	return est
}

func (e *Estimator) cached(network string) (pay.FeeEstimate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.cache[network]
	if !ok || e.now().Sub(c.fetched) > e.ttl {
		return pay.FeeEstimate{}, false
	}
	return c.estimate, true
}

func (e *Estimator) store(network string, est pay.FeeEstimate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache[network] = cachedEstimate{estimate: est, fetched: e.now()}
}
