package pay

import (
	"context"

	"github.com/shopspring/decimal"
)

// FeeSource supplies fee estimates for candidate networks. Estimates for
// all networks are gathered concurrently with a per-network timeout; a
// network that fails or times out comes back with Health unknown rather
// than an error.
type FeeSource interface {
	Estimates(ctx context.Context, networks []string) []FeeEstimate
}

// Router selects one settlement network per request and records the
// alternatives considered and the reason.
type Router struct {
	registry *Registry
	fees     FeeSource
	cfg      Config
}

// NewRouter builds a routing engine over the given registry and fee
// source.
func NewRouter(registry *Registry, fees FeeSource, cfg Config) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Router{registry: registry, fees: fees, cfg: cfg}, nil
}

// SelectNetwork applies the decision rules in order, first match wins:
//
//  1. micro amount and a healthy cheapest network -> cost_optimal
//  2. viable explicit preference -> user_preference
//  3. privacy requested -> the confidential network, or fail
//  4. agent context with a healthy established network -> context_default
//  5. cheapest viable network, else the established default -> fallback
//
// It never blocks longer than the fee source's per-network timeout allows.
func (r *Router) SelectNetwork(ctx context.Context, req PaymentRequest) (RoutingDecision, error) {
	if req.Amount <= 0 {
		return RoutingDecision{}, NewPaymentError(ErrCodeInvalidAmount, "payment amount must be positive", ErrInvalidAmount)
	}

	// Estimates are gathered concurrently, so the per-network budget
	// bounds the whole gather.
	ectx, cancel := context.WithTimeout(ctx, r.cfg.Timeouts.EstimateTimeout)
	defer cancel()

	estimates := r.fees.Estimates(ectx, r.registry.IDs())
	byNetwork := make(map[string]FeeEstimate, len(estimates))
	for _, est := range estimates {
		byNetwork[est.Network] = est
	}

	// Rule 1: micro payments go to the cheapest healthy network.
	if req.Amount < r.cfg.MicroThreshold {
		if best, ok := cheapest(estimates, func(e FeeEstimate) bool { return e.Health == HealthHealthy }); ok {
			return r.decide(best.Network, ReasonCostOptimal, best, estimates)
		}
	}

	// Rule 2: honor a viable explicit preference.
	if req.PreferredNetwork != "" {
		if _, err := r.registry.Lookup(req.PreferredNetwork); err != nil {
			return RoutingDecision{}, err
		}
		if est, ok := byNetwork[req.PreferredNetwork]; ok && r.viable(est, req.Amount) {
			return r.decide(req.PreferredNetwork, ReasonUserPreference, est, estimates)
		}
	}

	// Rule 3: privacy requires the confidential network.
	if req.PrivacyRequested {
		conf, ok := r.registry.Confidential()
		if !ok {
			return RoutingDecision{}, NewPaymentError(ErrCodeUnsupportedOperation,
				"no configured network supports confidential settlement", ErrUnsupportedOperation)
		}
		return r.decide(conf.ID, ReasonPrivacy, byNetwork[conf.ID], estimates)
	}

	// Rule 4: agent flows default to the established network when healthy.
	established := r.registry.Established()
	if req.Context == ContextAgent {
		if est, ok := byNetwork[established.ID]; ok && est.Health == HealthHealthy {
			return r.decide(established.ID, ReasonContextDefault, est, estimates)
		}
	}

	// Rule 5: cheapest viable network, else the established default as
	// last resort regardless of fee.
	if best, ok := cheapest(estimates, func(e FeeEstimate) bool { return r.viable(e, req.Amount) }); ok {
		return r.decide(best.Network, ReasonCostOptimal, best, estimates)
	}
	return r.decide(established.ID, ReasonFallback, byNetwork[established.ID], estimates)
}

// viable reports whether a network can carry this payment: healthy, and
// fee under the configured share of the amount. Unknown health (timed
// out or failed probes) does not qualify.
func (r *Router) viable(est FeeEstimate, amount int64) bool {
	if est.Health != HealthHealthy {
		return false
	}
	ratio := decimal.NewFromInt(est.EstimatedFee).Div(decimal.NewFromInt(amount))
	return ratio.LessThan(decimal.NewFromFloat(r.cfg.ViableFeeRatio))
}

func (r *Router) decide(networkID string, reason Reason, chosen FeeEstimate, all []FeeEstimate) (RoutingDecision, error) {
	n, err := r.registry.Lookup(networkID)
	if err != nil {
		return RoutingDecision{}, err
	}
	alternatives := make([]FeeEstimate, 0, len(all))
	for _, est := range all {
		if est.Network != networkID {
			alternatives = append(alternatives, est)
		}
	}
	return RoutingDecision{
		Selected:       n,
		Reason:         reason,
		ChosenEstimate: chosen,
		Alternatives:   alternatives,
	}, nil
}

func cheapest(estimates []FeeEstimate, eligible func(FeeEstimate) bool) (FeeEstimate, bool) {
	var best FeeEstimate
	found := false
	for _, est := range estimates {
		if !eligible(est) {
			continue
		}
		if !found || est.EstimatedFee < best.EstimatedFee {
			best = est
			found = true
		}
	}
	return best, found
}
