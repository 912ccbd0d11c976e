package pay

import (
	"fmt"
	"time"
)

// Config tunes the routing engine and orchestrator. The zero value is
// not usable; call DefaultConfig and adjust.
type Config struct {
	// MicroThreshold is the amount (atomic units) below which rule 1
	// (cost-optimal micro payment) applies.
	MicroThreshold int64

	// ViableFeeRatio is the maximum estimatedFee/amount ratio for a
	// network to count as viable.
	ViableFeeRatio float64

	// Timeouts bounds the flow's blocking operations.
	Timeouts TimeoutConfig
}

// TimeoutConfig holds timeout configuration for payment operations.
type TimeoutConfig struct {
	// EstimateTimeout is the per-network fee estimate timeout.
	EstimateTimeout time.Duration

	// RequestTimeout is the overall timeout for one HTTP attempt.
	RequestTimeout time.Duration
}

// DefaultConfig provides the documented defaults: 3s per-network
// estimates, 20% viability ratio.
func DefaultConfig() Config {
	return Config{
		MicroThreshold: 100_000,
		ViableFeeRatio: 0.2,
		Timeouts: TimeoutConfig{
			EstimateTimeout: 3 * time.Second,
			RequestTimeout:  120 * time.Second,
		},
	}
}

// Validate ensures configuration values are usable.
func (c Config) Validate() error {
	if c.MicroThreshold <= 0 {
		return fmt.Errorf("micro threshold must be positive, got %d", c.MicroThreshold)
	}
	if c.ViableFeeRatio <= 0 || c.ViableFeeRatio >= 1 {
		return fmt.Errorf("viable fee ratio must be in (0, 1), got %v", c.ViableFeeRatio)
	}
	if c.Timeouts.EstimateTimeout <= 0 {
		return fmt.Errorf("estimate timeout must be positive, got %v", c.Timeouts.EstimateTimeout)
	}
	if c.Timeouts.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", c.Timeouts.RequestTimeout)
	}
	return nil
}
