package pay

import "time"

// SessionReader is the ledger view feature gates consume.
type SessionReader interface {
	IsActive(payer string) (bool, error)
	TimeRemaining(payer string) (time.Duration, error)
}

// Gate answers the feature-gating questions the hosting application
// asks: may this payer use the gated feature, and for how much longer.
// Read errors fail closed.
type Gate struct {
	ledger SessionReader
}

// NewGate wraps a session reader.
func NewGate(ledger SessionReader) *Gate {
	return &Gate{ledger: ledger}
}

// CanSubmit reports whether the payer holds an active session.
func (g *Gate) CanSubmit(payer string) bool {
	active, err := g.ledger.IsActive(payer)
	if err != nil {
		return false
	}
	return active
}

// TimeRemaining returns how long the payer's access lasts; zero when no
// session is active or the ledger read fails.
func (g *Gate) TimeRemaining(payer string) time.Duration {
	d, err := g.ledger.TimeRemaining(payer)
	if err != nil {
		return 0
	}
	return d
}
