// Package session is the idempotency and access-grant ledger. Completed
// authorizations are recorded durably (bbolt, keyed by payer identity) so
// a payment is never charged twice and so feature gates can grant
// time-boxed access without re-paying.
//
// Reads filter expired entries; a periodic sweep physically removes them.
// Writes are serialized by bbolt's single-writer transaction model, which
// matches the workload: sessions are appended rarely relative to reads.
package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	pay "github.com/thisyearnofear/imperfectcoach-pay"
	"github.com/thisyearnofear/imperfectcoach-pay/logger"
)

var bucketSessions = []byte("sessions")

// keySep joins payer and hash in the bucket key; payer identities are
// addresses and never contain a NUL.
const keySep = "\x00"

// Ledger is the durable session store. Safe for concurrent use.
type Ledger struct {
	db  *bolt.DB
	log logger.Logger

	sweepEvery time.Duration
	done       chan struct{}

	now func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger (default noop).
func WithLogger(log logger.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithSweepInterval sets the expired-entry sweep interval (default 60s).
// Zero disables the background sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Ledger) { l.sweepEvery = d }
}

// Open opens (creating if needed) the ledger file and starts the sweep.
func Open(path string, opts ...Option) (*Ledger, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("session: open ledger: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: init bucket: %w", err)
	}

	l := &Ledger{
		db:         db,
		log:        logger.NoopLogger{},
		sweepEvery: time.Minute,
		done:       make(chan struct{}),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.sweepEvery > 0 {
		go l.sweepLoop()
	}
	return l, nil
}

// Record stores a completed authorization. Idempotent: recording the
// same hash again is a successful no-op — this is the double-charge
// guard, so a duplicate is never an error.
func (l *Ledger) Record(authorizationHash, payer string, amount int64, expiresAt time.Time) error {
	if authorizationHash == "" || payer == "" {
		return fmt.Errorf("session: hash and payer are required")
	}

	s := pay.Session{
		AuthorizationHash: authorizationHash,
		Payer:             payer,
		IssuedAt:          l.now().UTC(),
		ExpiresAt:         expiresAt.UTC(),
		Amount:            amount,
	}

	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		key := sessionKey(payer, authorizationHash)
		if b.Get(key) != nil {
			// Duplicate submission of the same authorization.
			return nil
		}
		raw, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("session: marshal: %w", err)
		}
		return b.Put(key, raw)
	})
}

// IsActive reports whether the payer holds any unexpired session.
func (l *Ledger) IsActive(payer string) (bool, error) {
	sessions, err := l.Active(payer)
	if err != nil {
		return false, err
	}
	return len(sessions) > 0, nil
}

// Active returns the payer's unexpired sessions. Entries with
// ExpiresAt <= now are filtered out before being returned.
func (l *Ledger) Active(payer string) ([]pay.Session, error) {
	now := l.now()
	var out []pay.Session

	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSessions).Cursor()
		prefix := []byte(payer + keySep)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var s pay.Session
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("session: corrupt entry %q: %w", k, err)
			}
			if s.ExpiresAt.After(now) {
				out = append(out, s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TimeRemaining returns how long the payer's longest-lived session has
// left, or zero if none is active.
func (l *Ledger) TimeRemaining(payer string) (time.Duration, error) {
	sessions, err := l.Active(payer)
	if err != nil {
		return 0, err
	}

	now := l.now()
	var remaining time.Duration
	for _, s := range sessions {
		if d := s.ExpiresAt.Sub(now); d > remaining {
			remaining = d
		}
	}
	return remaining, nil
}

// PurgeExpired physically removes every expired entry.
func (l *Ledger) PurgeExpired() error {
	now := l.now()
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		c := b.Cursor()

		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var s pay.Session
			if err := json.Unmarshal(v, &s); err != nil {
				// Corrupt entries are purged with the expired ones.
				stale = append(stale, append([]byte(nil), k...))
				continue
			}
			if !s.ExpiresAt.After(now) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close stops the sweep and closes the underlying store.
func (l *Ledger) Close() error {
	close(l.done)
	return l.db.Close()
}

func (l *Ledger) sweepLoop() {
	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.PurgeExpired(); err != nil {
				l.log.Warn("session sweep failed", map[string]any{"error": err.Error()})
			}
		case <-l.done:
			return
		}
	}
}

func sessionKey(payer, hash string) []byte {
	return []byte(payer + keySep + hash)
}
