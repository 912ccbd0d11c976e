package session

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "sessions.db"), WithSweepInterval(0))
	if err != nil {
		t.Fatalf("Failed to open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_RecordAndRead(t *testing.T) {
	l := openTestLedger(t)

	expiresAt := time.Now().Add(time.Hour)
	if err := l.Record("hash-1", "0xpayer", 50000, expiresAt); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	active, err := l.IsActive("0xpayer")
	if err != nil {
		t.Fatalf("IsActive failed: %v", err)
	}
	if !active {
		t.Error("Expected an active session")
	}

	sessions, err := l.Active("0xpayer")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	if sessions[0].AuthorizationHash != "hash-1" || sessions[0].Amount != 50000 {
		t.Errorf("Unexpected session: %+v", sessions[0])
	}

	// Other payers see nothing.
	active, err = l.IsActive("0xother")
	if err != nil {
		t.Fatalf("IsActive failed: %v", err)
	}
	if active {
		t.Error("Expected no session for another payer")
	}
}

func TestLedger_RecordIdempotent(t *testing.T) {
	l := openTestLedger(t)

	expiresAt := time.Now().Add(time.Hour)
	if err := l.Record("hash-1", "0xpayer", 50000, expiresAt); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	// Same authorization again: a no-op, never an error.
	if err := l.Record("hash-1", "0xpayer", 50000, expiresAt.Add(time.Hour)); err != nil {
		t.Fatalf("Duplicate record failed: %v", err)
	}

	sessions, err := l.Active("0xpayer")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("Expected 1 session after duplicate record, got %d", len(sessions))
	}
	// The original expiry stands.
	if sessions[0].ExpiresAt.After(expiresAt.Add(time.Minute)) {
		t.Error("Duplicate record must not extend the original session")
	}
}

func TestLedger_RecordValidation(t *testing.T) {
	l := openTestLedger(t)

	if err := l.Record("", "0xpayer", 1, time.Now()); err == nil {
		t.Error("Expected error for empty hash")
	}
	if err := l.Record("hash-1", "", 1, time.Now()); err == nil {
		t.Error("Expected error for empty payer")
	}
}

func TestLedger_ExpiryBoundary(t *testing.T) {
	l := openTestLedger(t)

	frozen := time.Now().UTC()
	l.now = func() time.Time { return frozen }

	// Expires exactly now: the boundary instant counts as expired.
	if err := l.Record("hash-boundary", "0xpayer", 1, frozen); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	// Expires one nanosecond later: still active.
	if err := l.Record("hash-live", "0xpayer", 1, frozen.Add(time.Nanosecond)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	sessions, err := l.Active("0xpayer")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected exactly the unexpired session, got %d", len(sessions))
	}
	if sessions[0].AuthorizationHash != "hash-live" {
		t.Errorf("Expected hash-live, got %s", sessions[0].AuthorizationHash)
	}
}

func TestLedger_TimeRemaining(t *testing.T) {
	l := openTestLedger(t)

	frozen := time.Now().UTC()
	l.now = func() time.Time { return frozen }

	if err := l.Record("hash-short", "0xpayer", 1, frozen.Add(10*time.Minute)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := l.Record("hash-long", "0xpayer", 1, frozen.Add(time.Hour)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	remaining, err := l.TimeRemaining("0xpayer")
	if err != nil {
		t.Fatalf("TimeRemaining failed: %v", err)
	}
	if remaining != time.Hour {
		t.Errorf("Expected 1h from the longest-lived session, got %v", remaining)
	}

	remaining, err = l.TimeRemaining("0xother")
	if err != nil {
		t.Fatalf("TimeRemaining failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected 0 for payer without sessions, got %v", remaining)
	}
}

func TestLedger_PurgeExpired(t *testing.T) {
	l := openTestLedger(t)

	frozen := time.Now().UTC()
	l.now = func() time.Time { return frozen }

	if err := l.Record("hash-old", "0xpayer", 1, frozen.Add(-time.Hour)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := l.Record("hash-new", "0xpayer", 1, frozen.Add(time.Hour)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if err := l.PurgeExpired(); err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}

	// The expired entry is physically gone; re-recording it succeeds as
	// a fresh session rather than hitting the idempotency guard.
	if err := l.Record("hash-old", "0xpayer", 1, frozen.Add(time.Hour)); err != nil {
		t.Fatalf("Record after purge failed: %v", err)
	}

	sessions, err := l.Active("0xpayer")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("Expected 2 active sessions after purge and re-record, got %d", len(sessions))
	}
}

func TestLedger_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	l, err := Open(path, WithSweepInterval(0))
	if err != nil {
		t.Fatalf("Failed to open ledger: %v", err)
	}
	if err := l.Record("hash-1", "0xpayer", 50000, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path, WithSweepInterval(0))
	if err != nil {
		t.Fatalf("Failed to reopen ledger: %v", err)
	}
	defer reopened.Close()

	active, err := reopened.IsActive("0xpayer")
	if err != nil {
		t.Fatalf("IsActive failed: %v", err)
	}
	if !active {
		t.Error("Expected session to survive a restart")
	}
}
