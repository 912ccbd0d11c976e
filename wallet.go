package pay

import (
	"context"
	"sync"
)

// WalletCapability is the externally supplied signing capability the host
// application injects per signing family. It replaces the original
// ambient wallet singletons with explicit dependency injection.
//
// SignMessage may block indefinitely while the user reviews an approval
// prompt; implementations must honor context cancellation.
type WalletCapability interface {
	// SignMessage signs the given message bytes.
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)

	// Identity returns the wallet's public identity (address or pubkey).
	Identity() string

	// Connected reports whether the wallet is ready to sign.
	Connected() bool
}

// WalletEventType classifies wallet lifecycle events.
type WalletEventType string

const (
	WalletConnected    WalletEventType = "connected"
	WalletDisconnected WalletEventType = "disconnected"
	WalletChanged      WalletEventType = "changed"
)

// WalletEvent notifies observers of a wallet lifecycle change.
type WalletEvent struct {
	Type     WalletEventType
	Identity string
}

// WalletCallback handles wallet events. Callbacks run synchronously on
// the notifying goroutine and should return quickly.
type WalletCallback func(WalletEvent)

// WalletNotifier is an optional capability: wallets that can report
// connect/disconnect/change events implement it, and observers register
// explicitly instead of listening on global state.
type WalletNotifier interface {
	// Subscribe registers a callback and returns its unsubscribe func.
	Subscribe(cb WalletCallback) (unsubscribe func())
}

// WalletEvents is a reusable WalletNotifier implementation for wallet
// types. The zero value is ready to use.
type WalletEvents struct {
	mu   sync.Mutex
	next int
	subs map[int]WalletCallback
}

// Subscribe implements WalletNotifier.
func (w *WalletEvents) Subscribe(cb WalletCallback) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.subs == nil {
		w.subs = make(map[int]WalletCallback)
	}
	id := w.next
	w.next++
	w.subs[id] = cb
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

// Notify delivers an event to every subscriber.
func (w *WalletEvents) Notify(ev WalletEvent) {
	w.mu.Lock()
	cbs := make([]WalletCallback, 0, len(w.subs))
	for _, cb := range w.subs {
		cbs = append(cbs, cb)
	}
	w.mu.Unlock()

	for _, cb := range cbs {
		cb(ev)
	}
}
