package svm

import (
	"context"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"

	pay "github.com/thisyearnofear/imperfectcoach-pay"
)

// LocalWallet is a Wallet backed by an in-process ed25519 key.
type LocalWallet struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
	connected  atomic.Bool

	events pay.WalletEvents
}

// NewLocalWallet parses a base58-encoded private key.
func NewLocalWallet(privateKeyBase58 string) (*LocalWallet, error) {
	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, pay.NewPaymentError(pay.ErrCodeNoWallet, "invalid instruction private key", err)
	}
	return NewLocalWalletFromKey(key), nil
}

// NewLocalWalletFromKey wraps an existing key.
func NewLocalWalletFromKey(key solana.PrivateKey) *LocalWallet {
	w := &LocalWallet{
		privateKey: key,
		publicKey:  key.PublicKey(),
	}
	w.connected.Store(true)
	return w
}

// SignMessage signs msg with the wallet's ed25519 key.
func (w *LocalWallet) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !w.connected.Load() {
		return nil, pay.ErrNoWalletConnected
	}

	sig, err := w.privateKey.Sign(msg)
	if err != nil {
		return nil, err
	}
	return sig[:], nil
}

// SignTransaction signs the transaction for the wallet's key.
func (w *LocalWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !w.connected.Load() {
		return pay.ErrNoWalletConnected
	}

	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.publicKey) {
			return &w.privateKey
		}
		return nil
	})
	return err
}

// PublicKey returns the wallet's public key.
func (w *LocalWallet) PublicKey() solana.PublicKey {
	return w.publicKey
}

// Identity returns the base58 public key.
func (w *LocalWallet) Identity() string {
	return w.publicKey.String()
}

// Connected reports whether the wallet will sign.
func (w *LocalWallet) Connected() bool {
	return w.connected.Load()
}

// Disconnect makes the wallet refuse further signing and notifies
// subscribers.
func (w *LocalWallet) Disconnect() {
	if w.connected.CompareAndSwap(true, false) {
		w.events.Notify(pay.WalletEvent{Type: pay.WalletDisconnected, Identity: w.Identity()})
	}
}

// Reconnect re-enables signing and notifies subscribers.
func (w *LocalWallet) Reconnect() {
	if w.connected.CompareAndSwap(false, true) {
		w.events.Notify(pay.WalletEvent{Type: pay.WalletConnected, Identity: w.Identity()})
	}
}

// Subscribe implements pay.WalletNotifier.
func (w *LocalWallet) Subscribe(cb pay.WalletCallback) func() {
	return w.events.Subscribe(cb)
}
