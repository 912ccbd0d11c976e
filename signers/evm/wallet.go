package evm

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	pay "github.com/thisyearnofear/imperfectcoach-pay"
	"github.com/thisyearnofear/imperfectcoach-pay/internal/eip191"
)

// LocalWallet is a pay.WalletCapability backed by an in-process ECDSA
// key. It signs EIP-191 personal messages; hosting applications with a
// browser or hardware wallet supply their own capability instead.
type LocalWallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	connected  atomic.Bool

	events pay.WalletEvents
}

// NewLocalWallet parses a hex private key (with or without 0x prefix).
func NewLocalWallet(privateKeyHex string) (*LocalWallet, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, pay.NewPaymentError(pay.ErrCodeNoWallet, "invalid account private key", err)
	}
	return NewLocalWalletFromKey(key), nil
}

// NewLocalWalletFromKey wraps an existing key.
func NewLocalWalletFromKey(key *ecdsa.PrivateKey) *LocalWallet {
	w := &LocalWallet{
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
	}
	w.connected.Store(true)
	return w
}

// SignMessage signs the EIP-191 digest of msg.
func (w *LocalWallet) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !w.connected.Load() {
		return nil, pay.ErrNoWalletConnected
	}

	sig, err := crypto.Sign(eip191.Digest(msg), w.privateKey)
	if err != nil {
		return nil, err
	}
	// Recovery id in wallet convention (27/28).
	sig[64] += 27
	return sig, nil
}

// Identity returns the checksummed address.
func (w *LocalWallet) Identity() string {
	return w.address.Hex()
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
