// Package evm provides the account-style signing adapter for EVM-like
// networks. The adapter is stateless beyond holding the injected wallet
// capability; the wallet applies EIP-191 personal-message signing to the
// canonical challenge bytes.
package evm

import (
	"context"

	pay "github.com/thisyearnofear/imperfectcoach-pay"
)

// Adapter implements pay.SigningAdapter for the account signing family.
type Adapter struct {
	wallet pay.WalletCapability
}

// NewAdapter wraps the injected wallet capability. The capability is
// checked here so a missing or disconnected wallet fails fast with
// ErrNoWalletConnected instead of at signing time.
func NewAdapter(wallet pay.WalletCapability) (*Adapter, error) {
	if wallet == nil || !wallet.Connected() {
		return nil, pay.NewPaymentError(pay.ErrCodeNoWallet,
			"account wallet capability missing or disconnected", pay.ErrNoWalletConnected)
	}
	return &Adapter{wallet: wallet}, nil
}

// Family returns the account signing family.
func (a *Adapter) Family() pay.SigningFamily {
	return pay.FamilyAccount
}

// Sign delegates the canonical message to the wallet capability.
func (a *Adapter) Sign(ctx context.Context, canonical []byte) ([]byte, error) {
	if !a.Ready() {
		return nil, pay.NewPaymentError(pay.ErrCodeNoWallet,
			"account wallet not connected", pay.ErrNoWalletConnected)
	}

	sig, err := a.wallet.SignMessage(ctx, canonical)
	if err != nil {
		if ctx.Err() != nil {
			return nil, pay.NewPaymentError(pay.ErrCodeUserCancelled,
				"signing cancelled", pay.ErrUserCancelled)
		}
		return nil, pay.NewPaymentError(pay.ErrCodeSigningRejected,
			"account wallet refused to sign", err)
	}
	return sig, nil
}

// Identity returns the wallet address.
func (a *Adapter) Identity() string {
	return a.wallet.Identity()
}

// Ready reports whether the wallet can sign.
func (a *Adapter) Ready() bool {
	return a.wallet.Connected()
}
