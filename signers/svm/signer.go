// Package svm provides the instruction-style signing adapter for
// account-model chains (Solana). It shares the account adapter's signing
// contract and additionally builds and submits value-transfer
// transactions for the scoring-submission and escrow paths.
package svm

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"

	pay "github.com/thisyearnofear/imperfectcoach-pay"
)

// RPCClient is the subset of Solana RPC operations the adapter needs.
// Injected so tests run without a live cluster.
type RPCClient interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

// Wallet extends the base capability with transaction signing, which
// instruction-style networks need for direct value transfers.
type Wallet interface {
	pay.WalletCapability

	// SignTransaction signs the transaction in place for every key the
	// wallet controls.
	SignTransaction(ctx context.Context, tx *solana.Transaction) error

	// PublicKey returns the wallet's public key.
	PublicKey() solana.PublicKey
}

// Adapter implements pay.SigningAdapter for the instruction family.
type Adapter struct {
	wallet Wallet
	rpc    RPCClient
}

// Option configures an Adapter.
type Option func(*Adapter) error

// WithRPCClient sets the RPC client used for transaction submission.
func WithRPCClient(client RPCClient) Option {
	return func(a *Adapter) error {
		a.rpc = client
		return nil
	}
}

// NewAdapter wraps the injected wallet. Like the account adapter, the
// capability is checked at construction so a missing wallet fails fast.
func NewAdapter(wallet Wallet, opts ...Option) (*Adapter, error) {
	if wallet == nil || !wallet.Connected() {
		return nil, pay.NewPaymentError(pay.ErrCodeNoWallet,
			"instruction wallet capability missing or disconnected", pay.ErrNoWalletConnected)
	}

	a := &Adapter{wallet: wallet}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Family returns the instruction signing family.
func (a *Adapter) Family() pay.SigningFamily {
	return pay.FamilyInstruction
}

// Sign delegates the canonical message to the wallet capability.
func (a *Adapter) Sign(ctx context.Context, canonical []byte) ([]byte, error) {
	if !a.Ready() {
		return nil, pay.NewPaymentError(pay.ErrCodeNoWallet,
			"instruction wallet not connected", pay.ErrNoWalletConnected)
	}

	sig, err := a.wallet.SignMessage(ctx, canonical)
	if err != nil {
		if ctx.Err() != nil {
			return nil, pay.NewPaymentError(pay.ErrCodeUserCancelled,
				"signing cancelled", pay.ErrUserCancelled)
		}
		return nil, pay.NewPaymentError(pay.ErrCodeSigningRejected,
			"instruction wallet refused to sign", err)
	}
	return sig, nil
}

// Identity returns the wallet's base58 public key.
func (a *Adapter) Identity() string {
	return a.wallet.Identity()
}

// Ready reports whether the wallet can sign.
func (a *Adapter) Ready() bool {
	return a.wallet.Connected()
}

// BuildTransfer creates a lamport transfer instruction from the wallet
// to the recipient. Used by scoring submission and escrow funding, not
// by the challenge flow.
func (a *Adapter) BuildTransfer(to string, lamports uint64) (solana.Instruction, error) {
	recipient, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	return system.NewTransferInstruction(
		lamports,
		a.wallet.PublicKey(),
		recipient,
	).Build(), nil
}

// SubmitTransfer builds, signs and submits a transfer transaction,
// returning the transaction signature. Requires an RPC client.
func (a *Adapter) SubmitTransfer(ctx context.Context, to string, lamports uint64) (string, error) {
	if a.rpc == nil {
		return "", fmt.Errorf("svm: no rpc client configured")
	}
	if !a.Ready() {
		return "", pay.NewPaymentError(pay.ErrCodeNoWallet,
			"instruction wallet not connected", pay.ErrNoWalletConnected)
	}

	instruction, err := a.BuildTransfer(to, lamports)
	if err != nil {
		return "", err
	}

	recent, err := a.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("failed to get blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		recent.Value.Blockhash,
		solana.TransactionPayer(a.wallet.PublicKey()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create transaction: %w", err)
	}

	if err := a.wallet.SignTransaction(ctx, tx); err != nil {
		return "", pay.NewPaymentError(pay.ErrCodeSigningRejected,
			"failed to sign transfer transaction", err)
	}

	sig, err := a.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{})
	if err != nil {
		return "", fmt.Errorf("failed to submit transfer: %w", err)
	}
	return sig.String(), nil
}
