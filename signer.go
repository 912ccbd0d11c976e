package pay

import "context"

// SigningAdapter produces network-appropriate signatures over canonical
// challenge messages. One adapter exists per signing family; both wrap an
// externally supplied WalletCapability.
//
// Adapters must reject signing with ErrNoWalletConnected when Ready
// reports false.
type SigningAdapter interface {
	// Family returns the signing family this adapter serves.
	Family() SigningFamily

	// Sign signs the canonical message bytes. The bytes must be signed
	// exactly as given; any re-encoding breaks the server's check.
	Sign(ctx context.Context, canonical []byte) ([]byte, error)

	// Identity returns the signing wallet's public identity.
	Identity() string

	// Ready reports whether the underlying wallet can sign.
	Ready() bool
}

// AdapterSet holds the configured adapter per signing family.
type AdapterSet map[SigningFamily]SigningAdapter

// For returns the adapter for a family, or ErrNoWalletConnected if none
// is configured or the wallet is gone.
func (s AdapterSet) For(family SigningFamily) (SigningAdapter, error) {
	a, ok := s[family]
	if !ok || a == nil {
		return nil, NewPaymentError(ErrCodeNoWallet, "no adapter for signing family", ErrNoWalletConnected).
			WithDetails("family", string(family))
	}
	return a, nil
}
