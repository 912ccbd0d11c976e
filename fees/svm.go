package fees

import (
	"context"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	pay "github.com/thisyearnofear/imperfectcoach-pay"
)

const (
	// lamportsPerSignature is the cluster base fee per signature.
	lamportsPerSignature = 5_000

	// computeUnits is the compute budget assumed for a transfer.
	computeUnits = 200_000
)

var lamportsPerSol = decimal.New(1, 9)

// SolanaRPC is the subset of RPC operations the quoter needs, injected
// so tests run without a live cluster.
type SolanaRPC interface {
	GetHealth(ctx context.Context) (string, error)
	GetRecentPrioritizationFees(ctx context.Context, accounts solana.PublicKeySlice) ([]rpc.PriorizationFeeResult, error)
}

// SVMQuoter derives fee and health for a Solana network: health via the
// getHealth RPC, fee as the base signature fee plus the recent median
// prioritization fee, converted into settlement-asset atomic units.
type SVMQuoter struct {
	network        string
	client         SolanaRPC
	nativePrice    decimal.Decimal
	assetDecimals  int32
	confirmSeconds int
}

// NewSVMQuoter builds a quoter over the network's RPC endpoint.
func NewSVMQuoter(network pay.Network, nativePrice decimal.Decimal, assetDecimals int32, confirmSeconds int) *SVMQuoter {
	return &SVMQuoter{
		network:        network.ID,
		client:         rpc.New(network.RPCEndpoint),
		nativePrice:    nativePrice,
		assetDecimals:  assetDecimals,
		confirmSeconds: confirmSeconds,
	}
}

// WithClient swaps the RPC client; used by tests.
func (q *SVMQuoter) WithClient(client SolanaRPC) *SVMQuoter {
	q.client = client
	return q
}

// Network returns the network id the quoter serves.
func (q *SVMQuoter) Network() string {
	return q.network
}

// Quote probes cluster health and computes the expected transfer fee.
func (q *SVMQuoter) Quote(ctx context.Context) (pay.FeeEstimate, error) {
	healthStr, err := q.client.GetHealth(ctx)
	if err != nil {
		return pay.FeeEstimate{}, fmt.Errorf("health query failed: %w", err)
	}

	health := pay.HealthHealthy
	if healthStr != rpc.HealthOk {
		health = pay.HealthDegraded
	}

	lamports := int64(lamportsPerSignature)
	if fees, err := q.client.GetRecentPrioritizationFees(ctx, nil); err == nil && len(fees) > 0 {
		lamports += medianPriorityLamports(fees)
	}
	// Prioritization fee lookup failures fall back to the base fee; the
	// health probe above already succeeded.

	fee := decimal.NewFromInt(lamports).
		Div(lamportsPerSol).
		Mul(q.nativePrice).
		Mul(decimal.New(1, q.assetDecimals)).
		IntPart()

	return pay.FeeEstimate{
		Network:                 q.network,
		EstimatedFee:            fee,
		EstimatedConfirmSeconds: q.confirmSeconds,
		Health:                  health,
	}, nil
}

// medianPriorityLamports converts the median recent prioritization fee
// (microlamports per compute unit) into lamports for one transfer.
func medianPriorityLamports(fees []rpc.PriorizationFeeResult) int64 {
	perCU := make([]uint64, 0, len(fees))
	for _, f := range fees {
		perCU = append(perCU, f.PrioritizationFee)
	}
	sort.Slice(perCU, func(i, j int) bool { return perCU[i] < perCU[j] })
	median := perCU[len(perCU)/2]

	return int64(median * computeUnits / 1_000_000)
}
