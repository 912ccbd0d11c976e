package fees

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	pay "github.com/thisyearnofear/imperfectcoach-pay"
)

// transferGas is the gas budget for an ERC-20 transferWithAuthorization.
const transferGas = 65_000

// weiPerEther used to normalize gas costs to whole native units.
var weiPerEther = decimal.New(1, 18)

// EVMQuoter derives fee and health for an EVM network from its node:
// gas price via eth_gasPrice, health from the same probe's latency. The
// native-unit gas cost is converted into atomic units of the settlement
// asset so the routing engine compares like units.
type EVMQuoter struct {
	network string
	client  *ethclient.Client

	// nativePrice is the native asset's price in settlement-asset units
	// (e.g. ETH/USDC). A configuration hint, refreshed out of band.
	nativePrice decimal.Decimal

	// assetDecimals is the settlement asset's decimal count.
	assetDecimals int32

	// confirmSeconds is the network's typical confirmation latency.
	confirmSeconds int
}

// NewEVMQuoter dials the network's RPC endpoint.
func NewEVMQuoter(network pay.Network, nativePrice decimal.Decimal, assetDecimals int32, confirmSeconds int) (*EVMQuoter, error) {
	client, err := ethclient.Dial(network.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", network.ID, err)
	}
	return &EVMQuoter{
		network:        network.ID,
		client:         client,
		nativePrice:    nativePrice,
		assetDecimals:  assetDecimals,
		confirmSeconds: confirmSeconds,
	}, nil
}

// Network returns the network id the quoter serves.
func (q *EVMQuoter) Network() string {
	return q.network
}

// Quote queries the node for the current gas price and converts the
// transfer cost into settlement-asset atomic units.
func (q *EVMQuoter) Quote(ctx context.Context) (pay.FeeEstimate, error) {
	start := time.Now()
	gasPrice, err := q.client.SuggestGasPrice(ctx)
	if err != nil {
		return pay.FeeEstimate{}, fmt.Errorf("gas price query failed: %w", err)
	}

	health := pay.HealthHealthy
	if time.Since(start) > 2*time.Second {
		health = pay.HealthDegraded
	}

	weiCost := new(big.Int).Mul(gasPrice, big.NewInt(transferGas))
	fee := decimal.NewFromBigInt(weiCost, 0).
		Div(weiPerEther).
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

// Close releases the underlying RPC connection.
func (q *EVMQuoter) Close() {
	q.client.Close()
}
