package pay

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Network is an immutable descriptor of one settlement network. Entries
// are created once at process start from static configuration and never
// mutated afterwards.
type Network struct {
	// ID is the network identifier in CAIP-2 form (e.g. "eip155:84532").
	ID string `validate:"required"`

	// DisplayName is the human-readable network name.
	DisplayName string `validate:"required"`

	// AssetSymbol is the settlement asset's symbol (e.g. "USDC").
	AssetSymbol string `validate:"required"`

	// Family is the network's signing family.
	Family SigningFamily `validate:"required,oneof=account instruction"`

	// RPCEndpoint is the node endpoint for fee and health queries.
	RPCEndpoint string `validate:"required,url"`

	// ExplorerURLTemplate renders a transaction reference into an
	// explorer link; %s is replaced by the transaction hash.
	ExplorerURLTemplate string `validate:"omitempty,contains=%s"`

	// Confidential marks networks supporting confidential settlement.
	Confidential bool

	// Established marks the default network used for context defaults
	// and as the last-resort fallback target.
	Established bool
}

// ExplorerURL renders the explorer link for a transaction reference.
func (n Network) ExplorerURL(txHash string) string {
	if n.ExplorerURLTemplate == "" || txHash == "" {
		return ""
	}
	return strings.Replace(n.ExplorerURLTemplate, "%s", txHash, 1)
}

// Registry is the static catalog of settlement networks. It is read-only
// after construction and safe for concurrent use.
type Registry struct {
	byID          map[string]Network
	order         []string
	establishedID string
}

// NewRegistry validates and indexes the given networks. Exactly one
// network must be marked Established.
func NewRegistry(networks []Network) (*Registry, error) {
	if len(networks) == 0 {
		return nil, fmt.Errorf("pay: registry requires at least one network")
	}

	validate := validator.New()
	r := &Registry{byID: make(map[string]Network, len(networks))}

	for _, n := range networks {
		if err := validate.Struct(n); err != nil {
			return nil, fmt.Errorf("pay: invalid network %q: %w", n.ID, err)
		}
		if _, dup := r.byID[n.ID]; dup {
			return nil, fmt.Errorf("pay: duplicate network id %q", n.ID)
		}
		if n.Established {
			if r.establishedID != "" {
				return nil, fmt.Errorf("pay: multiple established networks (%q, %q)", r.establishedID, n.ID)
			}
			r.establishedID = n.ID
		}
		r.byID[n.ID] = n
		r.order = append(r.order, n.ID)
	}

	if r.establishedID == "" {
		return nil, fmt.Errorf("pay: no established network configured")
	}

	return r, nil
}

// Lookup returns the network for an id.
func (r *Registry) Lookup(id string) (Network, error) {
	n, ok := r.byID[id]
	if !ok {
		return Network{}, NewPaymentError(ErrCodeUnknownNetwork, "network not in registry", ErrUnknownNetwork).
			WithDetails("network", id)
	}
	return n, nil
}

// All returns the networks in configuration order.
func (r *Registry) All() []Network {
	out := make([]Network, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns the network ids in configuration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Established returns the default established network.
func (r *Registry) Established() Network {
	return r.byID[r.establishedID]
}

// Confidential returns the network supporting confidential settlement,
// if one is configured.
func (r *Registry) Confidential() (Network, bool) {
	for _, id := range r.order {
		if n := r.byID[id]; n.Confidential {
			return n, true
		}
	}
	return Network{}, false
}
