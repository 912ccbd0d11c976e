package pay

// Predefined network descriptors for the Imperfect Coach deployment.
// Identifiers follow CAIP-2 (eip155 chain ids, Solana genesis hash
// references).
var (
	// BaseSepolia is the established default network.
	BaseSepolia = Network{
		ID:                  "eip155:84532",
		DisplayName:         "Base Sepolia",
		AssetSymbol:         "USDC",
		Family:              FamilyAccount,
		RPCEndpoint:         "https://sepolia.base.org",
		ExplorerURLTemplate: "https://sepolia.basescan.org/tx/%s",
		Established:         true,
	}

	// SolanaDevnet backs the scoring-submission and escrow paths.
	SolanaDevnet = Network{
		ID:                  "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1",
		DisplayName:         "Solana Devnet",
		AssetSymbol:         "USDC",
		Family:              FamilyInstruction,
		RPCEndpoint:         "https://api.devnet.solana.com",
		ExplorerURLTemplate: "https://explorer.solana.com/tx/%s?cluster=devnet",
	}
)

// DefaultNetworks returns the standard catalog. Callers needing a
// different deployment (mainnet, a confidential network) build their
// own slice.
func DefaultNetworks() []Network {
	return []Network{BaseSepolia, SolanaDevnet}
}
