package solana

import (
	"strings"
)

type Environment string

const (
	EnvironmentDev  Environment = "https://api.devnet.solana.com"
	EnvironmentTest Environment = "https://api.testnet.solana.com"
	EnvironmentProd Environment = "https://api.mainnet-beta.solana.com"
)

// EndpointFor resolves a cluster moniker (devnet, testnet, mainnet-beta) to
// its public RPC endpoint. Anything else is assumed to already be a URL.
func EndpointFor(clusterOrURL string) string {
	switch strings.ToLower(strings.TrimSpace(clusterOrURL)) {
	case "", "devnet":
		return string(EnvironmentDev)
	case "testnet":
		return string(EnvironmentTest)
	case "mainnet", "mainnet-beta":
		return string(EnvironmentProd)
	}
	return clusterOrURL
}
