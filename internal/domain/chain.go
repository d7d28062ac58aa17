package domain

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	ChainEthereumMainnet Chain = "eip155:1"
	ChainBSC             Chain = "eip155:56"
	ChainPolygon         Chain = "eip155:137"
	ChainArbitrum        Chain = "eip155:42161"
	ChainOptimism        Chain = "eip155:10"
	ChainAvalanche       Chain = "eip155:43114"
	ChainBase            Chain = "eip155:8453"
	ChainEthereumSepolia Chain = "eip155:11155111"
	ChainBSCTestnet      Chain = "eip155:97"
	ChainPolygonMumbai   Chain = "eip155:80001"
	ChainArbitrumSepolia Chain = "eip155:421614"
	ChainOptimismSepolia Chain = "eip155:11155420"
	ChainBaseSepolia     Chain = "eip155:84532"
)

const (
	evmNamespace          = "eip155"
	caip2NamespaceDivider = ":"
)

// ChainInfo describes a supported network
type ChainInfo struct {
	Chain       Chain
	Name        string
	ExplorerURL string
	Testnet     bool
}

var chainRegistry = map[Chain]ChainInfo{
	ChainEthereumMainnet: {Chain: ChainEthereumMainnet, Name: "Ethereum", ExplorerURL: "https://etherscan.io"},
	ChainBSC:             {Chain: ChainBSC, Name: "BNB Smart Chain", ExplorerURL: "https://bscscan.com"},
	ChainPolygon:         {Chain: ChainPolygon, Name: "Polygon", ExplorerURL: "https://polygonscan.com"},
	ChainArbitrum:        {Chain: ChainArbitrum, Name: "Arbitrum One", ExplorerURL: "https://arbiscan.io"},
	ChainOptimism:        {Chain: ChainOptimism, Name: "OP Mainnet", ExplorerURL: "https://optimistic.etherscan.io"},
	ChainAvalanche:       {Chain: ChainAvalanche, Name: "Avalanche", ExplorerURL: "https://snowtrace.io"},
	ChainBase:            {Chain: ChainBase, Name: "Base", ExplorerURL: "https://basescan.org"},
	ChainEthereumSepolia: {Chain: ChainEthereumSepolia, Name: "Sepolia", ExplorerURL: "https://sepolia.etherscan.io", Testnet: true},
	ChainBSCTestnet:      {Chain: ChainBSCTestnet, Name: "BNB Smart Chain Testnet", ExplorerURL: "https://testnet.bscscan.com", Testnet: true},
	ChainPolygonMumbai:   {Chain: ChainPolygonMumbai, Name: "Polygon Mumbai", ExplorerURL: "https://mumbai.polygonscan.com", Testnet: true},
	ChainArbitrumSepolia: {Chain: ChainArbitrumSepolia, Name: "Arbitrum Sepolia", ExplorerURL: "https://sepolia.arbiscan.io", Testnet: true},
	ChainOptimismSepolia: {Chain: ChainOptimismSepolia, Name: "OP Sepolia", ExplorerURL: "https://sepolia-optimism.etherscan.io", Testnet: true},
	ChainBaseSepolia:     {Chain: ChainBaseSepolia, Name: "Base Sepolia", ExplorerURL: "https://sepolia.basescan.org", Testnet: true},
}

// IsValidChain checks if a chain is in the registry
func IsValidChain(chain Chain) bool {
	_, ok := chainRegistry[chain]
	return ok
}

// LookupChain returns the registry entry of a chain
func LookupChain(chain Chain) (ChainInfo, error) {
	info, ok := chainRegistry[chain]
	if !ok {
		return ChainInfo{}, fmt.Errorf("%w: %s", ErrUnknownChain, chain)
	}
	return info, nil
}

// SupportedChains returns all registered chains, mainnets first, each group ordered by name
func SupportedChains() []ChainInfo {
	chains := make([]ChainInfo, 0, len(chainRegistry))
	for _, info := range chainRegistry {
		chains = append(chains, info)
	}
	sort.Slice(chains, func(i, j int) bool {
		if chains[i].Testnet != chains[j].Testnet {
			return !chains[i].Testnet
		}
		return chains[i].Name < chains[j].Name
	})
	return chains
}

// ChainFromID builds the CAIP-2 identifier of an EVM chain ID
func ChainFromID(chainID *big.Int) Chain {
	return Chain(evmNamespace + caip2NamespaceDivider + chainID.String())
}

// EVMChainID returns the numeric chain ID of an eip155 chain
func (c Chain) EVMChainID() (*big.Int, error) {
	namespace, reference, found := strings.Cut(string(c), caip2NamespaceDivider)
	if !found || namespace != evmNamespace {
		return nil, fmt.Errorf("not an eip155 chain: %s", c)
	}
	id, ok := new(big.Int).SetString(reference, 10)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("invalid eip155 chain reference: %s", c)
	}
	return id, nil
}

// ExplorerTxURL returns the block explorer URL of a transaction
// Chains outside the registry fall back to etherscan
func ExplorerTxURL(chain Chain, txHash string) string {
	base := DEFAULT_EXPLORER_URL
	if info, ok := chainRegistry[chain]; ok && info.ExplorerURL != "" {
		base = info.ExplorerURL
	}
	return fmt.Sprintf("%s/tx/%s", base, txHash)
}
