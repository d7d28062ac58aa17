package ethereum

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Function signatures of the supported NFT contract calls
const (
	SigSupportsInterface       = "supportsInterface(bytes4)"
	SigOwnerOf                 = "ownerOf(uint256)"
	SigERC721BalanceOf         = "balanceOf(address)"
	SigERC1155BalanceOf        = "balanceOf(address,uint256)"
	SigERC721SafeTransferFrom  = "safeTransferFrom(address,address,uint256)"
	SigERC1155SafeTransferFrom = "safeTransferFrom(address,address,uint256,uint256,bytes)"
	SigSafeBatchTransferFrom   = "safeBatchTransferFrom(address,address,uint256[],uint256[],bytes)"
)

// nftABI merges the ERC165, ERC721 and ERC1155 functions used for detection, probing and transfers
const nftABI = `[
	{"inputs":[{"name":"interfaceId","type":"bytes4"}],"name":"supportsInterface","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"name":"safeTransferFrom","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"id","type":"uint256"},{"name":"amount","type":"uint256"},{"name":"data","type":"bytes"}],"name":"safeTransferFrom","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"ids","type":"uint256[]"},{"name":"amounts","type":"uint256[]"},{"name":"data","type":"bytes"}],"name":"safeBatchTransferFrom","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// methodRegistry indexes methods by their canonical signature, since overloaded
// names (balanceOf, safeTransferFrom) are ambiguous by name alone
var methodRegistry = sync.OnceValues(func() (map[string]abi.Method, error) {
	parsed, err := abi.JSON(strings.NewReader(nftABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	methods := make(map[string]abi.Method, len(parsed.Methods))
	for _, m := range parsed.Methods {
		methods[m.Sig] = m
	}
	return methods, nil
})

func lookupMethod(functionSignature string) (abi.Method, error) {
	methods, err := methodRegistry()
	if err != nil {
		return abi.Method{}, err
	}

	method, ok := methods[strings.ReplaceAll(functionSignature, " ", "")]
	if !ok {
		return abi.Method{}, fmt.Errorf("%w: %s", ErrUnknownFunction, functionSignature)
	}
	return method, nil
}

// packCall encodes the selector and arguments of a function call
func packCall(functionSignature string, args []interface{}) ([]byte, abi.Method, error) {
	method, err := lookupMethod(functionSignature)
	if err != nil {
		return nil, abi.Method{}, err
	}

	encoded, err := method.Inputs.Pack(args...)
	if err != nil {
		return nil, abi.Method{}, fmt.Errorf("failed to pack %s: %w", method.Sig, err)
	}

	data := make([]byte, 0, len(method.ID)+len(encoded))
	data = append(data, method.ID...)
	data = append(data, encoded...)
	return data, method, nil
}
