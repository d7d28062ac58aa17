package transfer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/ff-nft-transfer/internal/providers/ethereum"
)

// Call is a state-changing contract call ready for submission
type Call struct {
	Contract  common.Address
	Signature string
	Args      []interface{}
}

// ERC721Transfer builds safeTransferFrom(from, to, tokenId)
func ERC721Transfer(contract, from, to common.Address, tokenID *big.Int) Call {
	return Call{
		Contract:  contract,
		Signature: ethereum.SigERC721SafeTransferFrom,
		Args:      []interface{}{from, to, tokenID},
	}
}

// ERC1155Transfer builds safeTransferFrom(from, to, id, amount, 0x)
func ERC1155Transfer(contract, from, to common.Address, tokenID, amount *big.Int) Call {
	return Call{
		Contract:  contract,
		Signature: ethereum.SigERC1155SafeTransferFrom,
		Args:      []interface{}{from, to, tokenID, amount, []byte{}},
	}
}

// ERC1155BatchTransfer builds safeBatchTransferFrom(from, to, ids, amounts, 0x)
func ERC1155BatchTransfer(contract, from, to common.Address, tokenIDs, amounts []*big.Int) Call {
	return Call{
		Contract:  contract,
		Signature: ethereum.SigSafeBatchTransferFrom,
		Args:      []interface{}{from, to, tokenIDs, amounts, []byte{}},
	}
}
