package domain

import "errors"

var (
	// ErrTransactionReverted is returned when a broadcast transaction is mined with a failed status
	ErrTransactionReverted = errors.New("transaction reverted")

	// ErrUnsupportedContract is returned when a contract implements neither ERC721 nor ERC1155
	ErrUnsupportedContract = errors.New("contract is neither ERC721 nor ERC1155")

	// ErrUnknownChain is returned when a chain ID is not in the registry
	ErrUnknownChain = errors.New("unknown chain")
)
