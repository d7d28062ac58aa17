package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ContractType represents the token standard a contract implements
type ContractType string

const (
	ContractTypeERC721  ContractType = "ERC721"
	ContractTypeERC1155 ContractType = "ERC1155"
	ContractTypeUnknown ContractType = "unknown"
	ContractTypeLoading ContractType = "loading"
)

// IsTransferable reports whether tokens of this contract type can be transferred
func (t ContractType) IsTransferable() bool {
	return t == ContractTypeERC721 || t == ContractTypeERC1155
}

// Label returns the human readable name of the contract type
func (t ContractType) Label() string {
	switch t {
	case ContractTypeERC721:
		return "ERC-721"
	case ContractTypeERC1155:
		return "ERC-1155"
	case ContractTypeLoading:
		return "Detecting..."
	default:
		return "Unknown"
	}
}

// TransferStatus represents the status of a submitted transfer
type TransferStatus string

const (
	TransferStatusPending TransferStatus = "pending"
	TransferStatusSuccess TransferStatus = "success"
	TransferStatusFailed  TransferStatus = "failed"
)

// Resolved reports whether the status is terminal
func (s TransferStatus) Resolved() bool {
	return s == TransferStatusSuccess || s == TransferStatusFailed
}

// SentinelHash marks a record for which no transaction was ever broadcast
var SentinelHash = common.Hash{}

// IsSentinelHash reports whether the hash is the sentinel hash
func IsSentinelHash(h common.Hash) bool {
	return h == SentinelHash
}

// TransferParams holds the run-scoped parameters of a multi-item transfer
type TransferParams struct {
	ContractAddress common.Address `json:"contract_address"`
	Recipient       common.Address `json:"recipient"`
	Sender          common.Address `json:"sender"`
}

// TransferRecord is the audit entry of one submitted (or skipped) token
type TransferRecord struct {
	TokenID *big.Int       `json:"token_id"`
	TxHash  common.Hash    `json:"tx_hash"`
	Status  TransferStatus `json:"status"`
}

// Skipped reports whether the record was produced by a skip rather than a broadcast
func (r TransferRecord) Skipped() bool {
	return IsSentinelHash(r.TxHash)
}

// HashHex returns the transaction hash, or "0x" for the sentinel hash
func (r TransferRecord) HashHex() string {
	if r.Skipped() {
		return "0x"
	}
	return r.TxHash.Hex()
}

// Holding is the ownership or balance of one token ID for an account
type Holding struct {
	TokenID *big.Int        `json:"token_id"`
	Balance *big.Int        `json:"balance"`
	IsOwner bool            `json:"is_owner"`
	Owner   *common.Address `json:"owner,omitempty"` // ERC721 only, nil when the lookup failed
	Err     error           `json:"-"`
}

// ShortenAddress shortens an address to 0x1234...abcd form
func ShortenAddress(address string, chars int) string {
	if address == "" {
		return ""
	}
	if len(address) <= chars*2+2 {
		return address
	}
	return fmt.Sprintf("%s...%s", address[:chars+2], address[len(address)-chars:])
}

// IsValidAddress checks if the string is a 0x-prefixed 20 byte hex address
func IsValidAddress(address string) bool {
	return strings.HasPrefix(address, "0x") && common.IsHexAddress(address)
}

// SameAddress compares two hex addresses case-insensitively
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
