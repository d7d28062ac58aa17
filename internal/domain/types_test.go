package domain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestContractType_IsTransferable(t *testing.T) {
	assert.True(t, ContractTypeERC721.IsTransferable())
	assert.True(t, ContractTypeERC1155.IsTransferable())
	assert.False(t, ContractTypeUnknown.IsTransferable())
	assert.False(t, ContractTypeLoading.IsTransferable())
}

func TestContractType_Label(t *testing.T) {
	tests := []struct {
		name     string
		typ      ContractType
		expected string
	}{
		{name: "erc721", typ: ContractTypeERC721, expected: "ERC-721"},
		{name: "erc1155", typ: ContractTypeERC1155, expected: "ERC-1155"},
		{name: "loading", typ: ContractTypeLoading, expected: "Detecting..."},
		{name: "unknown", typ: ContractTypeUnknown, expected: "Unknown"},
		{name: "empty", typ: ContractType(""), expected: "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.typ.Label())
		})
	}
}

func TestTransferStatus_Resolved(t *testing.T) {
	assert.False(t, TransferStatusPending.Resolved())
	assert.True(t, TransferStatusSuccess.Resolved())
	assert.True(t, TransferStatusFailed.Resolved())
}

func TestTransferRecord_HashHex(t *testing.T) {
	skipped := TransferRecord{TokenID: big.NewInt(1), TxHash: SentinelHash, Status: TransferStatusFailed}
	assert.True(t, skipped.Skipped())
	assert.Equal(t, "0x", skipped.HashHex())

	hash := common.HexToHash("0xabc")
	submitted := TransferRecord{TokenID: big.NewInt(2), TxHash: hash, Status: TransferStatusPending}
	assert.False(t, submitted.Skipped())
	assert.Equal(t, hash.Hex(), submitted.HashHex())
}

func TestShortenAddress(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		chars    int
		expected string
	}{
		{
			name:     "empty address",
			address:  "",
			chars:    4,
			expected: "",
		},
		{
			name:     "full address",
			address:  "0x1234567890abcdef1234567890abcdef12345678",
			chars:    4,
			expected: "0x1234...5678",
		},
		{
			name:     "six chars",
			address:  "0x1234567890abcdef1234567890abcdef12345678",
			chars:    6,
			expected: "0x123456...345678",
		},
		{
			name:     "too short to shorten",
			address:  "0x12345678",
			chars:    4,
			expected: "0x12345678",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShortenAddress(tt.address, tt.chars))
		})
	}
}

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		expected bool
	}{
		{name: "lowercase", address: "0x1234567890abcdef1234567890abcdef12345678", expected: true},
		{name: "checksummed", address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", expected: true},
		{name: "missing prefix", address: "1234567890abcdef1234567890abcdef12345678", expected: false},
		{name: "too short", address: "0x1234", expected: false},
		{name: "non hex", address: "0xzz34567890abcdef1234567890abcdef12345678", expected: false},
		{name: "empty", address: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidAddress(tt.address))
		})
	}
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	assert.False(t, SameAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "0x0000000000000000000000000000000000000000"))
}
