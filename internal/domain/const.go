package domain

const (
	// ERC-165 interface identifiers
	ERC721_INTERFACE_ID  = "0x80ac58cd"
	ERC1155_INTERFACE_ID = "0xd9b67a26"

	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

	DEFAULT_EXPLORER_URL = "https://etherscan.io"
)
