package detector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coocood/freecache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/feral-file/ff-nft-transfer/internal/domain"
	"github.com/feral-file/ff-nft-transfer/internal/logger"
	"github.com/feral-file/ff-nft-transfer/internal/providers/ethereum"
)

// Result is the outcome of a contract type detection
type Result struct {
	Type domain.ContractType
	Err  error
}

// Config holds detector configuration
type Config struct {
	// CacheSizeMB is the size of the result cache in megabytes, 0 disables caching
	CacheSizeMB int
	// CacheTTL is how long a detected type is kept
	CacheTTL time.Duration
}

// Detector classifies a contract address as ERC721, ERC1155 or unknown via ERC-165
type Detector interface {
	// Detect queries both interface IDs and classifies the contract.
	// A nil address returns unknown without any query.
	Detect(ctx context.Context, address *common.Address) Result

	// Start runs Detect in the background and returns a handle reporting loading until it finishes
	Start(ctx context.Context, address *common.Address) *Detection
}

type detector struct {
	client   ethereum.EthereumClient
	cache    *freecache.Cache
	cacheTTL int
}

// New creates a new contract type detector
func New(client ethereum.EthereumClient, cfg Config) Detector {
	d := &detector{client: client}
	if cfg.CacheSizeMB > 0 {
		d.cache = freecache.NewCache(cfg.CacheSizeMB * 1024 * 1024)
		d.cacheTTL = int(cfg.CacheTTL.Seconds())
	}
	return d
}

func (d *detector) Detect(ctx context.Context, address *common.Address) Result {
	if address == nil {
		return Result{Type: domain.ContractTypeUnknown}
	}

	key := d.cacheKey(*address)
	if cached, ok := d.lookup(key); ok {
		return Result{Type: cached}
	}

	is721, err := d.supportsInterface(ctx, *address, domain.ERC721_INTERFACE_ID)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to query ERC721 interface", zap.String("contract", address.Hex()), zap.Error(err))
		return Result{Type: domain.ContractTypeUnknown, Err: err}
	}

	is1155, err := d.supportsInterface(ctx, *address, domain.ERC1155_INTERFACE_ID)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to query ERC1155 interface", zap.String("contract", address.Hex()), zap.Error(err))
		return Result{Type: domain.ContractTypeUnknown, Err: err}
	}

	contractType := classify(is721, is1155)
	d.store(key, contractType)

	logger.DebugCtx(ctx, "Detected contract type",
		zap.String("contract", address.Hex()),
		zap.String("type", string(contractType)),
	)

	return Result{Type: contractType}
}

func (d *detector) Start(ctx context.Context, address *common.Address) *Detection {
	detection := &Detection{done: make(chan struct{})}
	go func() {
		detection.result = d.Detect(ctx, address)
		close(detection.done)
	}()
	return detection
}

// classify applies the ERC1155 precedence when a contract claims both interfaces
func classify(is721, is1155 bool) domain.ContractType {
	switch {
	case is1155:
		return domain.ContractTypeERC1155
	case is721:
		return domain.ContractTypeERC721
	default:
		return domain.ContractTypeUnknown
	}
}

// supportsInterface calls supportsInterface(bytes4). Contracts without ERC-165 and
// plain accounts fail the call with an EVM error, which counts as unsupported.
func (d *detector) supportsInterface(ctx context.Context, address common.Address, interfaceID string) (bool, error) {
	raw, err := hexutil.Decode(interfaceID)
	if err != nil || len(raw) != 4 {
		return false, fmt.Errorf("invalid interface id %s", interfaceID)
	}
	var id [4]byte
	copy(id[:], raw)

	out, err := d.client.ReadContract(ctx, address, ethereum.SigSupportsInterface, []interface{}{id})
	if err != nil {
		if isKnownEVMError(err) {
			return false, nil
		}
		return false, err
	}
	if len(out) != 1 {
		return false, nil
	}

	supported, _ := out[0].(bool)
	return supported, nil
}

func isKnownEVMError(err error) bool {
	msg := err.Error()
	for _, known := range []string{
		"execution reverted",
		"abi: attempting to unmarshall an empty string while arguments are expected",
		"invalid opcode: INVALID",
		"invalid jump destination",
	} {
		if strings.Contains(msg, known) {
			return true
		}
	}
	return false
}

func (d *detector) cacheKey(address common.Address) []byte {
	return []byte(fmt.Sprintf("%s/%s", d.client.Chain(), strings.ToLower(address.Hex())))
}

func (d *detector) lookup(key []byte) (domain.ContractType, bool) {
	if d.cache == nil {
		return "", false
	}
	value, err := d.cache.Get(key)
	if err != nil {
		return "", false
	}
	return domain.ContractType(value), true
}

func (d *detector) store(key []byte, contractType domain.ContractType) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Set(key, []byte(contractType), d.cacheTTL); err != nil {
		logger.Warn("Failed to cache contract type", zap.ByteString("key", key), zap.Error(err))
	}
}
