package transfer

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/feral-file/ff-nft-transfer/internal/logger"
	"github.com/feral-file/ff-nft-transfer/internal/providers/ethereum"
)

// ErrMismatchedBatch is returned when token IDs and amounts are empty or not aligned
var ErrMismatchedBatch = errors.New("token IDs and amounts must be non-empty and of equal length")

// BatchExecutor transfers several ERC1155 token IDs in a single safeBatchTransferFrom
type BatchExecutor struct {
	executor *Executor
}

// NewBatchExecutor creates a new ERC1155 batch executor
func NewBatchExecutor(client ethereum.EthereumClient, opts ...ExecutorOption) *BatchExecutor {
	return &BatchExecutor{executor: NewExecutor(client, opts...)}
}

// BatchTransfer submits safeBatchTransferFrom(sender, recipient, ids, amounts, 0x)
func (b *BatchExecutor) BatchTransfer(ctx context.Context, contract, recipient common.Address, tokenIDs, amounts []*big.Int, sender common.Address) error {
	if len(tokenIDs) == 0 || len(tokenIDs) != len(amounts) {
		return ErrMismatchedBatch
	}
	for i := range tokenIDs {
		if tokenIDs[i] == nil || amounts[i] == nil {
			return ErrMismatchedBatch
		}
	}

	attemptID := b.executor.Submit(ctx, ERC1155BatchTransfer(contract, sender, recipient, tokenIDs, amounts))
	logger.InfoCtx(ctx, "Batch transfer submitted",
		zap.String("attemptID", attemptID.String()),
		zap.String("contract", contract.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.Int("items", len(tokenIDs)),
	)
	return nil
}

// State returns the state of the batch transaction
func (b *BatchExecutor) State() ExecutorState {
	return b.executor.State()
}

// Wait blocks until the batch transaction settles or ctx is done
func (b *BatchExecutor) Wait(ctx context.Context) (ExecutorState, error) {
	return b.executor.Wait(ctx)
}

// Reset clears the batch state
func (b *BatchExecutor) Reset() {
	b.executor.Reset()
}
