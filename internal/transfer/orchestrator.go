package transfer

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feral-file/ff-nft-transfer/internal/adapter"
	"github.com/feral-file/ff-nft-transfer/internal/domain"
	"github.com/feral-file/ff-nft-transfer/internal/logger"
	"github.com/feral-file/ff-nft-transfer/internal/providers/ethereum"
)

// Phase is the lifecycle phase of a multi-item run
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseRunning  Phase = "running"
	PhaseComplete Phase = "complete"
)

// Orchestrator transfers a list of ERC721 tokens one transaction at a time.
// Submissions are sequential, confirmations are tracked concurrently, and a
// failure before a hash is obtained halts the run until Retry or Skip.
type Orchestrator struct {
	client   ethereum.EthereumClient
	executor *Executor
	clock    adapter.Clock
	pool     pond.Pool

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu        sync.Mutex
	phase     Phase
	runID     ulid.ULID
	runCtx    context.Context
	runCancel context.CancelFunc
	startedAt time.Time
	queue     []*big.Int
	cursor    int
	records   []domain.TransferRecord
	params    *domain.TransferParams
	attemptID uuid.UUID
	err       error

	changed chan struct{}
}

// NewOrchestrator creates a new multi-item ERC721 transfer orchestrator
func NewOrchestrator(client ethereum.EthereumClient, clock adapter.Clock) *Orchestrator {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		client:     client,
		clock:      clock,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		phase:      PhaseIdle,
		changed:    make(chan struct{}, 1),
	}
	// unbounded: every pending hash is watched at once, however long the queue
	o.pool = pond.NewPool(0, pond.WithContext(baseCtx))
	o.executor = NewExecutor(client, WithConfirmation(false), WithObserver(o.onSubmission))

	return o
}

// StartTransfer begins a run over tokenIDs. It is a no-op for an empty list
// or while a previous run has not been reset.
func (o *Orchestrator) StartTransfer(contract, recipient common.Address, tokenIDs []*big.Int, sender common.Address) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(tokenIDs) == 0 || o.phase != PhaseIdle {
		return
	}

	o.queue = make([]*big.Int, len(tokenIDs))
	for i, id := range tokenIDs {
		o.queue[i] = new(big.Int).Set(id)
	}
	o.cursor = 0
	o.records = make([]domain.TransferRecord, 0, len(tokenIDs))
	o.params = &domain.TransferParams{
		ContractAddress: contract,
		Recipient:       recipient,
		Sender:          sender,
	}
	o.err = nil
	o.startedAt = o.clock.Now()
	o.runID = ulid.MustNewDefault(o.startedAt)
	o.runCtx, o.runCancel = context.WithCancel(o.baseCtx)
	o.phase = PhaseRunning

	logger.InfoCtx(o.runCtx, "Multi-item transfer started",
		zap.String("runID", o.runID.String()),
		zap.String("contract", contract.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.Int("items", len(o.queue)),
	)

	o.submitCurrentLocked()
	o.signal()
}

// Retry re-submits the item at the cursor after a failure that produced no hash
func (o *Orchestrator) Retry() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.haltedLocked() {
		return
	}

	logger.InfoCtx(o.runCtx, "Retrying transfer",
		zap.String("runID", o.runID.String()),
		zap.String("tokenID", o.queue[o.cursor].String()),
	)

	o.err = nil
	o.executor.Reset()
	o.submitCurrentLocked()
	o.signal()
}

// Skip records the item at the cursor as failed without a transaction and moves on
func (o *Orchestrator) Skip() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.haltedLocked() {
		return
	}

	tokenID := o.queue[o.cursor]
	logger.InfoCtx(o.runCtx, "Skipping transfer",
		zap.String("runID", o.runID.String()),
		zap.String("tokenID", tokenID.String()),
		zap.NamedError("cause", o.err),
	)

	o.records = append(o.records, domain.TransferRecord{
		TokenID: tokenID,
		TxHash:  domain.SentinelHash,
		Status:  domain.TransferStatusFailed,
	})
	o.err = nil
	o.attemptID = uuid.Nil
	o.executor.Reset()
	o.cursor++
	o.advanceLocked()
	o.signal()
}

// Reset abandons the run and returns to idle. Late results of the old run are ignored.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.resetLocked()
	o.signal()
}

func (o *Orchestrator) resetLocked() {
	if o.runCancel != nil {
		o.runCancel()
		o.runCancel = nil
	}
	o.executor.Reset()

	o.phase = PhaseIdle
	o.runID = ulid.ULID{}
	o.runCtx = nil
	o.queue = nil
	o.cursor = 0
	o.records = nil
	o.params = nil
	o.attemptID = uuid.Nil
	o.err = nil
}

// Close resets the orchestrator and stops the confirmation watchers
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.resetLocked()
	o.mu.Unlock()

	o.baseCancel()
	o.pool.StopAndWait()
}

// Changed signals that the state may have changed. Signals are coalesced,
// consumers should read Snapshot after receiving one.
func (o *Orchestrator) Changed() <-chan struct{} {
	return o.changed
}

func (o *Orchestrator) signal() {
	select {
	case o.changed <- struct{}{}:
	default:
	}
}

// haltedLocked reports the pre-hash failure condition in which Retry and Skip apply
func (o *Orchestrator) haltedLocked() bool {
	return o.phase == PhaseRunning && o.err != nil && o.cursor < len(o.queue)
}

func (o *Orchestrator) submitCurrentLocked() {
	tokenID := o.queue[o.cursor]
	call := ERC721Transfer(o.params.ContractAddress, o.params.Sender, o.params.Recipient, tokenID)
	o.attemptID = o.executor.Submit(o.runCtx, call)

	logger.DebugCtx(o.runCtx, "Submitting transfer",
		zap.String("runID", o.runID.String()),
		zap.String("attemptID", o.attemptID.String()),
		zap.Int("index", o.cursor),
		zap.String("tokenID", tokenID.String()),
	)
}

// advanceLocked submits the next item, or checks for completion once the queue is exhausted
func (o *Orchestrator) advanceLocked() {
	if o.cursor < len(o.queue) {
		o.submitCurrentLocked()
		return
	}
	o.evaluateCompletionLocked()
}

func (o *Orchestrator) evaluateCompletionLocked() {
	if o.phase != PhaseRunning || len(o.records) != len(o.queue) {
		return
	}
	for _, r := range o.records {
		if r.Status == domain.TransferStatusPending {
			return
		}
	}

	o.phase = PhaseComplete
	success, failed, _ := countStatuses(o.records)
	logger.InfoCtx(o.runCtx, "Multi-item transfer complete",
		zap.String("runID", o.runID.String()),
		zap.Int("success", success),
		zap.Int("failed", failed),
		zap.Duration("elapsed", o.clock.Since(o.startedAt)),
	)
}

// onSubmission receives executor updates for the item at the cursor
func (o *Orchestrator) onSubmission(state ExecutorState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase != PhaseRunning || o.attemptID == uuid.Nil || state.AttemptID != o.attemptID {
		return
	}

	switch {
	case state.HasHash():
		tokenID := o.queue[o.cursor]
		o.records = append(o.records, domain.TransferRecord{
			TokenID: tokenID,
			TxHash:  state.Hash,
			Status:  domain.TransferStatusPending,
		})
		o.watchLocked(state.Hash)
		o.attemptID = uuid.Nil
		o.cursor++
		o.advanceLocked()
	case state.Err != nil:
		o.err = state.Err
		logger.WarnCtx(o.runCtx, "Transfer halted before broadcast",
			zap.String("runID", o.runID.String()),
			zap.String("tokenID", o.queue[o.cursor].String()),
			zap.Error(state.Err),
		)
	}

	o.signal()
}

// watchLocked starts an independent confirmation watcher bound to the current run
func (o *Orchestrator) watchLocked(hash common.Hash) {
	runID := o.runID
	runCtx := o.runCtx

	o.pool.Submit(func() {
		_, err := o.client.AwaitConfirmation(runCtx, hash)
		o.onConfirmation(runID, hash, err)
	})
}

func (o *Orchestrator) onConfirmation(runID ulid.ULID, hash common.Hash, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase == PhaseIdle || o.runID != runID {
		return
	}

	for i := range o.records {
		r := &o.records[i]
		if r.TxHash != hash || r.Status != domain.TransferStatusPending {
			continue
		}

		if err != nil {
			r.Status = domain.TransferStatusFailed
			if !errors.Is(err, domain.ErrTransactionReverted) {
				logger.ErrorCtx(o.runCtx, err, zap.String("runID", runID.String()), zap.String("txHash", hash.Hex()))
			}
		} else {
			r.Status = domain.TransferStatusSuccess
		}

		logger.InfoCtx(o.runCtx, "Transfer resolved",
			zap.String("runID", runID.String()),
			zap.String("tokenID", r.TokenID.String()),
			zap.String("txHash", hash.Hex()),
			zap.String("status", string(r.Status)),
		)
		break
	}

	o.evaluateCompletionLocked()
	o.signal()
}
