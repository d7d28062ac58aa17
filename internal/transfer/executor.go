package transfer

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feral-file/ff-nft-transfer/internal/logger"
	"github.com/feral-file/ff-nft-transfer/internal/providers/ethereum"
)

// ExecutorState is the lifecycle of the latest submission
type ExecutorState struct {
	AttemptID uuid.UUID
	// Hash is set once the wallet has signed and the transaction was broadcast
	Hash common.Hash
	// IsPending is true while waiting for the wallet signature and the broadcast
	IsPending    bool
	IsConfirming bool
	IsSuccess    bool
	// Err holds the submission error, or the confirmation error after a hash was obtained
	Err error
}

// HasHash reports whether the submission reached the network
func (s ExecutorState) HasHash() bool {
	return s.Hash != (common.Hash{})
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithObserver registers a callback invoked from the submission goroutine on every state change.
// It is never called while the executor holds its lock.
func WithObserver(fn func(ExecutorState)) ExecutorOption {
	return func(e *Executor) {
		e.observer = fn
	}
}

// WithConfirmation controls whether the executor waits for the receipt.
// When disabled the attempt ends at the hash and the caller tracks the confirmation.
func WithConfirmation(enabled bool) ExecutorOption {
	return func(e *Executor) {
		e.confirm = enabled
	}
}

// Executor submits one transaction at a time and tracks its lifecycle
type Executor struct {
	client   ethereum.EthereumClient
	observer func(ExecutorState)
	confirm  bool

	mu     sync.Mutex
	state  ExecutorState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewExecutor creates a new single transaction executor
func NewExecutor(client ethereum.EthereumClient, opts ...ExecutorOption) *Executor {
	e := &Executor{
		client:  client,
		confirm: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit starts a new attempt in the background and returns its ID.
// Any previous attempt is detached.
func (e *Executor) Submit(ctx context.Context, call Call) uuid.UUID {
	attemptID := uuid.New()
	attemptCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.cancel = cancel
	e.done = done
	e.state = ExecutorState{AttemptID: attemptID, IsPending: true}
	e.mu.Unlock()

	go e.run(attemptCtx, attemptID, call, done)

	return attemptID
}

func (e *Executor) run(ctx context.Context, attemptID uuid.UUID, call Call, done chan struct{}) {
	defer close(done)

	// publish the pending state before the wallet prompt blocks
	if !e.update(attemptID, func(*ExecutorState) {}) {
		return
	}

	hash, err := e.client.SubmitTransaction(ctx, call.Contract, call.Signature, call.Args)
	if err != nil {
		logger.WarnCtx(ctx, "Transaction submission failed",
			zap.String("attemptID", attemptID.String()),
			zap.String("method", call.Signature),
			zap.Error(err),
		)
		e.update(attemptID, func(s *ExecutorState) {
			s.IsPending = false
			s.Err = err
		})
		return
	}

	if !e.update(attemptID, func(s *ExecutorState) {
		s.IsPending = false
		s.Hash = hash
		s.IsConfirming = e.confirm
	}) {
		return
	}

	if !e.confirm {
		return
	}

	_, err = e.client.AwaitConfirmation(ctx, hash)
	e.update(attemptID, func(s *ExecutorState) {
		s.IsConfirming = false
		if err != nil {
			s.Err = err
			return
		}
		s.IsSuccess = true
	})
}

// update mutates the state if the attempt is still current, then notifies the observer
func (e *Executor) update(attemptID uuid.UUID, fn func(*ExecutorState)) bool {
	e.mu.Lock()
	if e.state.AttemptID != attemptID {
		e.mu.Unlock()
		return false
	}
	fn(&e.state)
	snapshot := e.state
	e.mu.Unlock()

	if e.observer != nil {
		e.observer(snapshot)
	}
	return true
}

// State returns the state of the current attempt
func (e *Executor) State() ExecutorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Wait blocks until the current attempt ends or ctx is done
func (e *Executor) Wait(ctx context.Context) (ExecutorState, error) {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()

	if done == nil {
		return e.State(), nil
	}

	select {
	case <-done:
		return e.State(), nil
	case <-ctx.Done():
		return e.State(), ctx.Err()
	}
}

// Reset clears the state and detaches the current attempt, whose late results are discarded
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.done = nil
	e.state = ExecutorState{}
}
