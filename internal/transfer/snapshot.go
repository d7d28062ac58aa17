package transfer

import (
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/feral-file/ff-nft-transfer/internal/domain"
)

// Current action texts of a running transfer
const (
	ActionFailed     = "Transaction failed"
	ActionSigning    = "Waiting for wallet signature..."
	ActionConfirming = "Confirming on blockchain..."
	ActionPreparing  = "Preparing transaction..."
)

// Snapshot is a consistent copy of the orchestrator state with derived progress
type Snapshot struct {
	Phase          Phase
	RunID          ulid.ULID
	Params         *domain.TransferParams
	CurrentIndex   int
	TotalCount     int
	CurrentTokenID *big.Int
	Records        []domain.TransferRecord

	SuccessCount   int
	FailedCount    int
	PendingCount   int
	SubmittedCount int
	ConfirmedCount int

	// FailedTokenID is the token at the cursor while the run is halted
	FailedTokenID *big.Int
	Err           error

	AwaitingSignature    bool
	AwaitingConfirmation bool
	AllSubmitted         bool
	IsComplete           bool

	SubmittedPercent float64
	ConfirmedPercent float64
	Elapsed          time.Duration
}

// IsTransferring reports whether a run is in progress
func (s Snapshot) IsTransferring() bool {
	return s.Phase == PhaseRunning
}

// CurrentAction describes what the run is waiting for
func (s Snapshot) CurrentAction() string {
	switch {
	case s.Err != nil:
		return ActionFailed
	case s.AwaitingSignature:
		return ActionSigning
	case s.AwaitingConfirmation:
		return ActionConfirming
	default:
		return ActionPreparing
	}
}

// Snapshot returns the current state of the run
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Snapshot{
		Phase:        o.phase,
		RunID:        o.runID,
		CurrentIndex: o.cursor,
		TotalCount:   len(o.queue),
		Err:          o.err,
		IsComplete:   o.phase == PhaseComplete,
	}
	if o.params != nil {
		params := *o.params
		s.Params = &params
	}
	if o.cursor < len(o.queue) {
		s.CurrentTokenID = new(big.Int).Set(o.queue[o.cursor])
		if o.haltedLocked() {
			s.FailedTokenID = new(big.Int).Set(o.queue[o.cursor])
		}
	}

	s.Records = make([]domain.TransferRecord, len(o.records))
	for i, r := range o.records {
		s.Records[i] = domain.TransferRecord{
			TokenID: new(big.Int).Set(r.TokenID),
			TxHash:  r.TxHash,
			Status:  r.Status,
		}
	}

	s.SuccessCount, s.FailedCount, s.PendingCount = countStatuses(o.records)
	s.SubmittedCount = len(o.records)
	s.ConfirmedCount = s.SuccessCount + s.FailedCount
	s.AwaitingConfirmation = s.PendingCount > 0
	s.AllSubmitted = s.TotalCount > 0 && s.SubmittedCount == s.TotalCount

	if s.TotalCount > 0 {
		s.SubmittedPercent = float64(s.SubmittedCount) / float64(s.TotalCount) * 100
		s.ConfirmedPercent = float64(s.ConfirmedCount) / float64(s.TotalCount) * 100
	}

	if o.phase == PhaseRunning && o.attemptID != uuid.Nil {
		state := o.executor.State()
		s.AwaitingSignature = state.AttemptID == o.attemptID && state.IsPending
	}
	if o.phase != PhaseIdle {
		s.Elapsed = o.clock.Since(o.startedAt)
	}

	return s
}

func countStatuses(records []domain.TransferRecord) (success, failed, pending int) {
	for _, r := range records {
		switch r.Status {
		case domain.TransferStatusSuccess:
			success++
		case domain.TransferStatusFailed:
			failed++
		case domain.TransferStatusPending:
			pending++
		}
	}
	return success, failed, pending
}
