package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/feral-file/ff-nft-transfer/internal/domain"
	"github.com/feral-file/ff-nft-transfer/internal/transfer"
)

// submissionReporter prints each milestone of a single submission once
type submissionReporter struct {
	console *console
	chain   domain.Chain

	mu       sync.Mutex
	attempt  uuid.UUID
	signing  bool
	hashSeen bool
}

func newSubmissionReporter(c *console, chain domain.Chain) *submissionReporter {
	return &submissionReporter{console: c, chain: chain}
}

func (r *submissionReporter) observe(state transfer.ExecutorState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state.AttemptID != r.attempt {
		r.attempt = state.AttemptID
		r.signing = false
		r.hashSeen = false
	}
	if state.IsPending && !r.signing {
		r.signing = true
		r.console.Printf("%s\n", transfer.ActionSigning)
	}
	if state.HasHash() && !r.hashSeen {
		r.hashSeen = true
		r.console.Printf("Submitted %s\n  %s\n", state.Hash.Hex(), domain.ExplorerTxURL(r.chain, state.Hash.Hex()))
		if state.IsConfirming {
			r.console.Printf("%s\n", transfer.ActionConfirming)
		}
	}
}

func (r *submissionReporter) result(state transfer.ExecutorState) error {
	if state.Err != nil {
		if state.HasHash() {
			return fmt.Errorf("transaction %s failed: %w", state.Hash.Hex(), state.Err)
		}
		return fmt.Errorf("transaction not submitted: %w", state.Err)
	}
	if state.IsSuccess {
		r.console.Printf("Confirmed %s\n", state.Hash.Hex())
	}
	return nil
}

// progressLine renders one line of multi-item progress
func progressLine(s transfer.Snapshot) string {
	line := fmt.Sprintf("[%d/%d submitted, %d/%d confirmed: %d succeeded, %d failed] ",
		s.SubmittedCount, s.TotalCount, s.ConfirmedCount, s.TotalCount, s.SuccessCount, s.FailedCount)

	switch {
	case s.IsComplete:
		return line + "Done"
	case s.Err != nil && s.FailedTokenID != nil:
		return line + fmt.Sprintf("%s for #%s: %v", transfer.ActionFailed, s.FailedTokenID, s.Err)
	case s.AllSubmitted:
		return line + transfer.ActionConfirming
	case s.CurrentTokenID != nil:
		return line + fmt.Sprintf("#%s: %s", s.CurrentTokenID, s.CurrentAction())
	default:
		return line + s.CurrentAction()
	}
}

// summary renders the per-token outcome of a run
func summary(chain domain.Chain, records []domain.TransferRecord) string {
	var b strings.Builder
	for _, r := range records {
		if r.Skipped() {
			fmt.Fprintf(&b, "  #%s  skipped\n", r.TokenID)
			continue
		}
		fmt.Fprintf(&b, "  #%s  %s  %s\n", r.TokenID, r.Status, domain.ExplorerTxURL(chain, r.HashHex()))
	}
	return b.String()
}
