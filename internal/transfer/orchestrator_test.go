package transfer_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-nft-transfer/internal/adapter"
	"github.com/feral-file/ff-nft-transfer/internal/domain"
	"github.com/feral-file/ff-nft-transfer/internal/transfer"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type testOrchestratorMocks struct {
	ctrl         *gomock.Controller
	chain        *scriptedChain
	orchestrator *transfer.Orchestrator
}

func setupTestOrchestrator(t *testing.T) *testOrchestratorMocks {
	ctrl := gomock.NewController(t)
	chain := newScriptedChain()
	client := newScriptedClient(ctrl, chain)

	return &testOrchestratorMocks{
		ctrl:  ctrl,
		chain: chain,
		orchestrator: transfer.NewOrchestrator(client, adapter.NewClock()),
	}
}

func (m *testOrchestratorMocks) tearDown() {
	m.orchestrator.Close()
	m.ctrl.Finish()
}

func (m *testOrchestratorMocks) start(tokens ...int64) {
	m.orchestrator.StartTransfer(contract, recipient, ids(tokens...), sender)
}

func (m *testOrchestratorMocks) eventually(t *testing.T, cond func(s transfer.Snapshot) bool, msg string) transfer.Snapshot {
	t.Helper()
	var last transfer.Snapshot
	require.Eventually(t, func() bool {
		last = m.orchestrator.Snapshot()
		assertCursorInvariant(t, last)
		return cond(last)
	}, waitFor, tick, msg)
	return last
}

func assertCursorInvariant(t *testing.T, s transfer.Snapshot) {
	assert.LessOrEqual(t, len(s.Records), s.CurrentIndex)
	assert.LessOrEqual(t, s.CurrentIndex, s.TotalCount)
}

func recordTokens(records []domain.TransferRecord) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.TokenID.Int64()
	}
	return out
}

func TestOrchestrator_AllSucceedInOrder(t *testing.T) {
	m := setupTestOrchestrator(t)
	defer m.tearDown()

	m.start(1, 2, 3)

	m.eventually(t, func(s transfer.Snapshot) bool {
		return s.AllSubmitted
	}, "all items should be submitted")
	assert.Equal(t, []int64{1, 2, 3}, m.chain.submissions())

	for _, id := range []int64{1, 2, 3} {
		require.Eventually(t, func() bool { return m.chain.isWatching(id) }, waitFor, tick)
		m.chain.resolve(id, nil)
	}

	s := m.eventually(t, func(s transfer.Snapshot) bool {
		return s.IsComplete
	}, "run should complete")

	require.Len(t, s.Records, 3)
	for i, id := range []int64{1, 2, 3} {
		assert.Equal(t, id, s.Records[i].TokenID.Int64())
		assert.Equal(t, hashFor(id), s.Records[i].TxHash)
		assert.Equal(t, domain.TransferStatusSuccess, s.Records[i].Status)
	}
	assert.Equal(t, transfer.PhaseComplete, s.Phase)
	assert.Equal(t, 3, s.SuccessCount)
	assert.Equal(t, 0, s.FailedCount)
	assert.Equal(t, 0, s.PendingCount)
	assert.Equal(t, float64(100), s.SubmittedPercent)
	assert.Equal(t, float64(100), s.ConfirmedPercent)
	assert.Nil(t, s.CurrentTokenID)
	assert.False(t, s.AwaitingConfirmation)
}

func TestOrchestrator_SkipAfterPreHashFailure(t *testing.T) {
	m := setupTestOrchestrator(t)
	defer m.tearDown()

	m.chain.failSubmission(1, errRejected)
	m.start(1, 2)

	s := m.eventually(t, func(s transfer.Snapshot) bool {
		return s.Err != nil
	}, "run should halt on the first item")
	assert.Equal(t, 0, s.CurrentIndex)
	assert.Empty(t, s.Records)
	require.NotNil(t, s.FailedTokenID)
	assert.Equal(t, int64(1), s.FailedTokenID.Int64())
	assert.Equal(t, transfer.ActionFailed, s.CurrentAction())
	assert.True(t, errors.Is(s.Err, errRejected))

	m.orchestrator.Skip()

	s = m.eventually(t, func(s transfer.Snapshot) bool {
		return s.AllSubmitted
	}, "item 2 should be submitted after skip")
	require.Len(t, s.Records, 2)
	assert.Equal(t, int64(1), s.Records[0].TokenID.Int64())
	assert.Equal(t, domain.SentinelHash, s.Records[0].TxHash)
	assert.Equal(t, domain.TransferStatusFailed, s.Records[0].Status)
	assert.True(t, s.Records[0].Skipped())
	assert.Equal(t, hashFor(2), s.Records[1].TxHash)
	assert.Equal(t, 2, s.CurrentIndex)
	assert.Nil(t, s.Err)
	assert.Equal(t, []int64{1, 2}, m.chain.submissions())

	m.chain.resolve(2, nil)
	s = m.eventually(t, func(s transfer.Snapshot) bool {
		return s.IsComplete
	}, "run should complete")
	assert.Equal(t, 1, s.SuccessCount)
	assert.Equal(t, 1, s.FailedCount)
}

func TestOrchestrator_SkipLastItemCompletes(t *testing.T) {
	m := setupTestOrchestrator(t)
	defer m.tearDown()

	m.chain.failSubmission(1, errRejected)
	m.start(1)

	m.eventually(t, func(s transfer.Snapshot) bool { return s.Err != nil }, "run should halt")
	m.orchestrator.Skip()

	s := m.eventually(t, func(s transfer.Snapshot) bool { return s.IsComplete }, "run should complete")
	require.Len(t, s.Records, 1)
	assert.True(t, s.Records[0].Skipped())
	assert.Equal(t, 1, s.CurrentIndex)
}

func TestOrchestrator_OutOfOrderConfirmations(t *testing.T) {
	m := setupTestOrchestrator(t)
	defer m.tearDown()

	m.start(1, 2)

	m.eventually(t, func(s transfer.Snapshot) bool { return s.AllSubmitted }, "both items should be submitted")
	require.Eventually(t, func() bool { return m.chain.isWatching(1) && m.chain.isWatching(2) }, waitFor, tick)

	m.chain.resolve(2, nil)
	s := m.eventually(t, func(s transfer.Snapshot) bool {
		return len(s.Records) == 2 && s.Records[1].Status == domain.TransferStatusSuccess
	}, "item 2 should confirm first")
	assert.Equal(t, domain.TransferStatusPending, s.Records[0].Status)
	assert.False(t, s.IsComplete)
	assert.True(t, s.AwaitingConfirmation)
	assert.Equal(t, transfer.ActionConfirming, s.CurrentAction())
	assert.Equal(t, float64(50), s.ConfirmedPercent)

	m.chain.resolve(1, nil)
	s = m.eventually(t, func(s transfer.Snapshot) bool { return s.IsComplete }, "run should complete")
	assert.Equal(t, domain.TransferStatusSuccess, s.Records[0].Status)
	assert.Equal(t, domain.TransferStatusSuccess, s.Records[1].Status)
}

func TestOrchestrator_WatchesEveryPendingHash(t *testing.T) {
	m := setupTestOrchestrator(t)
	defer m.tearDown()

	tokens := make([]int64, 20)
	for i := range tokens {
		tokens[i] = int64(i + 1)
	}
	m.start(tokens...)

	m.eventually(t, func(s transfer.Snapshot) bool { return s.AllSubmitted }, "all items should be submitted")
	for _, id := range tokens {
		require.Eventually(t, func() bool { return m.chain.isWatching(id) }, waitFor, tick, "token %d should be watched", id)
	}

	// the last submission confirms while every earlier one is still pending
	m.chain.resolve(20, nil)
	s := m.eventually(t, func(s transfer.Snapshot) bool {
		return s.Records[19].Status == domain.TransferStatusSuccess
	}, "last item should confirm first")
	assert.Equal(t, 19, s.PendingCount)
	assert.False(t, s.IsComplete)

	for _, id := range tokens[:19] {
		m.chain.resolve(id, nil)
	}
	s = m.eventually(t, func(s transfer.Snapshot) bool { return s.IsComplete }, "run should complete")
	assert.Equal(t, 20, s.SuccessCount)
}

func TestOrchestrator_RevertMarksOnlyThatRecord(t *testing.T) {
	m := setupTestOrchestrator(t)
	defer m.tearDown()

	m.start(1, 2, 3)
	m.eventually(t, func(s transfer.Snapshot) bool { return s.AllSubmitted }, "all items should be submitted")

	for _, id := range []int64{1, 2, 3} {
		require.Eventually(t, func() bool { return m.chain.isWatching(id) }, waitFor, tick)
	}
	m.chain.resolve(2, revertErr(2))
	m.chain.resolve(1, nil)
	m.chain.resolve(3, nil)

	s := m.eventually(t, func(s transfer.Snapshot) bool { return s.IsComplete }, "run should complete")
	assert.Equal(t, domain.TransferStatusSuccess, s.Records[0].Status)
	assert.Equal(t, domain.TransferStatusFailed, s.Records[1].Status)
	assert.Equal(t, hashFor(2), s.Records[1].TxHash)
	assert.False(t, s.Records[1].Skipped())
	assert.Equal(t, domain.TransferStatusSuccess, s.Records[2].Status)
	assert.Nil(t, s.Err)
}

func TestOrchestrator_RetryKeepsCursorAndRecords(t *testing.T) {
	m := setupTestOrchestrator(t)
	defer m.tearDown()

	m.chain.failSubmission(2, errRejected, errRejected)
	m.start(1, 2)

	s := m.eventually(t, func(s transfer.Snapshot) bool { return s.Err != nil }, "run should halt on item 2")
	assert.Equal(t, 1, s.CurrentIndex)
	require.Len(t, s.Records, 1)
	before := s.Records

	m.orchestrator.Retry()
	s = m.eventually(t, func(s transfer.Snapshot) bool {
		return s.Err != nil && len(m.chain.submissions()) == 3
	}, "retry should fail again")
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, before, s.Records)

	m.orchestrator.Retry()
	s = m.eventually(t, func(s transfer.Snapshot) bool { return s.AllSubmitted }, "retry should succeed")
	assert.Equal(t, 2, s.CurrentIndex)
	assert.Equal(t, []int64{1, 2, 2, 2}, m.chain.submissions())
	assert.Equal(t, []int64{1, 2}, recordTokens(s.Records))
}

func TestOrchestrator_RetryAndSkipIgnoredWithoutFailure(t *testing.T) {
	m := setupTestOrchestrator(t)
	defer m.tearDown()

	// idle
	m.orchestrator.Retry()
	m.orchestrator.Skip()
	assert.Equal(t, transfer.PhaseIdle, m.orchestrator.Snapshot().Phase)

	m.start(1, 2)
	m.eventually(t, func(s transfer.Snapshot) bool { return s.AllSubmitted }, "all items should be submitted")

	m.orchestrator.Skip()
	m.orchestrator.Retry()

	s := m.orchestrator.Snapshot()
	assert.Len(t, s.Records, 2)
	for _, r := range s.Records {
		assert.False(t, r.Skipped())
	}
	assert.Equal(t, []int64{1, 2}, m.chain.submissions())
}

func TestOrchestrator_ResetIgnoresStaleConfirmation(t *testing.T) {
	m := setupTestOrchestrator(t)
	defer m.tearDown()

	m.start(1)
	m.eventually(t, func(s transfer.Snapshot) bool { return s.AllSubmitted }, "item should be submitted")
	require.Eventually(t, func() bool { return m.chain.isWatching(1) }, waitFor, tick)

	m.orchestrator.Reset()

	m.chain.resolve(1, nil)
	time.Sleep(50 * time.Millisecond)

	s := m.orchestrator.Snapshot()
	assert.Equal(t, transfer.PhaseIdle, s.Phase)
	assert.Empty(t, s.Records)
	assert.Equal(t, 0, s.CurrentIndex)
	assert.Equal(t, 0, s.TotalCount)
	assert.Nil(t, s.Params)
	assert.Nil(t, s.Err)
}

func TestOrchestrator_StaleConfirmationDoesNotTouchNewRun(t *testing.T) {
	m := setupTestOrchestrator(t)
	defer m.tearDown()

	m.start(1)
	m.eventually(t, func(s transfer.Snapshot) bool { return s.AllSubmitted }, "item should be submitted")
	require.Eventually(t, func() bool { return m.chain.isWatching(1) }, waitFor, tick)
	firstRun := m.orchestrator.Snapshot().RunID

	m.orchestrator.Reset()

	// same token and therefore same hash in the new run
	m.start(1)
	s := m.eventually(t, func(s transfer.Snapshot) bool { return s.AllSubmitted }, "item should be submitted again")
	assert.NotEqual(t, firstRun, s.RunID)

	// the old watcher was cancelled by reset, only the new watcher receives this
	m.chain.resolve(1, nil)
	s = m.eventually(t, func(s transfer.Snapshot) bool { return s.IsComplete }, "new run should complete")
	require.Len(t, s.Records, 1)
	assert.Equal(t, domain.TransferStatusSuccess, s.Records[0].Status)
}

func TestOrchestrator_ResetWhileAwaitingSignature(t *testing.T) {
	m := setupTestOrchestrator(t)
	defer m.tearDown()

	hold := make(chan struct{})
	m.chain.holdSubmit = hold
	m.start(1, 2)

	s := m.eventually(t, func(s transfer.Snapshot) bool { return s.AwaitingSignature }, "should wait for the signature")
	assert.Equal(t, transfer.ActionSigning, s.CurrentAction())

	m.orchestrator.Reset()
	close(hold)
	time.Sleep(50 * time.Millisecond)

	s = m.orchestrator.Snapshot()
	assert.Equal(t, transfer.PhaseIdle, s.Phase)
	assert.Empty(t, s.Records)
	assert.False(t, s.AwaitingSignature)
}

func TestOrchestrator_SubmissionsNeverOverlap(t *testing.T) {
	m := setupTestOrchestrator(t)
	defer m.tearDown()

	tokens := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	m.chain.failSubmission(4, errRejected)
	m.start(tokens...)

	m.eventually(t, func(s transfer.Snapshot) bool { return s.Err != nil }, "run should halt on item 4")
	m.orchestrator.Retry()
	m.eventually(t, func(s transfer.Snapshot) bool { return s.AllSubmitted }, "all items should be submitted")

	for _, id := range tokens {
		require.Eventually(t, func() bool { return m.chain.isWatching(id) }, waitFor, tick)
		m.chain.resolve(id, nil)
	}
	s := m.eventually(t, func(s transfer.Snapshot) bool { return s.IsComplete }, "run should complete")

	assert.Equal(t, 1, m.chain.peakInFlight())
	assert.Equal(t, tokens, recordTokens(s.Records))
	assert.Equal(t, len(tokens), s.SuccessCount)
}

func TestOrchestrator_StartTransferNoOp(t *testing.T) {
	m := setupTestOrchestrator(t)
	defer m.tearDown()

	m.orchestrator.StartTransfer(contract, recipient, nil, sender)
	m.orchestrator.StartTransfer(contract, recipient, []*big.Int{}, sender)
	s := m.orchestrator.Snapshot()
	assert.Equal(t, transfer.PhaseIdle, s.Phase)
	assert.Empty(t, m.chain.submissions())

	m.start(1)
	m.eventually(t, func(s transfer.Snapshot) bool { return s.AllSubmitted }, "item should be submitted")

	// a second start while running is ignored
	m.start(5, 6)
	s = m.orchestrator.Snapshot()
	assert.Equal(t, 1, s.TotalCount)
	assert.Equal(t, []int64{1}, m.chain.submissions())
}

func TestOrchestrator_Changed(t *testing.T) {
	m := setupTestOrchestrator(t)
	defer m.tearDown()

	m.start(1)

	select {
	case <-m.orchestrator.Changed():
	case <-time.After(waitFor):
		t.Fatal("expected a change notification")
	}
}
