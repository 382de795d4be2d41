package retryscheduler

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// resubmitRecorder collects resubmission invocations in arrival order.
type resubmitRecorder struct {
	mu    sync.Mutex
	calls []resubmitCall
}

type resubmitCall struct {
	transactionID string
	attempt       int
}

func (r *resubmitRecorder) resubmit(ctx context.Context, transactionID string, attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, resubmitCall{transactionID: transactionID, attempt: attempt})
}

func (r *resubmitRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *resubmitRecorder) call(i int) resubmitCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

type countingRetryRecorder struct {
	mu        sync.Mutex
	scheduled int
}

func (r *countingRetryRecorder) RecordRetryScheduled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled++
}

func (r *countingRetryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scheduled
}

func schedulerTestSetup(t *testing.T, baseDelay time.Duration, maxAttempts int) (*resubmitRecorder, *countingRetryRecorder, Scheduler) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	resubmits := &resubmitRecorder{}
	recorder := &countingRetryRecorder{}
	sched := NewScheduler(baseDelay, maxAttempts, resubmits.resubmit, recorder, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(sched.Stop)
	assert.NoError(t, sched.Start(ctx))

	return resubmits, recorder, sched
}

func retryTestTransaction(id string, attempt int) *types.Transaction {
	return &types.Transaction{
		ID:          id,
		SourceChain: 0,
		DestChain:   1000,
		Asset:       "dot",
		Amount:      big.NewInt(1_000_000_000_000),
		Kind:        types.KindTeleport,
		Status:      types.StatusFailed,
		Attempt:     attempt,
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestScheduleRetryFatalErrorNeverRetries(t *testing.T) {
	resubmits, recorder, sched := schedulerTestSetup(t, 5*time.Millisecond, 5)

	fatal := errors.Wrap(cerrors.ErrValidation, "amount must be positive")
	state, err := sched.ScheduleRetry(retryTestTransaction("tx-1", 1), fatal)

	assert.Nil(t, state)
	assert.ErrorIs(t, err, cerrors.ErrValidation)
	assert.False(t, sched.Cancel("tx-1"), "no timer should be armed for a fatal error")
	assert.Zero(t, recorder.count())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, resubmits.count())
}

func TestScheduleRetryEscalatedSubmissionIsFatal(t *testing.T) {
	_, _, sched := schedulerTestSetup(t, 5*time.Millisecond, 5)

	escalated := errors.Wrap(cerrors.ErrInsufficientBalance, "account 5Grw... cannot pay fees")
	state, err := sched.ScheduleRetry(retryTestTransaction("tx-1", 1), escalated)

	assert.Nil(t, state)
	assert.ErrorIs(t, err, cerrors.ErrInsufficientBalance)
}

func TestScheduleRetryExhaustedBudget(t *testing.T) {
	resubmits, _, sched := schedulerTestSetup(t, 5*time.Millisecond, 3)

	cause := errors.Wrap(cerrors.ErrConnection, "node unreachable")
	state, err := sched.ScheduleRetry(retryTestTransaction("tx-1", 3), cause)

	assert.Nil(t, state)
	assert.ErrorIs(t, err, cerrors.ErrMaxRetries)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, resubmits.count())
}

func TestScheduleRetryArmsTimerAndResubmits(t *testing.T) {
	resubmits, recorder, sched := schedulerTestSetup(t, 10*time.Millisecond, 5)

	before := time.Now()
	cause := errors.Wrap(cerrors.ErrTimeout, "finality wait expired")
	state, err := sched.ScheduleRetry(retryTestTransaction("tx-1", 1), cause)

	assert.NoError(t, err)
	assert.Equal(t, "tx-1", state.TransactionID)
	assert.Equal(t, 1, state.Attempt)
	assert.Equal(t, 10*time.Millisecond, state.BaseDelay)
	// One completed attempt doubles the base once.
	assert.GreaterOrEqual(t, state.NextEligibleTime.Sub(before), 20*time.Millisecond)

	assert.True(t, waitUntil(t, 2*time.Second, func() bool {
		return resubmits.count() == 1
	}), "expected the timer to fire")

	fired := resubmits.call(0)
	assert.Equal(t, "tx-1", fired.transactionID)
	assert.Equal(t, 2, fired.attempt)
	assert.Equal(t, 1, recorder.count())
}

func TestScheduleRetryDelayGrowsExponentially(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	// Not started: timers stay armed so the computed deadlines can be read.
	sched := NewScheduler(time.Second, 10, nil, nil, logger)
	cause := errors.Wrap(cerrors.ErrConnection, "node unreachable")

	for attempt, want := range map[int]time.Duration{
		1: 2 * time.Second,
		2: 4 * time.Second,
		3: 8 * time.Second,
		4: 16 * time.Second,
	} {
		before := time.Now()
		state, err := sched.ScheduleRetry(retryTestTransaction("tx-1", attempt), cause)
		assert.NoError(t, err)

		delay := state.NextEligibleTime.Sub(before)
		assert.GreaterOrEqual(t, delay, want)
		assert.Less(t, delay, want+100*time.Millisecond)
	}
}

func TestCancelDisarmsPendingTimer(t *testing.T) {
	resubmits, _, sched := schedulerTestSetup(t, 10*time.Millisecond, 5)

	cause := errors.Wrap(cerrors.ErrConnection, "node unreachable")
	_, err := sched.ScheduleRetry(retryTestTransaction("tx-1", 1), cause)
	assert.NoError(t, err)

	assert.True(t, sched.Cancel("tx-1"))
	assert.False(t, sched.Cancel("tx-1"), "second cancel finds nothing armed")

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, resubmits.count(), "a cancelled transaction must not resubmit")
}

func TestTimersFireInDeadlineOrder(t *testing.T) {
	resubmits, _, sched := schedulerTestSetup(t, 10*time.Millisecond, 5)

	cause := errors.Wrap(cerrors.ErrConnection, "node unreachable")

	// tx-slow armed first but with a later deadline than tx-fast.
	_, err := sched.ScheduleRetry(retryTestTransaction("tx-slow", 4), cause)
	assert.NoError(t, err)
	_, err = sched.ScheduleRetry(retryTestTransaction("tx-fast", 1), cause)
	assert.NoError(t, err)

	assert.True(t, waitUntil(t, 2*time.Second, func() bool {
		return resubmits.count() == 2
	}), "expected both timers to fire")

	assert.Equal(t, "tx-fast", resubmits.call(0).transactionID)
	assert.Equal(t, "tx-slow", resubmits.call(1).transactionID)
}

func TestStartTwice(t *testing.T) {
	_, _, sched := schedulerTestSetup(t, 10*time.Millisecond, 5)

	assert.Error(t, sched.Start(context.Background()))
	sched.Stop()
	assert.NoError(t, sched.Start(context.Background()))
}

func TestStopPreventsFiring(t *testing.T) {
	resubmits, _, sched := schedulerTestSetup(t, 10*time.Millisecond, 5)

	cause := errors.Wrap(cerrors.ErrConnection, "node unreachable")
	_, err := sched.ScheduleRetry(retryTestTransaction("tx-1", 1), cause)
	assert.NoError(t, err)

	sched.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, resubmits.count())
}

func TestSetRecorderAttachesLate(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	resubmits := &resubmitRecorder{}
	sched := NewScheduler(10*time.Millisecond, 5, resubmits.resubmit, nil, logger)

	recorder := &countingRetryRecorder{}
	sched.SetRecorder(recorder)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(sched.Stop)
	assert.NoError(t, sched.Start(ctx))

	cause := errors.Wrap(cerrors.ErrConnection, "node unreachable")
	_, err := sched.ScheduleRetry(retryTestTransaction("tx-1", 1), cause)
	assert.NoError(t, err)
	assert.Equal(t, 1, recorder.count())
}
