// Package retryscheduler arms bounded exponential-backoff timers for
// transactions that failed retryably and re-invokes the orchestrator's
// submission path when they expire. It is the sole place the attempt
// ceiling is enforced.
package retryscheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// defaultBaseDelay defines the backoff base when the caller does not set one.
	defaultBaseDelay = 5 * time.Second
	// defaultMaxAttempts defines the total submission attempt budget per transaction.
	defaultMaxAttempts = 5
)

// ResubmitFunc re-enters the orchestrator's submission path for a transaction
// whose retry timer expired. The callback must check the transaction's state
// itself: a timer racing a concurrent cancellation may still fire, and the
// resubmission must then be a no-op.
type ResubmitFunc func(ctx context.Context, transactionID string, attempt int)

// Recorder counts scheduled retries. Implemented by the metrics collector.
type Recorder interface {
	RecordRetryScheduled()
}

// Scheduler represents the bounded retry timer interface.
type Scheduler interface {
	// Start starts the timer loop.
	Start(ctx context.Context) error
	// Stop stops the timer loop. Pending timers never fire after Stop.
	Stop()
	// ScheduleRetry classifies the failure and arms a retry timer when the
	// transaction has attempt budget left.
	ScheduleRetry(tx *types.Transaction, cause error) (*types.RetryState, error)
	// Cancel disarms the pending retry timer for a transaction, if any.
	Cancel(transactionID string) bool
	// SetRecorder attaches the metrics recorder. Must be called before Start.
	SetRecorder(recorder Recorder)
}

// retryEntry is one armed timer in the deadline heap.
type retryEntry struct {
	transactionID string
	attempt       int
	at            time.Time
	index         int
}

// retryQueue is a min-heap of entries ordered by deadline.
type retryQueue []*retryEntry

func (q retryQueue) Len() int { return len(q) }

func (q retryQueue) Less(i, j int) bool { return q[i].at.Before(q[j].at) }

func (q retryQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *retryQueue) Push(x interface{}) {
	entry := x.(*retryEntry)
	entry.index = len(*q)
	*q = append(*q, entry)
}

func (q *retryQueue) Pop() interface{} {
	old := *q
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return entry
}

type scheduler struct {
	baseDelay   time.Duration
	maxAttempts int
	resubmit    ResubmitFunc
	recorder    Recorder
	logger      *logrus.Logger

	queueMutex sync.Mutex             // protects queue and entries
	queue      retryQueue             // armed timers ordered by deadline
	entries    map[string]*retryEntry // armed timers keyed by transaction id

	wake       chan struct{} // pokes the timer loop after queue changes
	stopChan   chan struct{}
	isRunning  bool
	stateMutex sync.Mutex // protects stopChan and isRunning
}

// NewScheduler creates a new retry scheduler instance.
//
// Parameters:
// - baseDelay: the backoff base; the delay before the next attempt is
// baseDelay doubled once per completed attempt. Zero selects the default.
// - maxAttempts: the total submission attempt budget per transaction. Zero
// selects the default.
// - resubmit: the orchestrator callback invoked when a timer expires.
// - recorder: the optional metrics recorder.
// - logger: the logger for logging purposes.
//
// Returns:
// - Scheduler: the new retry scheduler instance.
func NewScheduler(
	baseDelay time.Duration,
	maxAttempts int,
	resubmit ResubmitFunc,
	recorder Recorder,
	logger *logrus.Logger,
) Scheduler {
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &scheduler{
		baseDelay:   baseDelay,
		maxAttempts: maxAttempts,
		resubmit:    resubmit,
		recorder:    recorder,
		logger:      logger,
		queue:       make(retryQueue, 0),
		entries:     make(map[string]*retryEntry),
		wake:        make(chan struct{}, 1),
	}
}

// Start starts the timer loop.
//
// Parameters:
// - ctx: the context the loop and every resubmission run under.
//
// Returns:
// - error: an error if the scheduler is already running.
func (s *scheduler) Start(ctx context.Context) error {
	s.stateMutex.Lock()
	if s.isRunning {
		s.stateMutex.Unlock()
		return errors.New("retry scheduler is already running")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	stopChan := s.stopChan
	s.stateMutex.Unlock()

	go s.run(ctx, stopChan)
	return nil
}

// Stop stops the timer loop. Armed timers stay in the heap but never fire.
func (s *scheduler) Stop() {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	if !s.isRunning {
		return
	}

	close(s.stopChan)
	s.isRunning = false
}

// ScheduleRetry classifies cause and, for a retryable failure within the
// attempt budget, arms a timer for baseDelay doubled once per completed
// attempt. tx.Attempt must be the number of completed submission attempts.
//
// Parameters:
// - tx: the failed transaction.
// - cause: the failure to classify.
//
// Returns:
// - *types.RetryState: the armed retry, nil when cause is terminal.
// - error: cause unchanged for fatal failures, a max-retries error when the
// attempt budget is exhausted.
func (s *scheduler) ScheduleRetry(tx *types.Transaction, cause error) (*types.RetryState, error) {
	if !cerrors.Retryable(cause) {
		return nil, cause
	}

	if tx.Attempt >= s.maxAttempts {
		return nil, errors.Wrapf(cerrors.ErrMaxRetries,
			"transaction %s failed %d of %d attempts: %v", tx.ID, tx.Attempt, s.maxAttempts, cause)
	}

	delay := s.baseDelay << uint(tx.Attempt)
	state := &types.RetryState{
		TransactionID:    tx.ID,
		Attempt:          tx.Attempt,
		NextEligibleTime: time.Now().Add(delay),
		BaseDelay:        s.baseDelay,
	}

	s.arm(tx.ID, tx.Attempt, state.NextEligibleTime)
	s.recordScheduled()

	s.logger.WithFields(logrus.Fields{
		"transactionID": tx.ID,
		"attempt":       tx.Attempt,
		"delay":         delay,
		"error":         cause,
	}).Info("Retry scheduled")

	return state, nil
}

// Cancel disarms the pending timer for a transaction. After Cancel returns
// the timer cannot fire; a resubmission already spawned before the call may
// still run and must be rejected by the transaction's own state.
//
// Parameters:
// - transactionID: the owning transaction.
//
// Returns:
// - bool: true if a pending timer was disarmed.
func (s *scheduler) Cancel(transactionID string) bool {
	s.queueMutex.Lock()
	defer s.queueMutex.Unlock()

	entry, ok := s.entries[transactionID]
	if !ok {
		return false
	}

	heap.Remove(&s.queue, entry.index)
	delete(s.entries, transactionID)
	return true
}

// arm inserts a timer entry, replacing any pending one for the same
// transaction. One attempt is in flight per transaction at a time, so a
// replacement only happens if a caller double-schedules.
func (s *scheduler) arm(transactionID string, attempt int, at time.Time) {
	s.queueMutex.Lock()
	if existing, ok := s.entries[transactionID]; ok {
		heap.Remove(&s.queue, existing.index)
	}

	entry := &retryEntry{
		transactionID: transactionID,
		attempt:       attempt,
		at:            at,
	}
	heap.Push(&s.queue, entry)
	s.entries[transactionID] = entry
	s.queueMutex.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run sleeps until the earliest deadline, fires due entries, and re-arms.
// Each resubmission runs on its own goroutine so one slow submission path
// cannot delay other timers.
func (s *scheduler) run(ctx context.Context, stopChan chan struct{}) {
	for {
		var fireChan <-chan time.Time
		if next, ok := s.nextDeadline(); ok {
			fireChan = time.After(time.Until(next))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Retry scheduler stopped due to context cancellation")
			return

		case <-stopChan:
			s.logger.Info("Retry scheduler stopped")
			return

		case <-s.wake:

		case <-fireChan:
			s.fireDue(ctx)
		}
	}
}

// nextDeadline returns the earliest armed deadline, if any.
func (s *scheduler) nextDeadline() (time.Time, bool) {
	s.queueMutex.Lock()
	defer s.queueMutex.Unlock()

	if s.queue.Len() == 0 {
		return time.Time{}, false
	}
	return s.queue[0].at, true
}

// fireDue pops every entry whose deadline passed and resubmits it with the
// attempt counter advanced.
func (s *scheduler) fireDue(ctx context.Context) {
	now := time.Now()

	s.queueMutex.Lock()
	due := make([]*retryEntry, 0)
	for s.queue.Len() > 0 && !s.queue[0].at.After(now) {
		entry := heap.Pop(&s.queue).(*retryEntry)
		delete(s.entries, entry.transactionID)
		due = append(due, entry)
	}
	s.queueMutex.Unlock()

	for _, entry := range due {
		s.logger.WithFields(logrus.Fields{
			"transactionID": entry.transactionID,
			"attempt":       entry.attempt + 1,
		}).Info("Retry timer expired, resubmitting")

		go s.resubmit(ctx, entry.transactionID, entry.attempt+1)
	}
}

// SetRecorder attaches the metrics recorder. Not synchronized; call it
// during wiring, before Start.
func (s *scheduler) SetRecorder(recorder Recorder) {
	s.recorder = recorder
}

func (s *scheduler) recordScheduled() {
	if s.recorder != nil {
		s.recorder.RecordRetryScheduled()
	}
}
