// Package orchestrator drives cross-chain transactions from intake to a
// terminal state: validation, bounded admission, per-transaction state
// machine, hop decomposition, submission, and finality tracking.
package orchestrator

import (
	"context"
	"sync"
	"time"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/eventbus"
	"github.com/kamalbuilds/polyflow-ai-sub001/retryscheduler"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// defaultMaxConcurrent bounds simultaneously active transactions when the
	// settings do not set a cap.
	defaultMaxConcurrent = 10
)

// FeeQuoter prices a route. Implemented by the fee estimation cache.
type FeeQuoter interface {
	Quote(ctx context.Context, route types.RouteKey) (*types.FeeQuote, error)
}

// Records persists transaction snapshots. Persistence is best-effort: a
// storage failure is logged and never affects the transaction lifecycle.
type Records interface {
	InsertTransaction(ctx context.Context, tx *types.Transaction) error
	UpdateTransaction(ctx context.Context, tx *types.Transaction) error
}

// Recorder counts terminal transaction outcomes. Implemented by the metrics
// collector.
type Recorder interface {
	RecordTransactionTerminal(status types.TransactionStatus)
}

// Settings holds the orchestration tunables.
//
// Fields:
// - MaxConcurrent: the global cap on simultaneously active transactions.
// - RetryBaseDelay: the retry backoff base handed to the retry scheduler.
// - MaxRetryAttempts: the total submission attempt budget per transaction.
type Settings struct {
	MaxConcurrent    int
	RetryBaseDelay   time.Duration
	MaxRetryAttempts int
}

// hop is one planned leg of a transaction: the resolved source and
// destination chain configs and the operation kind the leg executes as.
type hop struct {
	source *types.ChainConfig
	dest   *types.ChainConfig
	kind   types.OperationKind
}

// execution is the orchestrator-private state of one transaction. The
// transaction itself is mutated only under mu; the driving goroutine owns
// all lifecycle transitions while an attempt runs.
type execution struct {
	mu sync.Mutex

	tx      *types.Transaction
	plan    []hop
	timeout time.Duration // per-hop override; zero selects the chain default

	ctx      context.Context // cancelled on Cancel and on forced shutdown
	cancel   context.CancelFunc
	admitted bool // the transaction holds an admission slot
	stopping bool // cancellation requested by the caller
}

// Orchestrator coordinates transaction execution across chain connections.
type Orchestrator struct {
	configs     map[uint64]*types.ChainConfig
	connections types.ConnectionRegistry
	fees        FeeQuoter
	records     Records
	recorder    Recorder
	scheduler   retryscheduler.Scheduler
	bus         *eventbus.Bus
	logger      *logrus.Logger

	maxConcurrent int

	executions sync.Map // map[string]*execution

	admissionMutex sync.Mutex // protects queue, active, and stopped
	admissionCond  *sync.Cond
	queue          []string // transaction ids waiting for a slot, FIFO
	active         int      // transactions currently holding a slot
	stopped        bool

	drivers sync.WaitGroup
}

// NewOrchestrator creates a new transaction orchestrator instance. The
// orchestrator owns its retry scheduler; retries re-enter the submission
// path through it.
//
// Parameters:
// - configs: the static chain configuration table.
// - connections: the registry live chain connections are borrowed from.
// - fees: the fee quoter submissions are priced with.
// - records: the optional transaction record store.
// - recorder: the optional metrics recorder.
// - bus: the event bus state transitions are published to.
// - settings: the orchestration tunables.
// - logger: the logger for logging purposes.
//
// Returns:
// - *Orchestrator: the new transaction orchestrator instance.
func NewOrchestrator(
	configs []*types.ChainConfig,
	connections types.ConnectionRegistry,
	fees FeeQuoter,
	records Records,
	recorder Recorder,
	bus *eventbus.Bus,
	settings Settings,
	logger *logrus.Logger,
) *Orchestrator {
	indexed := make(map[uint64]*types.ChainConfig, len(configs))
	for _, config := range configs {
		indexed[config.ChainID] = config
	}

	maxConcurrent := settings.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = defaultMaxConcurrent
	}

	orchestrator := &Orchestrator{
		configs:       indexed,
		connections:   connections,
		fees:          fees,
		records:       records,
		recorder:      recorder,
		bus:           bus,
		logger:        logger,
		maxConcurrent: maxConcurrent,
		queue:         make([]string, 0),
	}
	orchestrator.admissionCond = sync.NewCond(&orchestrator.admissionMutex)
	orchestrator.scheduler = retryscheduler.NewScheduler(
		settings.RetryBaseDelay,
		settings.MaxRetryAttempts,
		orchestrator.resubmit,
		nil,
		logger,
	)

	return orchestrator
}

// Scheduler exposes the owned retry scheduler so callers can attach the
// metrics recorder and tests can reach the timer surface.
func (o *Orchestrator) Scheduler() retryscheduler.Scheduler {
	return o.scheduler
}

// Start starts the admission dispatcher and the retry scheduler.
//
// Parameters:
// - ctx: the context bounding all orchestration work.
//
// Returns:
// - error: an error if the retry scheduler is already running.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.scheduler.Start(ctx); err != nil {
		return err
	}

	go o.dispatch(ctx)
	go func() {
		<-ctx.Done()
		o.stopIntake()
	}()

	return nil
}

// Shutdown stops intake and waits for in-flight transactions to settle. When
// ctx expires first, the remaining drivers are cancelled and waited out.
//
// Parameters:
// - ctx: the context bounding the graceful period.
//
// Returns:
// - error: the context error when the graceful period expired.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stopIntake()
	o.scheduler.Stop()

	done := make(chan struct{})
	go func() {
		o.drivers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	o.executions.Range(func(key, value interface{}) bool {
		value.(*execution).cancel()
		return true
	})
	<-done

	return ctx.Err()
}

// stopIntake marks the orchestrator stopped and wakes the dispatcher so it
// can exit. Queued transactions stay queued; they are not failed on shutdown.
func (o *Orchestrator) stopIntake() {
	o.admissionMutex.Lock()
	o.stopped = true
	o.admissionMutex.Unlock()
	o.admissionCond.Broadcast()
}

// dispatch admits queued transactions strictly in submission order, one per
// free slot. A slot frees only when a transaction reaches a terminal state.
func (o *Orchestrator) dispatch(ctx context.Context) {
	for {
		o.admissionMutex.Lock()
		for !o.stopped && (len(o.queue) == 0 || o.active >= o.maxConcurrent) {
			o.admissionCond.Wait()
		}
		if o.stopped {
			o.admissionMutex.Unlock()
			return
		}

		transactionID := o.queue[0]
		o.queue = o.queue[1:]
		o.active++
		o.drivers.Add(1)
		o.admissionMutex.Unlock()

		value, ok := o.executions.Load(transactionID)
		if !ok {
			o.drivers.Done()
			o.releaseSlot()
			continue
		}
		exec := value.(*execution)

		// A transaction cancelled while queued never held a slot; give the
		// optimistic claim back.
		exec.mu.Lock()
		if exec.tx.Terminal() {
			exec.mu.Unlock()
			o.drivers.Done()
			o.releaseSlot()
			continue
		}
		exec.admitted = true
		exec.mu.Unlock()

		go func() {
			defer o.drivers.Done()
			o.drive(exec, 1)
		}()
	}
}

// releaseSlot frees one admission slot and wakes the dispatcher.
func (o *Orchestrator) releaseSlot() {
	o.admissionMutex.Lock()
	o.active--
	o.admissionMutex.Unlock()
	o.admissionCond.Signal()
}

// transition moves a transaction to the next lifecycle state, records the
// snapshot, and publishes the change. Illegal edges, including any mutation
// of a terminal transaction, fail with a state error and change nothing.
//
// Parameters:
// - exec: the owning execution.
// - next: the state to transition to.
// - lastError: the failure summary to record, empty outside failure states.
//
// Returns:
// - error: a state error if the edge is not a legal lifecycle transition.
func (o *Orchestrator) transition(exec *execution, next types.TransactionStatus, lastError string) error {
	exec.mu.Lock()
	previous := exec.tx.Status
	if !previous.CanTransitionTo(next) {
		exec.mu.Unlock()
		return errors.Wrapf(cerrors.ErrState, "transaction %s cannot move %s -> %s", exec.tx.ID, previous, next)
	}

	exec.tx.Status = next
	exec.tx.UpdatedAt = time.Now()
	if lastError != "" {
		exec.tx.LastError = lastError
	}
	admitted := exec.admitted
	snapshot := exec.tx.Snapshot()
	exec.mu.Unlock()

	o.logger.WithFields(logrus.Fields{
		"transactionID": snapshot.ID,
		"from":          previous,
		"to":            next,
		"attempt":       snapshot.Attempt,
	}).Info("Transaction state changed")

	o.persistUpdate(snapshot)
	o.publishTransition(snapshot, previous)

	if next.Terminal() {
		exec.cancel()
		if o.recorder != nil {
			o.recorder.RecordTransactionTerminal(next)
		}
		if admitted {
			o.releaseSlot()
		}
	}

	return nil
}

// publishTransition emits the state change on the event bus.
func (o *Orchestrator) publishTransition(snapshot *types.Transaction, previous types.TransactionStatus) {
	event := &types.TransactionEvent{
		TransactionID: snapshot.ID,
		Previous:      previous,
		Status:        snapshot.Status,
		Attempt:       snapshot.Attempt,
		LastError:     snapshot.LastError,
		At:            snapshot.UpdatedAt,
	}

	if err := o.bus.Publish(eventbus.Event{Type: types.EventTransactionStatusChanged, Payload: event}); err != nil {
		o.logger.WithError(err).WithField("transactionID", snapshot.ID).Warn("Failed to publish transaction event")
	}
}

// persistUpdate stores a transaction snapshot, best-effort.
func (o *Orchestrator) persistUpdate(snapshot *types.Transaction) {
	if o.records == nil {
		return
	}
	if err := o.records.UpdateTransaction(context.Background(), snapshot); err != nil {
		o.logger.WithError(err).WithField("transactionID", snapshot.ID).Warn("Failed to persist transaction update")
	}
}

// persistInsert stores a freshly accepted transaction, best-effort.
func (o *Orchestrator) persistInsert(snapshot *types.Transaction) {
	if o.records == nil {
		return
	}
	if err := o.records.InsertTransaction(context.Background(), snapshot); err != nil {
		o.logger.WithError(err).WithField("transactionID", snapshot.ID).Warn("Failed to persist transaction")
	}
}
