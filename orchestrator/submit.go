package orchestrator

import (
	"context"
	"time"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Submit validates an operation request and queues it for execution.
// Validation runs synchronously: a request that fails it is recorded as a
// rejected transaction and the validation error is returned together with
// the assigned id. Accepted transactions wait in submission order for an
// admission slot.
//
// Parameters:
// - ctx: the context for managing the request.
// - request: the operation request to execute.
//
// Returns:
// - string: the assigned transaction id.
// - error: the validation error when the request was rejected.
func (o *Orchestrator) Submit(ctx context.Context, request *types.OperationRequest) (string, error) {
	o.admissionMutex.Lock()
	if o.stopped {
		o.admissionMutex.Unlock()
		return "", errors.New("orchestrator is shut down")
	}
	o.admissionMutex.Unlock()

	transactionID := uuid.New().String()
	tx := request.Transaction(transactionID, time.Now())
	if tx.Optimization == "" {
		tx.Optimization = types.OptimizationStandard
	}

	plan, validationErr := o.validateRequest(request)

	execCtx, cancel := context.WithCancel(context.Background())
	exec := &execution{
		tx:      tx,
		plan:    plan,
		timeout: request.Timeout,
		ctx:     execCtx,
		cancel:  cancel,
	}
	if request.Kind == types.KindMultiHop && validationErr == nil {
		tx.Hops = make([]types.Hop, len(plan))
		for i, leg := range plan {
			tx.Hops[i] = types.Hop{SourceChain: leg.source.ChainID, DestChain: leg.dest.ChainID}
		}
	}

	o.executions.Store(transactionID, exec)
	o.persistInsert(tx.Snapshot())

	if validationErr != nil {
		if err := o.transition(exec, types.StatusRejected, validationErr.Error()); err != nil {
			o.logger.WithError(err).WithField("transactionID", transactionID).Warn("Failed to reject transaction")
		}

		o.logger.WithFields(logrus.Fields{
			"transactionID": transactionID,
			"kind":          request.Kind,
			"error":         validationErr,
		}).Warn("Operation request rejected")

		return transactionID, validationErr
	}

	o.admissionMutex.Lock()
	o.queue = append(o.queue, transactionID)
	o.admissionMutex.Unlock()
	o.admissionCond.Signal()

	o.logger.WithFields(logrus.Fields{
		"transactionID": transactionID,
		"kind":          request.Kind,
		"sourceChain":   request.SourceChain,
		"destChain":     request.DestChain,
		"hops":          len(plan),
	}).Info("Operation request accepted")

	return transactionID, nil
}

// GetStatus returns a point-in-time snapshot of a transaction.
//
// Parameters:
// - transactionID: the transaction to look up.
//
// Returns:
// - *types.Transaction: the snapshot, safe for the caller to keep.
// - error: a not-found error for unknown ids.
func (o *Orchestrator) GetStatus(transactionID string) (*types.Transaction, error) {
	value, ok := o.executions.Load(transactionID)
	if !ok {
		return nil, errors.Wrapf(cerrors.ErrTransactionNotFound, "transaction %s", transactionID)
	}

	exec := value.(*execution)
	exec.mu.Lock()
	defer exec.mu.Unlock()
	return exec.tx.Snapshot(), nil
}

// Cancel cancels a transaction cooperatively: the pending retry timer is
// disarmed, the driving routine is interrupted, and the transaction moves to
// the cancelled state. A message already accepted on-chain is not recalled.
//
// Parameters:
// - transactionID: the transaction to cancel.
//
// Returns:
// - error: a not-found error for unknown ids, a state error when the
// transaction already reached a terminal state.
func (o *Orchestrator) Cancel(transactionID string) error {
	value, ok := o.executions.Load(transactionID)
	if !ok {
		return errors.Wrapf(cerrors.ErrTransactionNotFound, "transaction %s", transactionID)
	}
	exec := value.(*execution)

	exec.mu.Lock()
	if exec.tx.Terminal() {
		status := exec.tx.Status
		exec.mu.Unlock()
		return errors.Wrapf(cerrors.ErrState, "transaction %s is already %s", transactionID, status)
	}
	exec.stopping = true
	status := exec.tx.Status
	exec.mu.Unlock()

	o.scheduler.Cancel(transactionID)
	exec.cancel()

	// With no driver running there is nobody left to observe the request;
	// finish the transition here.
	if status == types.StatusPending || status == types.StatusRetrying {
		if err := o.transition(exec, types.StatusCancelled, ""); err == nil {
			o.logger.WithField("transactionID", transactionID).Info("Transaction cancelled")
			return nil
		}
	}

	o.logger.WithField("transactionID", transactionID).Info("Transaction cancellation requested")
	return nil
}

// HealthStatus returns the current per-chain connectivity snapshot.
func (o *Orchestrator) HealthStatus() map[uint64]bool {
	return o.connections.HealthStatus()
}

// resubmit re-enters the submission path when a retry timer expires. The
// transaction may have been cancelled after the timer was already past
// disarming; its terminal state makes this a no-op.
func (o *Orchestrator) resubmit(ctx context.Context, transactionID string, attempt int) {
	value, ok := o.executions.Load(transactionID)
	if !ok {
		o.logger.WithField("transactionID", transactionID).Warn("Retry fired for unknown transaction")
		return
	}
	exec := value.(*execution)

	exec.mu.Lock()
	if exec.tx.Terminal() || exec.stopping {
		exec.mu.Unlock()
		return
	}
	exec.mu.Unlock()

	// Guarded by the admission mutex so a late timer cannot race Shutdown's
	// wait on the driver group.
	o.admissionMutex.Lock()
	if o.stopped {
		o.admissionMutex.Unlock()
		return
	}
	o.drivers.Add(1)
	o.admissionMutex.Unlock()

	defer o.drivers.Done()
	o.drive(exec, attempt)
}
