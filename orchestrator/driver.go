package orchestrator

import (
	"context"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// watchBuffer sizes the status update channel handed to a chain watcher.
const watchBuffer = 16

// drive runs one submission attempt for a transaction. The first attempt
// moves the transaction out of the admission queue; later attempts enter
// through the retry scheduler. All lifecycle transitions for the transaction
// happen on this goroutine while the attempt runs.
func (o *Orchestrator) drive(exec *execution, attempt int) {
	exec.mu.Lock()
	if exec.tx.Terminal() {
		exec.mu.Unlock()
		return
	}
	first := exec.tx.Status == types.StatusPending
	exec.tx.Attempt = attempt
	exec.mu.Unlock()

	if first {
		if err := o.transition(exec, types.StatusValidated, ""); err != nil {
			// Cancelled between admission and the first transition.
			return
		}
	}

	err := o.runAttempt(exec)
	if err == nil {
		return
	}

	if exec.cancelRequested() {
		o.finishCancelled(exec)
		return
	}
	if exec.ctx.Err() != nil {
		// Forced shutdown: leave the transaction where it was.
		return
	}

	o.handleFailure(exec, err)
}

// runAttempt executes the hop sequence from the current hop onward. Hops
// already included on-chain by earlier attempts are never re-submitted.
func (o *Orchestrator) runAttempt(exec *execution) error {
	if err := o.ensureQuote(exec); err != nil {
		return err
	}

	for {
		exec.mu.Lock()
		index := exec.tx.CurrentHop
		last := index == len(exec.plan)-1
		leg := exec.plan[index]
		exec.mu.Unlock()

		if err := o.runHop(exec, leg, last); err != nil {
			return err
		}
		if last {
			return nil
		}

		exec.mu.Lock()
		exec.tx.CurrentHop++
		exec.mu.Unlock()
	}
}

// runHop submits one leg and tracks it to its goal: inclusion for
// intermediate legs, finality for the last one.
func (o *Orchestrator) runHop(exec *execution, leg hop, last bool) error {
	sourceConn, ok := o.connections.Get(leg.source.ChainID)
	if !ok {
		return errors.Wrapf(cerrors.ErrConnection, "no live connection to chain %d", leg.source.ChainID)
	}
	if _, ok := o.connections.Get(leg.dest.ChainID); !ok {
		return errors.Wrapf(cerrors.ErrConnection, "no live connection to chain %d", leg.dest.ChainID)
	}

	message := buildMessage(exec, leg)

	hopCtx, cancel := context.WithTimeout(exec.ctx, exec.hopTimeout(leg))
	defer cancel()

	submission, err := sourceConn.SubmitMessage(hopCtx, message)
	if err != nil {
		return o.mapHopError(hopCtx, exec, err)
	}

	exec.mu.Lock()
	exec.tx.Hash = submission.Hash
	if exec.tx.Hops != nil {
		exec.tx.Hops[exec.tx.CurrentHop].Hash = submission.Hash
	}
	exec.mu.Unlock()

	if err := o.transition(exec, types.StatusSubmitted, ""); err != nil {
		return err
	}

	return o.watchSubmission(hopCtx, exec, sourceConn, submission.Hash, last)
}

// watchSubmission consumes status updates for a submitted message until the
// hop goal is reached or the watch fails.
func (o *Orchestrator) watchSubmission(
	ctx context.Context,
	exec *execution,
	watcher types.StatusWatcher,
	hash string,
	last bool,
) error {
	updates := make(chan types.StatusUpdate, watchBuffer)
	watchDone := make(chan error, 1)
	go func() {
		watchDone <- watcher.WatchStatus(ctx, hash, updates)
	}()

	inBlockSeen := false
	for {
		select {
		case <-ctx.Done():
			return o.mapHopError(ctx, exec, errors.Errorf("watch for %s interrupted", hash))

		case update := <-updates:
			done, err := o.handleUpdate(exec, update, last, &inBlockSeen)
			if done || err != nil {
				return err
			}

		case err := <-watchDone:
			if err != nil {
				return o.mapHopError(ctx, exec, err)
			}

			// The watcher finished cleanly; the terminal phase may still sit
			// in the buffer.
			for {
				select {
				case update := <-updates:
					done, err := o.handleUpdate(exec, update, last, &inBlockSeen)
					if done || err != nil {
						return err
					}
				default:
					return errors.Wrapf(cerrors.ErrConnection,
						"status watch for %s ended without a terminal phase", hash)
				}
			}
		}
	}
}

// handleUpdate applies one watch phase to the transaction. done reports that
// the hop reached its goal and the watch can stop.
func (o *Orchestrator) handleUpdate(
	exec *execution,
	update types.StatusUpdate,
	last bool,
	inBlockSeen *bool,
) (bool, error) {
	switch update.Phase {
	case types.PhaseInBlock:
		if *inBlockSeen {
			return false, nil
		}
		*inBlockSeen = true

		o.markHopInBlock(exec)
		if err := o.transition(exec, types.StatusInBlock, ""); err != nil {
			return false, err
		}
		// Intermediate legs are done at inclusion; only the last leg waits
		// for finality.
		return !last, nil

	case types.PhaseFinalized:
		if !*inBlockSeen {
			*inBlockSeen = true
			o.markHopInBlock(exec)
			if err := o.transition(exec, types.StatusInBlock, ""); err != nil {
				return false, err
			}
		}
		return true, o.transition(exec, types.StatusFinalized, "")

	case types.PhaseDropped:
		return false, errors.Wrapf(cerrors.ErrSubmission, "message %s dropped from the transaction pool", update.Hash)

	case types.PhaseInvalid:
		return false, errors.Wrapf(cerrors.ErrSubmission, "message %s rejected as invalid", update.Hash)

	default:
		return false, nil
	}
}

// markHopInBlock records inclusion on the current hop for multi-hop snapshots.
func (o *Orchestrator) markHopInBlock(exec *execution) {
	exec.mu.Lock()
	if exec.tx.Hops != nil {
		exec.tx.Hops[exec.tx.CurrentHop].InBlock = true
	}
	exec.mu.Unlock()
}

// mapHopError converts a deadline expiry into the retryable timeout class.
// Cancellation is passed through for the driver to classify.
func (o *Orchestrator) mapHopError(ctx context.Context, exec *execution, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && exec.ctx.Err() == nil {
		return errors.Wrapf(cerrors.ErrTimeout, "submission window expired: %v", err)
	}
	return err
}

// handleFailure routes a failed attempt through the retry scheduler and
// settles the transaction according to the classification.
func (o *Orchestrator) handleFailure(exec *execution, cause error) {
	exec.mu.Lock()
	snapshot := exec.tx.Snapshot()
	exec.mu.Unlock()

	state, scheduleErr := o.scheduler.ScheduleRetry(snapshot, cause)
	if scheduleErr == nil {
		if err := o.transition(exec, types.StatusRetrying, cause.Error()); err != nil {
			// Cancelled in the scheduling window; the armed timer fires into
			// the terminal-state check and does nothing.
			return
		}

		o.logger.WithFields(logrus.Fields{
			"transactionID": snapshot.ID,
			"attempt":       snapshot.Attempt,
			"nextAttemptAt": state.NextEligibleTime,
		}).Info("Transaction attempt failed, retry armed")
		return
	}

	if err := o.transition(exec, types.StatusFailed, scheduleErr.Error()); err != nil {
		o.logger.WithError(err).WithField("transactionID", snapshot.ID).Warn("Failed to settle transaction")
		return
	}

	o.logger.WithFields(logrus.Fields{
		"transactionID": snapshot.ID,
		"attempt":       snapshot.Attempt,
		"error":         scheduleErr,
	}).Warn("Transaction failed terminally")
}

// finishCancelled completes a cooperative cancellation observed mid-attempt.
// The canceling goroutine may have settled the state already.
func (o *Orchestrator) finishCancelled(exec *execution) {
	if err := o.transition(exec, types.StatusCancelled, ""); err != nil {
		return
	}
	o.logger.WithField("transactionID", exec.tx.ID).Info("Transaction cancelled")
}

// cancelRequested reports whether the caller asked for cancellation.
func (exec *execution) cancelRequested() bool {
	exec.mu.Lock()
	defer exec.mu.Unlock()
	return exec.stopping
}
