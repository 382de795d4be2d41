package chainmanager

import (
	"context"
	"math/big"
	"sync"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
)

// Connection implements types.Connection with thread-safe access to the
// transport capabilities. Each capability is protected by a read-write mutex;
// capabilities a transport does not provide dispatch to ErrNotImplemented.
type Connection struct {
	config    *types.ChainConfig     // Chain configuration.
	estimator types.FeeEstimator     // Fee estimator implementation.
	submitter types.MessageSubmitter // Message submitter implementation.
	watcher   types.StatusWatcher    // Status watcher implementation.
	lifecycle TransportLifecycle     // Transport lifecycle implementation.

	// Mutexes for thread-safe access to capabilities.
	estimatorMutex sync.RWMutex // Mutex for fee estimator.
	submitterMutex sync.RWMutex // Mutex for message submitter.
	watcherMutex   sync.RWMutex // Mutex for status watcher.
	lifecycleMutex sync.RWMutex // Mutex for transport lifecycle.
}

// NewConnection creates a new Connection instance.
//
// Parameters:
// - config: the chain configuration.
// - estimator: the fee estimator implementation.
// - submitter: the message submitter implementation.
// - watcher: the status watcher implementation.
// - lifecycle: the transport lifecycle implementation.
//
// Returns:
// - *Connection: a new Connection instance.
func NewConnection(
	config *types.ChainConfig,
	estimator types.FeeEstimator,
	submitter types.MessageSubmitter,
	watcher types.StatusWatcher,
	lifecycle TransportLifecycle,
) *Connection {
	return &Connection{
		config:    config,
		estimator: estimator,
		submitter: submitter,
		watcher:   watcher,
		lifecycle: lifecycle,
	}
}

// EstimateFee estimates a message fee with thread-safe access.
// It locks the estimator mutex for reading to ensure safe concurrent access to the estimator.
// If the estimator is not implemented, it returns an error.
//
// Parameters:
// - ctx: context for managing the lifecycle of the fee estimation.
// - msg: the cross-chain message to price.
//
// Returns:
// - *big.Int: the estimated fee in native minor units.
// - error: an error if the estimator is not implemented or the estimation fails.
func (c *Connection) EstimateFee(ctx context.Context, msg *types.XCMMessage) (*big.Int, error) {
	c.estimatorMutex.RLock()
	defer c.estimatorMutex.RUnlock()

	if c.estimator == nil {
		return nil, cerrors.ErrNotImplemented
	}
	return c.estimator.EstimateFee(ctx, msg)
}

// SubmitMessage submits a cross-chain message with thread-safe access.
// It locks the submitter mutex for reading to ensure safe concurrent access to the submitter.
// If the submitter is not implemented, it returns an error.
//
// Parameters:
// - ctx: context for managing the lifecycle of the submission.
// - msg: the cross-chain message to submit.
//
// Returns:
// - *types.Submission: the submission details.
// - error: an error if the submitter is not implemented or the submission fails.
func (c *Connection) SubmitMessage(ctx context.Context, msg *types.XCMMessage) (*types.Submission, error) {
	c.submitterMutex.RLock()
	defer c.submitterMutex.RUnlock()

	if c.submitter == nil {
		return nil, cerrors.ErrNotImplemented
	}
	return c.submitter.SubmitMessage(ctx, msg)
}

// WatchStatus streams lifecycle updates for a submission with thread-safe access.
// It locks the watcher mutex for reading to ensure safe concurrent access to the watcher.
// If the watcher is not implemented, it returns an error.
//
// Parameters:
// - ctx: context bounding the watch.
// - hash: the hash of the submitted message to track.
// - updates: the channel to receive status updates.
//
// Returns:
// - error: an error if the watcher is not implemented or the watch fails.
func (c *Connection) WatchStatus(ctx context.Context, hash string, updates chan<- types.StatusUpdate) error {
	c.watcherMutex.RLock()
	defer c.watcherMutex.RUnlock()

	if c.watcher == nil {
		return cerrors.ErrNotImplemented
	}
	return c.watcher.WatchStatus(ctx, hash, updates)
}

// Config returns the chain configuration.
//
// Returns:
// - *types.ChainConfig: the chain configuration instance.
func (c *Connection) Config() *types.ChainConfig {
	return c.config
}

// Connected reports whether the underlying transport holds a live session.
// Connections without a lifecycle implementation are treated as disconnected.
func (c *Connection) Connected() bool {
	c.lifecycleMutex.RLock()
	lifecycle := c.lifecycle
	c.lifecycleMutex.RUnlock()

	if lifecycle == nil {
		return false
	}

	return lifecycle.Connected()
}

// Close releases the underlying transport and its monitor.
func (c *Connection) Close() {
	c.lifecycleMutex.RLock()
	lifecycle := c.lifecycle
	c.lifecycleMutex.RUnlock()

	if lifecycle != nil {
		lifecycle.Close()
	}
}

// Helper methods with thread-safe access to capabilities

// GetEstimator returns the fee estimator with thread-safe access.
// It locks the estimator mutex for reading to ensure safe concurrent access to the estimator.
//
// Returns:
// - types.FeeEstimator: the fee estimator instance.
func (c *Connection) GetEstimator() types.FeeEstimator {
	c.estimatorMutex.RLock()
	defer c.estimatorMutex.RUnlock()
	return c.estimator
}

// GetSubmitter returns the message submitter with thread-safe access.
// It locks the submitter mutex for reading to ensure safe concurrent access to the submitter.
//
// Returns:
// - types.MessageSubmitter: the message submitter instance.
func (c *Connection) GetSubmitter() types.MessageSubmitter {
	c.submitterMutex.RLock()
	defer c.submitterMutex.RUnlock()
	return c.submitter
}

// GetWatcher returns the status watcher with thread-safe access.
// It locks the watcher mutex for reading to ensure safe concurrent access to the watcher.
//
// Returns:
// - types.StatusWatcher: the status watcher instance.
func (c *Connection) GetWatcher() types.StatusWatcher {
	c.watcherMutex.RLock()
	defer c.watcherMutex.RUnlock()
	return c.watcher
}
