package chainmanager

import (
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
)

// TransportLifecycle is the slice of a chain transport the connection facade
// needs for liveness reporting and shutdown.
type TransportLifecycle interface {
	// Connected reports whether the transport currently holds a live session.
	Connected() bool

	// Close releases the transport and stops its connection monitor.
	Close()
}

// ConnectionBuilder is a builder pattern implementation for chain connections.
// It allows setting the capability implementations of the connection such as
// fee estimator, message submitter, and status watcher.
type ConnectionBuilder struct {
	config    *types.ChainConfig     // Chain configuration.
	estimator types.FeeEstimator     // Fee estimator implementation.
	submitter types.MessageSubmitter // Message submitter implementation.
	watcher   types.StatusWatcher    // Status watcher implementation.
	lifecycle TransportLifecycle     // Transport lifecycle implementation.
}

// NewConnectionBuilder creates a new connection builder instance.
//
// Parameters:
// - config: the chain configuration.
//
// Returns:
// - *ConnectionBuilder: a new ConnectionBuilder instance.
func NewConnectionBuilder(config *types.ChainConfig) *ConnectionBuilder {
	return &ConnectionBuilder{
		config: config,
	}
}

// WithFeeEstimator sets fee estimator implementation.
//
// Parameters:
// - estimator: the fee estimator implementation.
//
// Returns:
// - *ConnectionBuilder: the updated ConnectionBuilder instance.
func (b *ConnectionBuilder) WithFeeEstimator(estimator types.FeeEstimator) *ConnectionBuilder {
	b.estimator = estimator
	return b
}

// WithMessageSubmitter sets message submitter implementation.
//
// Parameters:
// - submitter: the message submitter implementation.
//
// Returns:
// - *ConnectionBuilder: the updated ConnectionBuilder instance.
func (b *ConnectionBuilder) WithMessageSubmitter(submitter types.MessageSubmitter) *ConnectionBuilder {
	b.submitter = submitter
	return b
}

// WithStatusWatcher sets status watcher implementation.
//
// Parameters:
// - watcher: the status watcher implementation.
//
// Returns:
// - *ConnectionBuilder: the updated ConnectionBuilder instance.
func (b *ConnectionBuilder) WithStatusWatcher(watcher types.StatusWatcher) *ConnectionBuilder {
	b.watcher = watcher
	return b
}

// WithLifecycle sets the transport lifecycle implementation.
//
// Parameters:
// - lifecycle: the transport lifecycle implementation.
//
// Returns:
// - *ConnectionBuilder: the updated ConnectionBuilder instance.
func (b *ConnectionBuilder) WithLifecycle(lifecycle TransportLifecycle) *ConnectionBuilder {
	b.lifecycle = lifecycle
	return b
}

// Build creates a new connection instance with configured implementations.
//
// Returns:
// - types.Connection: a new Connection instance with the configured implementations.
func (b *ConnectionBuilder) Build() types.Connection {
	return NewConnection(b.config, b.estimator, b.submitter, b.watcher, b.lifecycle)
}
