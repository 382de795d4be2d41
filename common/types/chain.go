package types

import (
	"context"
	"math/big"
	"strings"
	"time"
)

// Default timing applied when a chain config omits the optional fields.
const (
	DefaultBlockTime         = 6 * time.Second
	DefaultTimeoutMultiplier = 10
	DefaultHandshakeTimeout  = 15 * time.Second
)

// ChainConfig holds the static configuration for a supported chain.
// Immutable after load; exactly one instance per chain id.
//
// Fields:
// - Name: the display name of the chain.
// - ChainType: the runtime type of the chain (substrate or evm).
// - ChainID: the unique identifier for the chain.
// - ParaID: the parachain identifier; zero for the relay chain.
// - Relay: true when the chain is the relay chain of its network.
// - RpcUrl: the URL for the chain's RPC endpoint.
// - WsUrl: the optional WebSocket endpoint; falls back to RpcUrl when empty.
// - Symbol: the native token symbol.
// - Decimals: the decimal precision of the native token.
// - AddressFormat: the account encoding recipients must use on this chain.
// - SS58Prefix: the SS58 network prefix for AccountId32 chains.
// - BlockTime: the nominal block production interval.
// - TimeoutMultiplier: blocks worth of BlockTime to wait before a submission
//   or finality watch is treated as timed out.
// - HealthCheckInterval: the interval between connection health probes.
// - ReconnectDelay: the base delay between reconnect attempts.
// - MaxReconnectAttempts: consecutive reconnect failures tolerated before
//   the connection is declared dead.
// - PrivateKey: the private key for signing submissions on this chain.
type ChainConfig struct {
	Name                 string
	ChainType            ChainType
	ChainID              uint64
	ParaID               uint64
	Relay                bool
	RpcUrl               string
	WsUrl                string
	Symbol               string
	Decimals             uint8
	AddressFormat        AddressFormat
	SS58Prefix           uint16
	BlockTime            time.Duration
	TimeoutMultiplier    uint64
	HealthCheckInterval  time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts uint64
	PrivateKey           string
}

// Endpoint returns the WebSocket endpoint when configured, otherwise the RPC endpoint.
func (c *ChainConfig) Endpoint() string {
	if c.WsUrl != "" {
		return c.WsUrl
	}
	return c.RpcUrl
}

// SupportsSubscriptions reports whether the configured endpoint speaks
// websocket and can push subscriptions. Plain HTTP endpoints are polled
// instead.
func (c *ChainConfig) SupportsSubscriptions() bool {
	endpoint := c.Endpoint()
	return strings.HasPrefix(endpoint, "wss://") || strings.HasPrefix(endpoint, "ws://")
}

// SubmissionTimeout returns how long a submission or finality watch may run
// before it is treated as a retryable timeout.
func (c *ChainConfig) SubmissionTimeout() time.Duration {
	blockTime := c.BlockTime
	if blockTime <= 0 {
		blockTime = DefaultBlockTime
	}

	multiplier := c.TimeoutMultiplier
	if multiplier == 0 {
		multiplier = DefaultTimeoutMultiplier
	}

	return blockTime * time.Duration(multiplier)
}

// FeeEstimator provides fee estimation functionality.
type FeeEstimator interface {
	// EstimateFee estimates the execution fee for a cross-chain message by
	// dry-running it against the source chain node.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - msg: the cross-chain message to price.
	//
	// Returns:
	// - *big.Int: the estimated fee in native minor units.
	// - error: an error if the fee estimation fails.
	EstimateFee(ctx context.Context, msg *XCMMessage) (*big.Int, error)
}

// MessageSubmitter provides cross-chain message submission functionality.
type MessageSubmitter interface {
	// SubmitMessage signs and submits a cross-chain message to the chain node.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - msg: the cross-chain message to submit.
	//
	// Returns:
	// - *Submission: the submission details, including the message hash.
	// - error: an error if the submission fails.
	SubmitMessage(ctx context.Context, msg *XCMMessage) (*Submission, error)
}

// StatusWatcher provides inclusion and finality tracking functionality.
type StatusWatcher interface {
	// WatchStatus streams lifecycle updates for a submitted message until it
	// reaches a terminal phase or the context is cancelled.
	//
	// Parameters:
	// - ctx: the context bounding the watch.
	// - hash: the hash of the submitted message to track.
	// - updates: the channel to receive status updates.
	//
	// Returns:
	// - error: an error if the watch could not be established or was interrupted.
	WatchStatus(ctx context.Context, hash string, updates chan<- StatusUpdate) error
}

// Connection combines the per-chain functionality borrowed by callers.
// Exactly one live Connection exists per chain id; it is owned by the
// connection manager and callers look it up per attempt rather than caching
// it, so a reconnected chain is picked up on the next attempt.
type Connection interface {
	FeeEstimator
	MessageSubmitter
	StatusWatcher

	// Config returns the static configuration of the connected chain.
	Config() *ChainConfig

	// Connected reports whether the underlying transport is currently live.
	Connected() bool

	// Close releases the underlying transport.
	Close()
}

// ConnectionRegistry manages live connections for multiple chains.
type ConnectionRegistry interface {
	// Connect opens a connection for the given chain configuration.
	// Idempotent: if a live connection for the chain id already exists it is
	// returned unchanged.
	//
	// Parameters:
	// - ctx: the context bounding the transport handshake.
	// - config: the configuration for the chain to connect.
	//
	// Returns:
	// - Connection: the live connection.
	// - error: an error if the transport could not be established.
	Connect(ctx context.Context, config *ChainConfig) (Connection, error)

	// Get retrieves the live connection for a chain id.
	//
	// Parameters:
	// - chainID: the unique identifier for the chain.
	//
	// Returns:
	// - Connection: the live connection, or nil when absent.
	// - bool: true if a live connection exists.
	Get(chainID uint64) (Connection, bool)

	// Disconnect releases the connection for a chain id and clears its
	// reconnect counters. Safe to call when no connection exists.
	//
	// Parameters:
	// - chainID: the unique identifier for the chain.
	Disconnect(chainID uint64)

	// DisconnectAll releases every registered connection.
	DisconnectAll()

	// HealthStatus returns a point-in-time snapshot of connectivity per chain id.
	HealthStatus() map[uint64]bool
}
