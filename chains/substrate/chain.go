package substrate

import (
	"context"
	"sync"

	"github.com/kamalbuilds/polyflow-ai-sub001/chainmanager"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/connectionmonitor"
	"github.com/kamalbuilds/polyflow-ai-sub001/eventbus"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// substrate represents the base Substrate chain implementation.
type substrate struct {
	config *types.ChainConfig // Chain configuration.
	logger *logrus.Logger     // Logger for logging events.
	bus    *eventbus.Bus      // Bus for connection lifecycle events.

	// Protected fields with their own mutexes.
	clientMutex sync.RWMutex // Mutex for client.
	client      *Client      // Node RPC client.

	watchesMutex sync.Mutex                 // Mutex for submission watches.
	watches      map[string]*extrinsicWatch // Pending submission watches by hash.

	monitorMutex sync.RWMutex                        // Mutex for connection monitor.
	monitor      connectionmonitor.ConnectionMonitor // Connection monitor.
}

// NewSubstrateChain creates a new Substrate chain connection.
//
// Parameters:
// - ctx: the context for managing the request.
// - config: the chain configuration.
// - bus: the bus receiving connection lifecycle events.
// - logger: the logger for logging events.
//
// Returns:
// - types.Connection: a new Substrate chain connection.
// - error: an error if any issue occurs during creation.
func NewSubstrateChain(ctx context.Context, config *types.ChainConfig, bus *eventbus.Bus, logger *logrus.Logger) (types.Connection, error) {
	client, err := Dial(ctx, config.Endpoint(), types.DefaultHandshakeTimeout, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create node client")
	}

	chain := &substrate{
		config:  config,
		logger:  logger,
		bus:     bus,
		client:  client,
		watches: make(map[string]*extrinsicWatch),
	}

	if err := chain.initMonitor(ctx); err != nil {
		chain.Close()
		return nil, errors.Wrap(err, "failed to init connection monitor")
	}

	builder := chainmanager.NewConnectionBuilder(config)
	builder.WithFeeEstimator(chain)
	builder.WithMessageSubmitter(chain)
	builder.WithStatusWatcher(chain)
	builder.WithLifecycle(chain)

	return builder.Build(), nil
}

// Connected reports whether the node connection is currently usable.
func (s *substrate) Connected() bool {
	s.clientMutex.RLock()
	defer s.clientMutex.RUnlock()
	return s.client != nil && s.client.Connected()
}

// Close should be called when the connection is no longer needed.
// It stops the connection monitor and closes the node client.
func (s *substrate) Close() {
	s.monitorMutex.Lock()
	if s.monitor != nil {
		s.monitor.Stop()
	}
	s.monitorMutex.Unlock()

	s.clientMutex.Lock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	s.clientMutex.Unlock()

	s.watchesMutex.Lock()
	s.watches = make(map[string]*extrinsicWatch)
	s.watchesMutex.Unlock()
}

// getClient returns the node client.
//
// Returns:
// - *Client: the node client, nil after Close.
func (s *substrate) getClient() *Client {
	s.clientMutex.RLock()
	defer s.clientMutex.RUnlock()
	return s.client
}
