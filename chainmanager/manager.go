package chainmanager

import (
	"context"
	"sync"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/eventbus"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ConnectionFactory is the slice of the transport factory the manager needs.
type ConnectionFactory interface {
	CreateConnection(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.Connection, error)
}

// connectionManager owns one live connection per configured chain. Connects
// are idempotent per chain id; loss of one chain never blocks operations on
// unrelated chains, so the maps are locked for registry bookkeeping only,
// never across a transport call.
type connectionManager struct {
	logger *logrus.Logger
	bus    *eventbus.Bus

	connections      map[uint64]types.Connection
	connectionsMutex sync.RWMutex

	factory      ConnectionFactory
	factoryMutex sync.RWMutex
}

// NewConnectionManager creates a connection manager backed by the given
// transport factory. The manager subscribes to reconnect-exhaustion events and
// drops the affected connection from the registry; a later Connect may revive it.
//
// Parameters:
// - factory: the transport factory used to open connections.
// - bus: the event bus connectivity events are observed on.
// - logger: the logger instance.
//
// Returns:
// - types.ConnectionRegistry: the new connection manager instance.
func NewConnectionManager(factory ConnectionFactory, bus *eventbus.Bus, logger *logrus.Logger) types.ConnectionRegistry {
	manager := &connectionManager{
		logger:      logger,
		bus:         bus,
		connections: make(map[uint64]types.Connection),
		factory:     factory,
	}

	bus.Subscribe(types.EventMaxReconnectAttemptsReached, func(event eventbus.Event) error {
		chainEvent, ok := event.Payload.(*types.ChainEvent)
		if !ok {
			return nil
		}
		manager.dropDeadConnection(chainEvent.ChainID)
		return nil
	})

	return manager
}

// Connect opens a connection for the chain or returns the live one unchanged.
func (m *connectionManager) Connect(ctx context.Context, config *types.ChainConfig) (types.Connection, error) {
	if config == nil {
		return nil, errors.New("chain config not provided")
	}

	// Fast path: a live connection already exists.
	m.connectionsMutex.RLock()
	existing, ok := m.connections[config.ChainID]
	m.connectionsMutex.RUnlock()

	if ok && existing.Connected() {
		return existing, nil
	}

	// Lock factory for reading to prevent changes during connection creation.
	m.factoryMutex.RLock()
	conn, err := m.factory.CreateConnection(ctx, config, m.logger)
	m.factoryMutex.RUnlock()

	if err != nil {
		return nil, err
	}

	// Another Connect for the same chain may have won the race while we were
	// dialing; keep the single live connection and discard ours.
	m.connectionsMutex.Lock()
	if current, exists := m.connections[config.ChainID]; exists {
		if current.Connected() {
			m.connectionsMutex.Unlock()
			conn.Close()
			return current, nil
		}
		current.Close()
	}
	m.connections[config.ChainID] = conn
	m.connectionsMutex.Unlock()

	m.logger.WithFields(logrus.Fields{
		"chain":   config.Name,
		"chainID": config.ChainID,
	}).Info("Chain connection established")

	if err := m.bus.Publish(eventbus.Event{
		Type: types.EventChainConnected,
		Payload: &types.ChainEvent{
			Type:      types.EventChainConnected,
			ChainID:   config.ChainID,
			ChainName: config.Name,
		},
	}); err != nil {
		m.logger.WithError(err).WithField("chain", config.Name).Warn("Failed to publish connected event")
	}

	return conn, nil
}

// Get retrieves the live connection for a chain id. Returns false when no
// connection exists or the transport is currently down, signaling the caller
// to treat the chain as temporarily unavailable.
func (m *connectionManager) Get(chainID uint64) (types.Connection, bool) {
	m.connectionsMutex.RLock()
	conn, ok := m.connections[chainID]
	m.connectionsMutex.RUnlock()

	if !ok || !conn.Connected() {
		return nil, false
	}

	return conn, true
}

// Disconnect releases the connection for a chain id. Safe to call when no
// connection exists.
func (m *connectionManager) Disconnect(chainID uint64) {
	m.connectionsMutex.Lock()
	conn, ok := m.connections[chainID]
	delete(m.connections, chainID)
	m.connectionsMutex.Unlock()

	if !ok {
		return
	}

	conn.Close()
	m.logger.WithField("chainID", chainID).Info("Chain connection released")
}

// DisconnectAll releases every registered connection.
func (m *connectionManager) DisconnectAll() {
	m.connectionsMutex.Lock()
	conns := m.connections
	m.connections = make(map[uint64]types.Connection)
	m.connectionsMutex.Unlock()

	for chainID, conn := range conns {
		conn.Close()
		m.logger.WithField("chainID", chainID).Info("Chain connection released")
	}
}

// HealthStatus returns a point-in-time connectivity snapshot per chain id.
func (m *connectionManager) HealthStatus() map[uint64]bool {
	m.connectionsMutex.RLock()
	defer m.connectionsMutex.RUnlock()

	status := make(map[uint64]bool, len(m.connections))
	for chainID, conn := range m.connections {
		status[chainID] = conn.Connected()
	}
	return status
}

// dropDeadConnection removes a connection whose reconnect loop gave up.
// A connection that recovered since the event fired is left in place.
func (m *connectionManager) dropDeadConnection(chainID uint64) {
	m.connectionsMutex.Lock()
	conn, ok := m.connections[chainID]
	if !ok || conn.Connected() {
		m.connectionsMutex.Unlock()
		return
	}
	delete(m.connections, chainID)
	m.connectionsMutex.Unlock()

	conn.Close()
	m.logger.WithField("chainID", chainID).Warn("Chain connection dropped after reconnect attempts exhausted")
}
