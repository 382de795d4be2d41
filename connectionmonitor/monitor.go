package connectionmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/eventbus"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// defaultHealthCheckInterval defines interval between connection health checks
	// when the chain config does not set one.
	defaultHealthCheckInterval = 30 * time.Second
	// defaultReconnectDelay defines the base delay between reconnection attempts.
	defaultReconnectDelay = 5 * time.Second
	// defaultMaxReconnectAttempts defines maximum number of reconnection attempts.
	defaultMaxReconnectAttempts = 3
)

// ConnectionMonitor represents connection state monitoring interface
type ConnectionMonitor interface {
	// Start starts connection monitoring
	Start(ctx context.Context) error
	// Stop stops connection monitoring
	Stop()
}

// BlockchainClient represents blockchain client interface
type BlockchainClient interface {
	// CheckConnection checks if connection is alive
	CheckConnection(ctx context.Context) error
	// Reconnect attempts to reconnect to blockchain node
	Reconnect(ctx context.Context) error
}

type connectionMonitor struct {
	client BlockchainClient
	logger *logrus.Logger
	bus    *eventbus.Bus
	config *types.ChainConfig

	stopChan     chan struct{}
	isMonitoring bool
	monitorMutex sync.RWMutex
}

// NewConnectionMonitor creates a new connection monitor instance. The monitor
// probes the client every health-check interval and, on failure, runs a
// bounded reconnect loop with linear backoff. Chain RPC providers typically
// recover within seconds, so the delay grows linearly rather than
// exponentially: reconnectDelay multiplied by the attempt number.
//
// Parameters:
// - client: the blockchain client to monitor.
// - config: the chain configuration providing the reconnect policy.
// - bus: the event bus connectivity events are published to.
// - logger: the logger for logging purposes.
//
// Returns:
// - ConnectionMonitor: the new connection monitor instance.
func NewConnectionMonitor(
	client BlockchainClient,
	config *types.ChainConfig,
	bus *eventbus.Bus,
	logger *logrus.Logger,
) ConnectionMonitor {
	return &connectionMonitor{
		client:       client,
		logger:       logger,
		bus:          bus,
		config:       config,
		stopChan:     make(chan struct{}),
		isMonitoring: false,
	}
}

// Start starts connection monitoring.
//
// Parameters:
// - ctx: the context for managing the request.
//
// Returns:
// - error: an error if the connection monitor is already running.
func (m *connectionMonitor) Start(ctx context.Context) error {
	m.monitorMutex.Lock()
	if m.isMonitoring {
		m.monitorMutex.Unlock()
		return errors.Errorf("connection monitor is already running for chain %s", m.config.Name)
	}
	m.isMonitoring = true
	m.stopChan = make(chan struct{})
	stopChan := m.stopChan
	m.monitorMutex.Unlock()

	go m.monitorConnection(ctx, stopChan)
	return nil
}

// Stop stops connection monitoring.
func (m *connectionMonitor) Stop() {
	m.monitorMutex.Lock()
	defer m.monitorMutex.Unlock()

	if !m.isMonitoring {
		return
	}

	close(m.stopChan)
	m.isMonitoring = false
}

func (m *connectionMonitor) healthCheckInterval() time.Duration {
	if m.config.HealthCheckInterval > 0 {
		return m.config.HealthCheckInterval
	}
	return defaultHealthCheckInterval
}

func (m *connectionMonitor) reconnectDelay() time.Duration {
	if m.config.ReconnectDelay > 0 {
		return m.config.ReconnectDelay
	}
	return defaultReconnectDelay
}

func (m *connectionMonitor) maxReconnectAttempts() uint64 {
	if m.config.MaxReconnectAttempts > 0 {
		return m.config.MaxReconnectAttempts
	}
	return defaultMaxReconnectAttempts
}

// monitorConnection monitors the connection state and attempts to reconnect
// if needed. The goroutine exits when the reconnect budget is exhausted: a
// dead endpoint must not be probed forever.
func (m *connectionMonitor) monitorConnection(ctx context.Context, stopChan chan struct{}) {
	ticker := time.NewTicker(m.healthCheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.WithField("chain", m.config.Name).Info("Connection monitoring stopped due to context cancellation")
			return

		case <-stopChan:
			m.logger.WithField("chain", m.config.Name).Info("Connection monitoring stopped")
			return

		case <-ticker.C:
			if err := m.checkAndReconnect(ctx, stopChan); err != nil {
				m.logger.WithFields(logrus.Fields{
					"chain": m.config.Name,
					"error": err,
				}).Error("Reconnect attempts exhausted, giving up")

				m.publish(types.EventMaxReconnectAttemptsReached, m.maxReconnectAttempts(), err)
				return
			}
		}
	}
}

// checkAndReconnect checks the connection state and attempts to reconnect if
// needed. A successful reconnect resets the attempt counter; a nil return
// means the connection is healthy again.
//
// Parameters:
// - ctx: the context for managing the request.
// - stopChan: the channel signaling monitor shutdown.
//
// Returns:
// - error: an error if every reconnection attempt failed.
func (m *connectionMonitor) checkAndReconnect(ctx context.Context, stopChan chan struct{}) error {
	checkErr := m.client.CheckConnection(ctx)
	if checkErr == nil {
		return nil
	}

	m.logger.WithFields(logrus.Fields{
		"chain": m.config.Name,
		"error": checkErr,
	}).Warn("Connection check failed, attempting to reconnect")

	m.publish(types.EventChainDisconnected, 0, checkErr)

	maxAttempts := m.maxReconnectAttempts()
	baseDelay := m.reconnectDelay()

	for attempt := uint64(0); attempt < maxAttempts; attempt++ {
		// Linear backoff: base delay multiplied by the attempt number.
		delay := baseDelay * time.Duration(attempt+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopChan:
			return nil
		case <-time.After(delay):
		}

		err := m.client.Reconnect(ctx)
		if err == nil {
			m.logger.WithFields(logrus.Fields{
				"chain":   m.config.Name,
				"attempt": attempt + 1,
			}).Info("Client successfully reconnected")

			m.publish(types.EventChainReconnected, attempt+1, nil)
			return nil
		}

		m.logger.WithFields(logrus.Fields{
			"chain":   m.config.Name,
			"attempt": attempt + 1,
			"error":   err,
		}).Error("Reconnection attempt failed")

		m.publish(types.EventChainError, attempt+1, err)

		if attempt+1 == maxAttempts {
			return errors.Wrapf(err, "failed to reconnect to chain %s", m.config.Name)
		}
	}

	return errors.Errorf("failed to reconnect to chain %s", m.config.Name)
}

func (m *connectionMonitor) publish(eventType types.EventType, attempt uint64, err error) {
	event := &types.ChainEvent{
		Type:      eventType,
		ChainID:   m.config.ChainID,
		ChainName: m.config.Name,
		Attempt:   attempt,
		At:        time.Now(),
	}
	if err != nil {
		event.Error = err.Error()
	}

	if pubErr := m.bus.Publish(eventbus.Event{Type: eventType, Payload: event}); pubErr != nil {
		m.logger.WithError(pubErr).WithFields(logrus.Fields{
			"chain":     m.config.Name,
			"eventType": eventType,
		}).Warn("Failed to publish connectivity event")
	}
}
