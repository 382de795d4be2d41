package connectionmonitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/eventbus"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// fakeClient scripts connection health and records reconnect attempt times.
type fakeClient struct {
	mu             sync.Mutex
	healthy        bool
	reconnectAfter int   // succeed on the n-th reconnect attempt; 0 never succeeds
	reconnectTimes []time.Time
}

func (c *fakeClient) CheckConnection(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.healthy {
		return nil
	}
	return errors.New("connection lost")
}

func (c *fakeClient) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reconnectTimes = append(c.reconnectTimes, time.Now())
	if c.reconnectAfter > 0 && len(c.reconnectTimes) >= c.reconnectAfter {
		c.healthy = true
		return nil
	}
	return errors.New("still unreachable")
}

func (c *fakeClient) attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reconnectTimes)
}

func (c *fakeClient) attemptGaps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	gaps := make([]time.Duration, 0, len(c.reconnectTimes)-1)
	for i := 1; i < len(c.reconnectTimes); i++ {
		gaps = append(gaps, c.reconnectTimes[i].Sub(c.reconnectTimes[i-1]))
	}
	return gaps
}

type eventRecorder struct {
	mu     sync.Mutex
	events []*types.ChainEvent
}

func (r *eventRecorder) record(event eventbus.Event) error {
	chainEvent, ok := event.Payload.(*types.ChainEvent)
	if !ok {
		return nil
	}
	r.mu.Lock()
	r.events = append(r.events, chainEvent)
	r.mu.Unlock()
	return nil
}

func (r *eventRecorder) byType(eventType types.EventType) []*types.ChainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*types.ChainEvent
	for _, event := range r.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func monitorTestSetup(t *testing.T, client *fakeClient, config *types.ChainConfig) (*eventRecorder, ConnectionMonitor) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	bus := eventbus.NewBus(1, 64, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(bus.Stop)
	bus.Start(ctx)

	recorder := &eventRecorder{}
	for _, eventType := range []types.EventType{
		types.EventChainDisconnected,
		types.EventChainError,
		types.EventChainReconnected,
		types.EventMaxReconnectAttemptsReached,
	} {
		bus.Subscribe(eventType, recorder.record)
	}

	monitor := NewConnectionMonitor(client, config, bus, logger)
	t.Cleanup(monitor.Stop)
	assert.NoError(t, monitor.Start(ctx))

	return recorder, monitor
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestMonitorHealthyConnection(t *testing.T) {
	client := &fakeClient{healthy: true}
	config := &types.ChainConfig{
		Name:                "polkadot",
		ChainID:             1,
		HealthCheckInterval: 10 * time.Millisecond,
		ReconnectDelay:      5 * time.Millisecond,
	}

	recorder, _ := monitorTestSetup(t, client, config)

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, client.attempts())
	assert.Empty(t, recorder.byType(types.EventChainDisconnected))
}

func TestMonitorGivesUpAfterMaxAttempts(t *testing.T) {
	client := &fakeClient{}
	config := &types.ChainConfig{
		Name:                 "polkadot",
		ChainID:              1,
		HealthCheckInterval:  10 * time.Millisecond,
		ReconnectDelay:       20 * time.Millisecond,
		MaxReconnectAttempts: 3,
	}

	recorder, _ := monitorTestSetup(t, client, config)

	assert.True(t, waitUntil(t, 3*time.Second, func() bool {
		return len(recorder.byType(types.EventMaxReconnectAttemptsReached)) == 1
	}), "expected terminal max attempts event")

	assert.Equal(t, 3, client.attempts())

	// Linear backoff: the waits before attempts 2 and 3 are two and three
	// times the base delay.
	gaps := client.attemptGaps()
	assert.Len(t, gaps, 2)
	assert.GreaterOrEqual(t, gaps[0], 2*config.ReconnectDelay)
	assert.GreaterOrEqual(t, gaps[1], 3*config.ReconnectDelay)

	terminal := recorder.byType(types.EventMaxReconnectAttemptsReached)[0]
	assert.Equal(t, uint64(1), terminal.ChainID)
	assert.Equal(t, uint64(3), terminal.Attempt)

	// Every failed attempt surfaced as an error event before the terminal one.
	failures := recorder.byType(types.EventChainError)
	assert.Len(t, failures, 3)
	for i, failure := range failures {
		assert.Equal(t, uint64(i+1), failure.Attempt)
		assert.Contains(t, failure.Error, "still unreachable")
	}

	// The monitor does not keep probing a dead endpoint.
	attempts := client.attempts()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, attempts, client.attempts())
}

func TestMonitorRecoversAndResets(t *testing.T) {
	client := &fakeClient{reconnectAfter: 2}
	config := &types.ChainConfig{
		Name:                 "polkadot",
		ChainID:              1,
		HealthCheckInterval:  10 * time.Millisecond,
		ReconnectDelay:       5 * time.Millisecond,
		MaxReconnectAttempts: 5,
	}

	recorder, _ := monitorTestSetup(t, client, config)

	assert.True(t, waitUntil(t, 2*time.Second, func() bool {
		return len(recorder.byType(types.EventChainReconnected)) == 1
	}), "expected reconnected event")

	reconnected := recorder.byType(types.EventChainReconnected)[0]
	assert.Equal(t, uint64(2), reconnected.Attempt)
	assert.Empty(t, recorder.byType(types.EventMaxReconnectAttemptsReached))
	assert.Equal(t, 2, client.attempts())

	// Only the first attempt failed; its error event precedes recovery.
	assert.Len(t, recorder.byType(types.EventChainError), 1)
}

func TestMonitorStartTwice(t *testing.T) {
	client := &fakeClient{healthy: true}
	config := &types.ChainConfig{
		Name:                "polkadot",
		ChainID:             1,
		HealthCheckInterval: 10 * time.Millisecond,
	}

	_, monitor := monitorTestSetup(t, client, config)
	assert.Error(t, monitor.Start(context.Background()))

	monitor.Stop()
	assert.NoError(t, monitor.Start(context.Background()))
}

func TestMonitorStopHaltsProbing(t *testing.T) {
	var checks int64
	client := &fakeClient{healthy: true}
	config := &types.ChainConfig{
		Name:                "polkadot",
		ChainID:             1,
		HealthCheckInterval: 10 * time.Millisecond,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	bus := eventbus.NewBus(1, 16, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer bus.Stop()
	bus.Start(ctx)

	countingClient := &countingFake{fakeClient: client, checks: &checks}
	monitor := NewConnectionMonitor(countingClient, config, bus, logger)
	assert.NoError(t, monitor.Start(ctx))

	waitUntil(t, time.Second, func() bool { return atomic.LoadInt64(&checks) > 0 })
	monitor.Stop()

	settled := atomic.LoadInt64(&checks)
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt64(&checks), settled+1)
}

type countingFake struct {
	*fakeClient
	checks *int64
}

func (c *countingFake) CheckConnection(ctx context.Context) error {
	atomic.AddInt64(c.checks, 1)
	return c.fakeClient.CheckConnection(ctx)
}
