package eventbus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(2, 16, logrus.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)
	defer bus.Stop()

	var connected, status int64
	bus.Subscribe(types.EventChainConnected, func(event Event) error {
		atomic.AddInt64(&connected, 1)
		return nil
	})
	bus.Subscribe(types.EventTransactionStatusChanged, func(event Event) error {
		atomic.AddInt64(&status, 1)
		return nil
	})

	assert.NoError(t, bus.Publish(Event{Type: types.EventChainConnected, Payload: &types.ChainEvent{ChainID: 1}}))
	assert.NoError(t, bus.Publish(Event{Type: types.EventChainConnected, Payload: &types.ChainEvent{ChainID: 2}}))
	assert.NoError(t, bus.Publish(Event{Type: types.EventTransactionStatusChanged, Payload: &types.TransactionEvent{}}))

	waitFor(t, func() bool {
		return atomic.LoadInt64(&connected) == 2 && atomic.LoadInt64(&status) == 1
	})
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(1, 16, logrus.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)
	defer bus.Stop()

	var delivered int64
	token := bus.Subscribe(types.EventChainDisconnected, func(event Event) error {
		atomic.AddInt64(&delivered, 1)
		return nil
	})

	assert.NoError(t, bus.Publish(Event{Type: types.EventChainDisconnected}))
	waitFor(t, func() bool { return atomic.LoadInt64(&delivered) == 1 })

	bus.Unsubscribe(types.EventChainDisconnected, token)
	assert.NoError(t, bus.Publish(Event{Type: types.EventChainDisconnected}))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&delivered))
}

func TestBusFullReturnsError(t *testing.T) {
	bus := NewBus(1, 1, logrus.New())
	// Not started: nothing drains the buffer.

	assert.NoError(t, bus.Publish(Event{Type: types.EventChainConnected}))
	assert.ErrorIs(t, bus.Publish(Event{Type: types.EventChainConnected}), ErrBusFull)
}

func TestBusSubscriberErrorDoesNotStopOthers(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	bus := NewBus(1, 16, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)
	defer bus.Stop()

	var delivered int64
	bus.Subscribe(types.EventChainReconnected, func(event Event) error {
		return assert.AnError
	})
	bus.Subscribe(types.EventChainReconnected, func(event Event) error {
		atomic.AddInt64(&delivered, 1)
		return nil
	})

	assert.NoError(t, bus.Publish(Event{Type: types.EventChainReconnected}))
	waitFor(t, func() bool { return atomic.LoadInt64(&delivered) == 1 })
}
