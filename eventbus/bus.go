package eventbus

import (
	"context"
	"sync"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrBusFull is returned when a published event cannot be buffered.
var ErrBusFull = errors.New("event bus is full")

// Event is one bus message: a typed payload fanned out to subscribers.
type Event struct {
	Type    types.EventType
	Payload interface{}
}

// Subscriber is a function that processes events.
type Subscriber func(event Event) error

// Bus fans events out to per-type subscribers from a bounded worker pool.
// Delivery is asynchronous; publishers never wait on subscribers.
type Bus struct {
	subscribers map[types.EventType]map[uint64]Subscriber
	nextToken   uint64
	mutex       sync.RWMutex

	workerCount int
	eventChan   chan Event
	shutdown    chan struct{}
	stopOnce    sync.Once

	logger *logrus.Logger
}

// NewBus creates a new event bus.
//
// Parameters:
// - workerCount: the number of delivery workers.
// - bufferSize: the published-event buffer capacity.
// - logger: the logger instance for subscriber failures.
//
// Returns:
// - *Bus: the new event bus instance.
func NewBus(workerCount, bufferSize int, logger *logrus.Logger) *Bus {
	if workerCount < 1 {
		workerCount = 1
	}

	return &Bus{
		subscribers: make(map[types.EventType]map[uint64]Subscriber),
		workerCount: workerCount,
		eventChan:   make(chan Event, bufferSize),
		shutdown:    make(chan struct{}),
		logger:      logger,
	}
}

// Subscribe registers a subscriber for an event type and returns a token for
// later unsubscription.
func (b *Bus) Subscribe(eventType types.EventType, subscriber Subscriber) uint64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.nextToken++
	token := b.nextToken

	if _, exists := b.subscribers[eventType]; !exists {
		b.subscribers[eventType] = make(map[uint64]Subscriber)
	}
	b.subscribers[eventType][token] = subscriber

	return token
}

// Unsubscribe removes a previously registered subscriber. Unknown tokens are ignored.
func (b *Bus) Unsubscribe(eventType types.EventType, token uint64) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if subs, exists := b.subscribers[eventType]; exists {
		delete(subs, token)
	}
}

// Publish buffers an event for asynchronous delivery without blocking.
// Returns ErrBusFull when the buffer is at capacity.
func (b *Bus) Publish(event Event) error {
	select {
	case b.eventChan <- event:
		return nil
	default:
		return ErrBusFull
	}
}

// PublishBlocking buffers an event, waiting for space if the bus is full.
func (b *Bus) PublishBlocking(event Event) {
	b.eventChan <- event
}

// Start begins event delivery.
func (b *Bus) Start(ctx context.Context) {
	for i := 0; i < b.workerCount; i++ {
		go b.worker(ctx)
	}
}

// Stop halts event delivery. Buffered events are dropped.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.shutdown)
	})
}

func (b *Bus) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.shutdown:
			return
		case event := <-b.eventChan:
			b.processEvent(event)
		}
	}
}

func (b *Bus) processEvent(event Event) {
	b.mutex.RLock()
	subs := make([]Subscriber, 0, len(b.subscribers[event.Type]))
	for _, subscriber := range b.subscribers[event.Type] {
		subs = append(subs, subscriber)
	}
	b.mutex.RUnlock()

	for _, subscriber := range subs {
		if err := subscriber(event); err != nil {
			b.logger.WithError(err).WithField("eventType", event.Type).Warn("Event subscriber failed")
		}
	}
}
