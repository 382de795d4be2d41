// Package notifier fans transaction status changes out to configured
// delivery channels. Delivery is best effort: a failing channel is logged
// and counted, never propagated back to the transaction lifecycle.
package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/eventbus"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// defaultDeliveryTimeout bounds a single channel delivery.
const defaultDeliveryTimeout = 10 * time.Second

// Channel delivers one notification to one destination.
type Channel interface {
	// Name returns the channel identifier used for targeting and logging.
	Name() string

	// Deliver sends one notification event.
	//
	// Parameters:
	// - ctx: the context bounding the delivery.
	// - event: the notification to send.
	//
	// Returns:
	// - error: an error if the delivery fails.
	Deliver(ctx context.Context, event *types.NotificationEvent) error
}

// Recorder observes delivery outcomes for metrics collection.
type Recorder interface {
	RecordNotificationDelivered(channel string)
	RecordNotificationFailed(channel string)
}

// Dispatcher fans notification events out to every configured channel, each
// on its own goroutine so one slow or failing destination never delays the
// others.
//
// Fields:
// - channels: the configured delivery channels.
// - timeout: the per-delivery time budget.
// - recorder: the optional delivery outcome recorder.
// - logger: the logger instance.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	recorder Recorder
	logger   *logrus.Logger

	bus   *eventbus.Bus
	token uint64

	ctx    context.Context
	cancel context.CancelFunc

	deliveries sync.WaitGroup

	isRunning  bool
	stateMutex sync.Mutex // protects isRunning, ctx, bus, token
}

// NewDispatcher creates a new notification dispatcher.
//
// Parameters:
// - channels: the delivery channels to fan out to.
// - timeout: the per-delivery time budget; zero applies the default.
// - recorder: the optional delivery outcome recorder; nil disables recording.
// - logger: the logger instance.
//
// Returns:
// - *Dispatcher: the new dispatcher instance.
func NewDispatcher(channels []Channel, timeout time.Duration, recorder Recorder, logger *logrus.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}

	return &Dispatcher{
		channels: channels,
		timeout:  timeout,
		recorder: recorder,
		logger:   logger,
	}
}

// Start subscribes the dispatcher to transaction status events on the bus.
func (d *Dispatcher) Start(ctx context.Context, bus *eventbus.Bus) error {
	d.stateMutex.Lock()
	defer d.stateMutex.Unlock()

	if d.isRunning {
		return errors.New("notification dispatcher is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.bus = bus
	d.token = bus.Subscribe(types.EventTransactionStatusChanged, d.onTransactionEvent)
	d.isRunning = true

	d.logger.WithField("channels", len(d.channels)).Info("Notification dispatcher started")
	return nil
}

// Stop unsubscribes from the bus, aborts in-flight deliveries, and waits for
// them to drain.
func (d *Dispatcher) Stop() {
	d.stateMutex.Lock()
	if !d.isRunning {
		d.stateMutex.Unlock()
		return
	}

	d.bus.Unsubscribe(types.EventTransactionStatusChanged, d.token)
	d.cancel()
	d.isRunning = false
	d.stateMutex.Unlock()

	d.deliveries.Wait()
	d.logger.Info("Notification dispatcher stopped")
}

// Notify fans one event out to the configured channels. Fire-and-forget:
// the call returns once every targeted delivery is in flight.
//
// Parameters:
// - event: the notification to deliver; an empty Targets list addresses
//   every configured channel.
func (d *Dispatcher) Notify(event *types.NotificationEvent) {
	d.stateMutex.Lock()
	defer d.stateMutex.Unlock()

	if !d.isRunning {
		return
	}

	for _, channel := range d.channels {
		if !targeted(channel.Name(), event.Targets) {
			continue
		}
		// Registered under the state mutex so Stop cannot start waiting
		// between the running check and the delivery being counted.
		d.deliveries.Add(1)
		go d.deliver(d.ctx, channel, event)
	}
}

func (d *Dispatcher) onTransactionEvent(event eventbus.Event) error {
	payload, ok := event.Payload.(*types.TransactionEvent)
	if !ok {
		return errors.Errorf("unexpected payload %T for %s event", event.Payload, event.Type)
	}

	d.Notify(&types.NotificationEvent{
		TransactionID: payload.TransactionID,
		Status:        payload.Status,
		LastError:     payload.LastError,
		At:            payload.At,
	})
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, channel Channel, event *types.NotificationEvent) {
	defer d.deliveries.Done()

	deliveryCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := channel.Deliver(deliveryCtx, event); err != nil {
		if d.recorder != nil {
			d.recorder.RecordNotificationFailed(channel.Name())
		}
		d.logger.WithError(err).WithFields(logrus.Fields{
			"channel":       channel.Name(),
			"transactionID": event.TransactionID,
			"status":        event.Status,
		}).Warn("Notification delivery failed")
		return
	}

	if d.recorder != nil {
		d.recorder.RecordNotificationDelivered(channel.Name())
	}
	d.logger.WithFields(logrus.Fields{
		"channel":       channel.Name(),
		"transactionID": event.TransactionID,
		"status":        event.Status,
	}).Debug("Notification delivered")
}

func targeted(name string, targets []string) bool {
	if len(targets) == 0 {
		return true
	}
	for _, target := range targets {
		if target == name {
			return true
		}
	}
	return false
}
