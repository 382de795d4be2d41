// Package metrics exposes Prometheus instrumentation for the orchestration
// core. The Collector satisfies the recorder interfaces of the orchestrator,
// retry scheduler, fee cache, and notifier, and tracks per-chain
// connectivity from bus events.
package metrics

import (
	"strconv"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/eventbus"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements the component recorder interfaces on Prometheus.
type Collector struct {
	transactionsTerminal   *prometheus.CounterVec
	retriesScheduled       prometheus.Counter
	feeCacheHits           prometheus.Counter
	feeCacheMisses         prometheus.Counter
	notificationsDelivered *prometheus.CounterVec
	notificationsFailed    *prometheus.CounterVec
	chainConnected         *prometheus.GaugeVec
	chainReconnects        *prometheus.CounterVec
	chainErrors            *prometheus.CounterVec
}

// NewCollector creates a collector registered on the given registerer.
//
// Parameters:
// - registerer: the Prometheus registerer; pass prometheus.DefaultRegisterer
//   for the process-wide registry.
//
// Returns:
// - *Collector: the new collector instance.
func NewCollector(registerer prometheus.Registerer) *Collector {
	factory := promauto.With(registerer)

	return &Collector{
		transactionsTerminal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyflow_transactions_terminal_total",
				Help: "Total number of transactions that reached a terminal state",
			},
			[]string{"status"},
		),
		retriesScheduled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "polyflow_retries_scheduled_total",
				Help: "Total number of retry timers armed",
			},
		),
		feeCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "polyflow_fee_cache_hits_total",
				Help: "Total number of fee quotes served from cache",
			},
		),
		feeCacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "polyflow_fee_cache_misses_total",
				Help: "Total number of fee quotes computed fresh",
			},
		),
		notificationsDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyflow_notifications_delivered_total",
				Help: "Total number of notifications delivered per channel",
			},
			[]string{"channel"},
		),
		notificationsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyflow_notifications_failed_total",
				Help: "Total number of notification deliveries that failed per channel",
			},
			[]string{"channel"},
		),
		chainConnected: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "polyflow_chain_connected",
				Help: "Per-chain connectivity: 1 when the connection is live",
			},
			[]string{"chain"},
		),
		chainReconnects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyflow_chain_reconnects_total",
				Help: "Total number of successful reconnects per chain",
			},
			[]string{"chain"},
		),
		chainErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyflow_chain_errors_total",
				Help: "Total number of failed reconnect attempts per chain",
			},
			[]string{"chain"},
		),
	}
}

// Attach subscribes the collector to connectivity events on the bus.
func (c *Collector) Attach(bus *eventbus.Bus) {
	bus.Subscribe(types.EventChainConnected, c.onChainEvent)
	bus.Subscribe(types.EventChainReconnected, c.onChainEvent)
	bus.Subscribe(types.EventChainDisconnected, c.onChainEvent)
	bus.Subscribe(types.EventChainError, c.onChainEvent)
	bus.Subscribe(types.EventMaxReconnectAttemptsReached, c.onChainEvent)
}

// RecordTransactionTerminal counts a transaction reaching a terminal state.
func (c *Collector) RecordTransactionTerminal(status types.TransactionStatus) {
	c.transactionsTerminal.WithLabelValues(status.String()).Inc()
}

// RecordRetryScheduled counts an armed retry timer.
func (c *Collector) RecordRetryScheduled() {
	c.retriesScheduled.Inc()
}

// RecordFeeCacheHit counts a quote served from cache.
func (c *Collector) RecordFeeCacheHit() {
	c.feeCacheHits.Inc()
}

// RecordFeeCacheMiss counts a freshly computed quote.
func (c *Collector) RecordFeeCacheMiss() {
	c.feeCacheMisses.Inc()
}

// RecordNotificationDelivered counts a successful channel delivery.
func (c *Collector) RecordNotificationDelivered(channel string) {
	c.notificationsDelivered.WithLabelValues(channel).Inc()
}

// RecordNotificationFailed counts a failed channel delivery.
func (c *Collector) RecordNotificationFailed(channel string) {
	c.notificationsFailed.WithLabelValues(channel).Inc()
}

func (c *Collector) onChainEvent(event eventbus.Event) error {
	payload, ok := event.Payload.(*types.ChainEvent)
	if !ok {
		return errors.Errorf("unexpected payload %T for %s event", event.Payload, event.Type)
	}

	chain := payload.ChainName
	if chain == "" {
		chain = strconv.FormatUint(payload.ChainID, 10)
	}

	switch event.Type {
	case types.EventChainConnected:
		c.chainConnected.WithLabelValues(chain).Set(1)
	case types.EventChainReconnected:
		c.chainConnected.WithLabelValues(chain).Set(1)
		c.chainReconnects.WithLabelValues(chain).Inc()
	case types.EventChainError:
		// Connectivity is already reported down by the disconnect event.
		c.chainErrors.WithLabelValues(chain).Inc()
	case types.EventChainDisconnected, types.EventMaxReconnectAttemptsReached:
		c.chainConnected.WithLabelValues(chain).Set(0)
	}
	return nil
}
