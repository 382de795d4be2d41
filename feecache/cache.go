package feecache

import (
	"context"
	"fmt"
	"math/big"
	"time"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// quoteKeyPrefix namespaces cache keys so route invalidation can evict
	// by prefix.
	quoteKeyPrefix = "quote:"

	// DefaultQuoteTTL bounds how long a quote stays valid when no TTL is
	// configured.
	DefaultQuoteTTL = 300 * time.Second

	// liveQuoteFinalityBlocks is how many source blocks a live estimation
	// assumes until delivery is final.
	liveQuoteFinalityBlocks = 10

	// liveQuoteConfidence is the confidence attached to live estimations,
	// lower than table rows because the duration part is a heuristic.
	liveQuoteConfidence = 0.75

	// probeAmount is the amount used for fee dry-runs. Transfer fees on the
	// supported chains are weight-based, not value-based.
	probeAmount = 1
)

// Recorder observes cache effectiveness. A nil Recorder disables recording.
type Recorder interface {
	RecordFeeCacheHit()
	RecordFeeCacheMiss()
}

// Cache answers fee quote requests from a bounded-lifetime store, falling
// back to the static route table and finally to a live on-chain estimation.
//
// Fields:
// - store: the quote persistence backend.
// - table: the static per-route fee baselines.
// - connections: the registry used for live estimations.
// - ttl: how long a computed quote stays valid.
// - recorder: the optional hit and miss counter sink.
// - logger: the logger instance.
type Cache struct {
	store       Store
	table       *RouteTable
	connections types.ConnectionRegistry
	ttl         time.Duration
	recorder    Recorder
	logger      *logrus.Logger
}

// NewCache creates a fee estimation cache.
//
// Parameters:
// - store: the quote persistence backend.
// - table: the static per-route fee baselines.
// - connections: the registry used for live estimations.
// - ttl: how long a computed quote stays valid, DefaultQuoteTTL when zero.
// - recorder: the optional hit and miss counter sink, may be nil.
// - logger: the logger instance.
//
// Returns:
// - *Cache: the new cache.
func NewCache(
	store Store,
	table *RouteTable,
	connections types.ConnectionRegistry,
	ttl time.Duration,
	recorder Recorder,
	logger *logrus.Logger,
) *Cache {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}

	return &Cache{
		store:       store,
		table:       table,
		connections: connections,
		ttl:         ttl,
		recorder:    recorder,
		logger:      logger,
	}
}

// Quote returns the fee quote for route, serving a cached quote while it is
// unexpired and recomputing otherwise. Two goroutines racing on the same cold
// key both compute; the last write wins and both results are equivalent.
//
// Parameters:
// - ctx: the context for managing the request.
// - route: the route to quote.
//
// Returns:
// - *types.FeeQuote: the quote for the route.
// - error: an error when no table row exists and live estimation fails.
func (c *Cache) Quote(ctx context.Context, route types.RouteKey) (*types.FeeQuote, error) {
	key := quoteKeyPrefix + route.String()

	cached, err := c.store.Get(ctx, key)
	if err == nil && !cached.Expired(c.ttl) {
		c.recordHit()
		return cached, nil
	}
	if err != nil && !errors.Is(err, ErrQuoteNotFound) {
		c.logger.WithError(err).WithField("route", route.String()).Warn("Quote store read failed, recomputing")
	}

	c.recordMiss()

	quote, err := c.compute(ctx, route)
	if err != nil {
		return nil, err
	}

	if err := c.store.Set(ctx, key, quote, c.ttl); err != nil {
		c.logger.WithError(err).WithField("route", route.String()).Warn("Failed to cache quote")
	}

	return quote, nil
}

// Invalidate evicts every cached quote between the two chains, across all
// assets and optimization strategies. Callers use it after a route's fee
// baseline changes.
//
// Parameters:
// - ctx: the context for managing the eviction.
// - sourceChain: the source chain identifier.
// - destChain: the destination chain identifier.
//
// Returns:
// - error: an error if the store eviction fails.
func (c *Cache) Invalidate(ctx context.Context, sourceChain, destChain uint64) error {
	prefix := fmt.Sprintf("%s%d:%d:", quoteKeyPrefix, sourceChain, destChain)

	if err := c.store.DeletePrefix(ctx, prefix); err != nil {
		return errors.Wrapf(err, "failed to invalidate quotes for route %d -> %d", sourceChain, destChain)
	}

	c.logger.WithFields(logrus.Fields{
		"sourceChain": sourceChain,
		"destChain":   destChain,
	}).Info("Invalidated cached quotes")

	return nil
}

// compute resolves a fresh quote from the route table, or from the source
// chain when the table has no row.
func (c *Cache) compute(ctx context.Context, route types.RouteKey) (*types.FeeQuote, error) {
	if entry, ok := c.table.Lookup(route); ok {
		return &types.FeeQuote{
			Route:             route,
			EstimatedFee:      entry.Fee,
			EstimatedDuration: entry.Duration,
			Confidence:        entry.Confidence,
			ComputedAt:        time.Now(),
		}, nil
	}

	return c.estimateLive(ctx, route)
}

// estimateLive performs a fee dry-run against the source chain connection.
func (c *Cache) estimateLive(ctx context.Context, route types.RouteKey) (*types.FeeQuote, error) {
	conn, ok := c.connections.Get(route.SourceChain)
	if !ok {
		return nil, errors.Wrapf(cerrors.ErrConnection, "no healthy connection to chain %d for fee estimation", route.SourceChain)
	}

	message := &types.XCMMessage{
		SourceChain: route.SourceChain,
		DestChain:   route.DestChain,
		Kind:        types.KindTransfer,
		Asset:       route.Asset,
		Amount:      big.NewInt(probeAmount),
		FeeAsset:    route.Asset,
	}
	if dest, ok := c.connections.Get(route.DestChain); ok {
		message.DestParaID = dest.Config().ParaID
	}

	fee, err := conn.EstimateFee(ctx, message)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to estimate fee on chain %d", route.SourceChain)
	}

	blockTime := conn.Config().BlockTime
	if blockTime <= 0 {
		blockTime = types.DefaultBlockTime
	}
	duration := blockTime * liveQuoteFinalityBlocks

	if route.Optimization == types.OptimizationEconomy {
		fee.Mul(fee, big.NewInt(economyFeeNumerator))
		fee.Div(fee, big.NewInt(economyFeeDenominator))
		duration = duration * economyDurationScaleNum / economyDurationScaleDen
	}

	return &types.FeeQuote{
		Route:             route,
		EstimatedFee:      fee,
		EstimatedDuration: duration,
		Confidence:        liveQuoteConfidence,
		ComputedAt:        time.Now(),
	}, nil
}

func (c *Cache) recordHit() {
	if c.recorder != nil {
		c.recorder.RecordFeeCacheHit()
	}
}

func (c *Cache) recordMiss() {
	if c.recorder != nil {
		c.recorder.RecordFeeCacheMiss()
	}
}
