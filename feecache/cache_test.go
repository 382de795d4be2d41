package feecache

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/chainmanager"
	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type countingRecorder struct {
	hits   int
	misses int
}

func (r *countingRecorder) RecordFeeCacheHit()  { r.hits++ }
func (r *countingRecorder) RecordFeeCacheMiss() { r.misses++ }

type fakeEstimator struct {
	fee   *big.Int
	err   error
	calls int
}

func (f *fakeEstimator) EstimateFee(_ context.Context, _ *types.XCMMessage) (*big.Int, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return new(big.Int).Set(f.fee), nil
}

type fakeRegistry struct {
	connections map[uint64]types.Connection
}

func (f *fakeRegistry) Connect(_ context.Context, _ *types.ChainConfig) (types.Connection, error) {
	return nil, nil
}

func (f *fakeRegistry) Get(chainID uint64) (types.Connection, bool) {
	conn, ok := f.connections[chainID]
	return conn, ok
}

func (f *fakeRegistry) Disconnect(uint64)              {}
func (f *fakeRegistry) DisconnectAll()                 {}
func (f *fakeRegistry) HealthStatus() map[uint64]bool { return nil }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testRoute(source, dest uint64, asset string, opt types.Optimization) types.RouteKey {
	return types.RouteKey{
		SourceChain:  source,
		DestChain:    dest,
		Asset:        asset,
		Optimization: opt,
	}
}

func TestQuoteServedFromCacheWhileFresh(t *testing.T) {
	table := NewRouteTable()
	route := testRoute(0, 1000, "DOT", types.OptimizationStandard)
	table.Upsert(route, RouteEntry{Fee: big.NewInt(5000), Duration: time.Minute, Confidence: 0.95})

	recorder := &countingRecorder{}
	cache := NewCache(NewMemoryStore(), table, &fakeRegistry{}, time.Minute, recorder, testLogger())

	first, err := cache.Quote(context.Background(), route)
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(5000), first.EstimatedFee)
	assert.Equal(t, time.Minute, first.EstimatedDuration)

	second, err := cache.Quote(context.Background(), route)
	assert.NoError(t, err)
	assert.Equal(t, first.ComputedAt, second.ComputedAt)

	assert.Equal(t, 1, recorder.misses)
	assert.Equal(t, 1, recorder.hits)
}

func TestQuoteRecomputedAfterExpiry(t *testing.T) {
	table := NewRouteTable()
	route := testRoute(0, 1000, "DOT", types.OptimizationStandard)
	table.Upsert(route, RouteEntry{Fee: big.NewInt(5000), Duration: time.Minute, Confidence: 0.95})

	recorder := &countingRecorder{}
	cache := NewCache(NewMemoryStore(), table, &fakeRegistry{}, 20*time.Millisecond, recorder, testLogger())

	first, err := cache.Quote(context.Background(), route)
	assert.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	second, err := cache.Quote(context.Background(), route)
	assert.NoError(t, err)
	assert.True(t, second.ComputedAt.After(first.ComputedAt))
	assert.Equal(t, 2, recorder.misses)
}

func TestInvalidateEvictsWholeRoute(t *testing.T) {
	table := NewRouteTable()
	dotRoute := testRoute(0, 1000, "DOT", types.OptimizationStandard)
	usdtRoute := testRoute(0, 1000, "USDT", types.OptimizationEconomy)
	otherRoute := testRoute(0, 2000, "DOT", types.OptimizationStandard)
	table.Upsert(dotRoute, RouteEntry{Fee: big.NewInt(5000), Duration: time.Minute, Confidence: 0.95})
	table.Upsert(usdtRoute, RouteEntry{Fee: big.NewInt(900), Duration: time.Minute, Confidence: 0.9})
	table.Upsert(otherRoute, RouteEntry{Fee: big.NewInt(7000), Duration: time.Minute, Confidence: 0.95})

	cache := NewCache(NewMemoryStore(), table, &fakeRegistry{}, time.Minute, nil, testLogger())

	dotFirst, err := cache.Quote(context.Background(), dotRoute)
	assert.NoError(t, err)
	usdtFirst, err := cache.Quote(context.Background(), usdtRoute)
	assert.NoError(t, err)
	otherFirst, err := cache.Quote(context.Background(), otherRoute)
	assert.NoError(t, err)

	assert.NoError(t, cache.Invalidate(context.Background(), 0, 1000))

	dotSecond, err := cache.Quote(context.Background(), dotRoute)
	assert.NoError(t, err)
	assert.True(t, dotSecond.ComputedAt.After(dotFirst.ComputedAt))

	usdtSecond, err := cache.Quote(context.Background(), usdtRoute)
	assert.NoError(t, err)
	assert.True(t, usdtSecond.ComputedAt.After(usdtFirst.ComputedAt))

	otherSecond, err := cache.Quote(context.Background(), otherRoute)
	assert.NoError(t, err)
	assert.Equal(t, otherFirst.ComputedAt, otherSecond.ComputedAt)
}

func TestEconomyDerivedFromStandardRow(t *testing.T) {
	table := NewRouteTable()
	standard := testRoute(0, 1000, "DOT", types.OptimizationStandard)
	table.Upsert(standard, RouteEntry{Fee: big.NewInt(1000), Duration: time.Minute, Confidence: 0.95})

	cache := NewCache(NewMemoryStore(), table, &fakeRegistry{}, time.Minute, nil, testLogger())

	economy := testRoute(0, 1000, "DOT", types.OptimizationEconomy)
	quote, err := cache.Quote(context.Background(), economy)
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(850), quote.EstimatedFee)
	assert.Equal(t, 96*time.Second, quote.EstimatedDuration)
	assert.Equal(t, 0.95, quote.Confidence)

	// Deriving must not corrupt the standard row.
	direct, err := cache.Quote(context.Background(), standard)
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), direct.EstimatedFee)
}

func TestQuoteFallsBackToLiveEstimation(t *testing.T) {
	estimator := &fakeEstimator{fee: big.NewInt(7000)}
	config := &types.ChainConfig{
		Name:      "assethub",
		ChainType: types.SUBSTRATE,
		ChainID:   1000,
		BlockTime: 12 * time.Second,
	}
	conn := chainmanager.NewConnectionBuilder(config).
		WithFeeEstimator(estimator).
		Build()
	registry := &fakeRegistry{connections: map[uint64]types.Connection{1000: conn}}

	cache := NewCache(NewMemoryStore(), NewRouteTable(), registry, time.Minute, nil, testLogger())

	route := testRoute(1000, 2004, "USDT", types.OptimizationStandard)
	quote, err := cache.Quote(context.Background(), route)
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(7000), quote.EstimatedFee)
	assert.Equal(t, 120*time.Second, quote.EstimatedDuration)
	assert.Equal(t, liveQuoteConfidence, quote.Confidence)
	assert.Equal(t, 1, estimator.calls)

	_, err = cache.Quote(context.Background(), route)
	assert.NoError(t, err)
	assert.Equal(t, 1, estimator.calls)
}

func TestQuoteWithoutConnectionFails(t *testing.T) {
	cache := NewCache(NewMemoryStore(), NewRouteTable(), &fakeRegistry{}, time.Minute, nil, testLogger())

	route := testRoute(1000, 2004, "USDT", types.OptimizationStandard)
	_, err := cache.Quote(context.Background(), route)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, cerrors.ErrConnection))
}
