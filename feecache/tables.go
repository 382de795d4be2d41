package feecache

import (
	"math/big"
	"sync"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
)

// Scaling applied when an economy quote is derived from a standard table row
// instead of having its own entry. Economy trades latency for cost.
const (
	economyFeeNumerator     = 85
	economyFeeDenominator   = 100
	economyDurationScaleNum = 8
	economyDurationScaleDen = 5
)

// RouteEntry is one row of the static fee table.
//
// Fields:
// - Fee: the expected fee in the smallest unit of the fee asset.
// - Duration: the expected end-to-end delivery time.
// - Confidence: how reliable the row is, between 0 and 1.
type RouteEntry struct {
	Fee        *big.Int
	Duration   time.Duration
	Confidence float64
}

// RouteTable holds deterministic per-route baselines loaded at startup. It is
// consulted before falling back to a live on-chain estimation.
type RouteTable struct {
	mutex sync.RWMutex
	rows  map[types.RouteKey]RouteEntry
}

// NewRouteTable creates an empty fee table.
//
// Returns:
// - *RouteTable: the new table.
func NewRouteTable() *RouteTable {
	return &RouteTable{
		rows: make(map[types.RouteKey]RouteEntry),
	}
}

// Upsert inserts or replaces the row for route.
//
// Parameters:
// - route: the route key the row applies to.
// - entry: the fee baseline for the route.
func (t *RouteTable) Upsert(route types.RouteKey, entry RouteEntry) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.rows[route] = entry
}

// Lookup resolves the table row for route. When no economy row exists the
// standard row for the same route is scaled instead: the fee drops and the
// expected duration grows.
//
// Parameters:
// - route: the route key to resolve.
//
// Returns:
// - RouteEntry: the matching or derived row.
// - bool: false when the table has no usable row for the route.
func (t *RouteTable) Lookup(route types.RouteKey) (RouteEntry, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if entry, ok := t.rows[route]; ok {
		return cloneEntry(entry), true
	}

	if route.Optimization != types.OptimizationEconomy {
		return RouteEntry{}, false
	}

	standard := route
	standard.Optimization = types.OptimizationStandard
	entry, ok := t.rows[standard]
	if !ok {
		return RouteEntry{}, false
	}

	derived := cloneEntry(entry)
	derived.Fee.Mul(derived.Fee, big.NewInt(economyFeeNumerator))
	derived.Fee.Div(derived.Fee, big.NewInt(economyFeeDenominator))
	derived.Duration = derived.Duration * economyDurationScaleNum / economyDurationScaleDen
	return derived, true
}

// cloneEntry copies a row so callers can mutate the fee without corrupting
// the table.
func cloneEntry(entry RouteEntry) RouteEntry {
	clone := entry
	clone.Fee = new(big.Int).Set(entry.Fee)
	return clone
}
