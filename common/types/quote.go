package types

import (
	"fmt"
	"math/big"
	"time"
)

// RouteKey identifies a fee route: one (source, destination, fee-asset,
// optimization) combination quoted and cached as a unit.
type RouteKey struct {
	SourceChain  uint64
	DestChain    uint64
	Asset        string
	Optimization Optimization
}

// String renders the key in the form used for cache lookups and log fields.
func (k RouteKey) String() string {
	return fmt.Sprintf("%d:%d:%s:%s", k.SourceChain, k.DestChain, k.Asset, k.Optimization)
}

// FeeQuote is a priced route: the estimated cost and duration of executing an
// operation over it, valid until the cache TTL elapses.
//
// Fields:
// - Route: the route the quote prices.
// - EstimatedFee: the estimated execution fee in minor units of the fee asset.
// - EstimatedDuration: the expected wall-clock time to finality.
// - Confidence: the estimator's confidence in the quote, in [0, 1].
// - ComputedAt: the time the quote was computed.
type FeeQuote struct {
	Route             RouteKey
	EstimatedFee      *big.Int
	EstimatedDuration time.Duration
	Confidence        float64
	ComputedAt        time.Time
}

// Expired reports whether the quote is older than the given TTL.
// An expired quote must never be used for submission sizing.
func (q *FeeQuote) Expired(ttl time.Duration) bool {
	return time.Since(q.ComputedAt) >= ttl
}
