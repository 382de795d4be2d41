package models

import (
	"math/big"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
)

// FeeRoute is one row of the fee_routes table: the deterministic fee
// baseline for a single route and optimization profile.
type FeeRoute struct {
	ID            int64
	SourceChainID uint64
	DestChainID   uint64
	Asset         string
	Optimization  string
	Fee           string
	DurationMs    int64
	Confidence    float64
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RouteKey returns the cache key this row prices.
func (r *FeeRoute) RouteKey() types.RouteKey {
	return types.RouteKey{
		SourceChain:  r.SourceChainID,
		DestChain:    r.DestChainID,
		Asset:        r.Asset,
		Optimization: types.Optimization(r.Optimization),
	}
}

// FeeAmount parses the numeric fee column into native minor units.
//
// Returns:
// - *big.Int: the baseline fee.
// - error: an error if the column does not hold a base-10 integer.
func (r *FeeRoute) FeeAmount() (*big.Int, error) {
	fee, ok := new(big.Int).SetString(r.Fee, 10)
	if !ok {
		return nil, errors.Errorf("fee route %d has malformed fee %q", r.ID, r.Fee)
	}
	return fee, nil
}

// Duration returns the expected time to finality for the route.
func (r *FeeRoute) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}
