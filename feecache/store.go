package feecache

import (
	"context"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
)

// ErrQuoteNotFound is returned by a store when no quote exists for a key.
var ErrQuoteNotFound = errors.New("fee quote not found")

// Store is the quote persistence backend of the cache. Implementations must
// tolerate concurrent access; a lost write between two racers computing the
// same key is acceptable, both compute the same answer.
type Store interface {
	// Get retrieves the quote stored under key.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - key: the cache key.
	//
	// Returns:
	// - *types.FeeQuote: the stored quote.
	// - error: ErrQuoteNotFound when absent or expired; otherwise a backend error.
	Get(ctx context.Context, key string) (*types.FeeQuote, error)

	// Set stores a quote under key for at most ttl.
	Set(ctx context.Context, key string, quote *types.FeeQuote, ttl time.Duration) error

	// DeletePrefix evicts every key beginning with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
