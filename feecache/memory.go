package feecache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
)

// memoryEntry pairs a quote with its absolute expiry deadline.
type memoryEntry struct {
	quote     *types.FeeQuote
	expiresAt time.Time
}

// MemoryStore keeps quotes in process memory. Reads never block writers;
// expired entries are dropped lazily on access.
type MemoryStore struct {
	entries sync.Map
}

// NewMemoryStore creates an empty in-memory quote store.
//
// Returns:
// - *MemoryStore: the new store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get retrieves the quote stored under key.
//
// Parameters:
// - ctx: the context for managing the request.
// - key: the cache key.
//
// Returns:
// - *types.FeeQuote: the stored quote.
// - error: ErrQuoteNotFound when the key is absent or the entry has expired.
func (m *MemoryStore) Get(ctx context.Context, key string) (*types.FeeQuote, error) {
	value, ok := m.entries.Load(key)
	if !ok {
		return nil, ErrQuoteNotFound
	}

	entry := value.(memoryEntry)
	if time.Now().After(entry.expiresAt) {
		m.entries.Delete(key)
		return nil, ErrQuoteNotFound
	}

	return entry.quote, nil
}

// Set stores a quote under key for at most ttl.
//
// Parameters:
// - ctx: the context for managing the request.
// - key: the cache key.
// - quote: the quote to store.
// - ttl: how long the entry stays valid.
//
// Returns:
// - error: always nil for the in-memory backend.
func (m *MemoryStore) Set(ctx context.Context, key string, quote *types.FeeQuote, ttl time.Duration) error {
	m.entries.Store(key, memoryEntry{
		quote:     quote,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

// DeletePrefix evicts every key beginning with prefix.
//
// Parameters:
// - ctx: the context for managing the request.
// - prefix: the key prefix to evict.
//
// Returns:
// - error: always nil for the in-memory backend.
func (m *MemoryStore) DeletePrefix(ctx context.Context, prefix string) error {
	m.entries.Range(func(key, _ interface{}) bool {
		if strings.HasPrefix(key.(string), prefix) {
			m.entries.Delete(key)
		}
		return true
	})
	return nil
}
