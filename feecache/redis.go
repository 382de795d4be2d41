package feecache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// scanBatchSize bounds how many keys a single SCAN iteration returns.
const scanBatchSize = 128

// RedisOptions carries the connection settings for the Redis quote store.
//
// Fields:
// - Addr: the host:port of the Redis server.
// - Password: the server password, empty when authentication is disabled.
// - DB: the logical database number.
// - DialTimeout: the timeout for establishing the connection.
// - ReadTimeout: the timeout for read commands.
// - WriteTimeout: the timeout for write commands.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisStore persists quotes in Redis so multiple orchestrator instances can
// share fee estimations. Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
//
// Parameters:
// - ctx: the context for managing the connection handshake.
// - opts: the Redis connection settings.
// - logger: the logger instance.
//
// Returns:
// - *RedisStore: the connected store.
// - error: an error if the server is unreachable.
func NewRedisStore(ctx context.Context, opts RedisOptions, logger *logrus.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	logger.WithField("addr", opts.Addr).Info("Connected to redis quote store")

	return &RedisStore{
		client: client,
		logger: logger,
	}, nil
}

// Get retrieves the quote stored under key.
//
// Parameters:
// - ctx: the context for managing the request.
// - key: the cache key.
//
// Returns:
// - *types.FeeQuote: the stored quote.
// - error: ErrQuoteNotFound when the key is absent; otherwise a backend error.
func (r *RedisStore) Get(ctx context.Context, key string) (*types.FeeQuote, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrQuoteNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read quote %s", key)
	}

	var quote types.FeeQuote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, errors.Wrapf(err, "failed to decode quote %s", key)
	}

	return &quote, nil
}

// Set stores a quote under key for at most ttl.
//
// Parameters:
// - ctx: the context for managing the request.
// - key: the cache key.
// - quote: the quote to store.
// - ttl: how long the Redis key stays alive.
//
// Returns:
// - error: an error if marshalling or the write fails.
func (r *RedisStore) Set(ctx context.Context, key string, quote *types.FeeQuote, ttl time.Duration) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return errors.Wrapf(err, "failed to encode quote %s", key)
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to write quote %s", key)
	}

	return nil
}

// DeletePrefix evicts every key beginning with prefix using SCAN so the
// server is never blocked by a KEYS call.
//
// Parameters:
// - ctx: the context for managing the request.
// - prefix: the key prefix to evict.
//
// Returns:
// - error: an error if scanning or deleting fails.
func (r *RedisStore) DeletePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, prefix+"*", scanBatchSize).Result()
		if err != nil {
			return errors.Wrapf(err, "failed to scan quotes with prefix %s", prefix)
		}

		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return errors.Wrapf(err, "failed to delete %d quotes", len(keys))
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close releases the underlying Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
