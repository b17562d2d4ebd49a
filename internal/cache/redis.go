// Package cache provides a Redis-backed store for catalog search results.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meltforce/liftlog/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "liftlog:"
	generationKey = keyPrefix + "catalog:generation"
)

// Redis caches search responses with a TTL. A generation counter is bumped
// after each catalog import; callers embed it in their keys.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New creates a Redis cache. It does not connect until first use.
func New(opts Options) *Redis {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		ttl: ttl,
	}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Get returns a cached response. A missing key is a miss, not an error.
func (r *Redis) Get(ctx context.Context, key string) (*models.SearchResponse, bool, error) {
	b, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	resp, err := decode(b)
	if err != nil {
		return nil, false, err
	}
	return resp, true, nil
}

// Set stores a response under key for the configured TTL.
func (r *Redis) Set(ctx context.Context, key string, resp *models.SearchResponse) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding search response: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+key, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Generation returns the current catalog generation (0 before any import).
func (r *Redis) Generation(ctx context.Context) (int64, error) {
	n, err := r.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading catalog generation: %w", err)
	}
	return n, nil
}

// Invalidate bumps the catalog generation so earlier keys are never read again.
// Stale entries expire through their TTL.
func (r *Redis) Invalidate(ctx context.Context) error {
	if err := r.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("bumping catalog generation: %w", err)
	}
	return nil
}

func decode(b []byte) (*models.SearchResponse, error) {
	var resp models.SearchResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, fmt.Errorf("decoding cached search response: %w", err)
	}
	if resp.Exercises == nil {
		resp.Exercises = []models.ExerciseSummary{}
	}
	return &resp, nil
}
