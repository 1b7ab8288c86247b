package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "tokenfence:history:"

	// StatsChannel receives every appended record as JSON.
	StatsChannel = "tokenfence:stats"
)

// RedisStore keeps window history in Redis lists and publishes each
// record on StatsChannel.
type RedisStore struct {
	client   *redis.Client
	capacity int
	ttl      time.Duration // How long an idle limiter's history is kept
}

// Ensure RedisStore implements Store interface
var _ Store = (*RedisStore)(nil)

// RedisConfig for creating a Redis store
type RedisConfig struct {
	Addr     string        // Redis address (e.g., "localhost:6379")
	Password string        // Redis password (empty for no auth)
	DB       int           // Redis database number
	Capacity int           // Records kept per limiter (default: DefaultCapacity)
	TTL      time.Duration // TTL for a limiter's history (default: 24 hours)
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(config RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	capacity := config.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	ttl := config.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	return &RedisStore{
		client:   client,
		capacity: capacity,
		ttl:      ttl,
	}
}

func (s *RedisStore) Append(ctx context.Context, rec Record) error {
	if rec.Limiter == "" {
		return ErrEmptyName
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	key := keyPrefix + rec.Limiter

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(s.capacity-1))
	pipe.Expire(ctx, key, s.ttl)
	pipe.Publish(ctx, StatsChannel, data)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append %s: %w", rec.Limiter, err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, name string, n int) ([]Record, error) {
	stop := int64(-1)
	if n > 0 {
		stop = int64(n - 1)
	}

	vals, err := s.client.LRange(ctx, keyPrefix+name, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", name, err)
	}

	records := make([]Record, 0, len(vals))
	for _, v := range vals {
		var rec Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Clear removes all tokenfence history keys from Redis
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Subscribe returns a subscription to StatsChannel. Callers must Close it.
func (s *RedisStore) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, StatsChannel)
}

// Ping checks if Redis connection is alive
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
