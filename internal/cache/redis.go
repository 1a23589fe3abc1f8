package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kjstillabower/city-weather-gateway/internal/models"
)

// RedisStore implements Store using redis. Multi-key writes run in a
// MULTI/EXEC transaction so both lookup keys change together.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore for the server at addr.
func NewRedisStore(addr, password string, db int, timeout time.Duration) *RedisStore {
	opts := &redis.Options{Addr: addr, Password: password, DB: db}
	if timeout > 0 {
		opts.DialTimeout = timeout
		opts.ReadTimeout = timeout
		opts.WriteTimeout = timeout
	}
	return &RedisStore{client: redis.NewClient(opts), prefix: keyPrefix}
}

// Get implements Store.Get. Returns false, nil on cache miss.
func (s *RedisStore) Get(ctx context.Context, key string) (models.WeatherEntry, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.WeatherEntry{}, false, nil
		}
		return models.WeatherEntry{}, false, err
	}
	var entry models.WeatherEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return models.WeatherEntry{}, false, fmt.Errorf("decode cached entry: %w", err)
	}
	return entry, true, nil
}

// SetMulti implements Store.SetMulti.
func (s *RedisStore) SetMulti(ctx context.Context, keys []string, entry models.WeatherEntry, retention time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if retention <= 0 {
		retention = 2 * time.Hour
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Set(ctx, s.prefix+k, raw, retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks if redis is reachable. Used for health checks.
func (s *RedisStore) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close closes the redis connection pool. Call during shutdown.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
