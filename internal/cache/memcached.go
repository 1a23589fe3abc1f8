package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/city-weather-gateway/internal/models"
)

const keyPrefix = "weather:"

// memcached rejects keys longer than this.
const maxMemcachedKeyLen = 250

// MemcachedStore implements Store using memcached.
type MemcachedStore struct {
	client *memcache.Client
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedStore, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		return nil, fmt.Errorf("memcached: no server addresses in %q", addrs)
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedStore{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// memcachedKey escapes city names (which may contain spaces) into the key
// alphabet memcached accepts, hashing keys that would exceed the length limit.
func memcachedKey(k string) string {
	key := keyPrefix + url.QueryEscape(k)
	if len(key) > maxMemcachedKeyLen {
		sum := sha256.Sum256([]byte(k))
		key = keyPrefix + "h:" + hex.EncodeToString(sum[:])
	}
	return key
}

// Get implements Store.Get. Returns false, nil on cache miss; false, err on error.
func (s *MemcachedStore) Get(ctx context.Context, key string) (models.WeatherEntry, bool, error) {
	if ctx.Err() != nil {
		return models.WeatherEntry{}, false, ctx.Err()
	}
	item, err := s.client.Get(memcachedKey(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return models.WeatherEntry{}, false, nil
		}
		return models.WeatherEntry{}, false, err
	}
	var entry models.WeatherEntry
	if err := json.Unmarshal(item.Value, &entry); err != nil {
		return models.WeatherEntry{}, false, fmt.Errorf("decode cached entry: %w", err)
	}
	return entry, true, nil
}

// SetMulti implements Store.SetMulti. memcached has no multi-key transaction,
// so keys are written in order and the first failure is returned.
func (s *MemcachedStore) SetMulti(ctx context.Context, keys []string, entry models.WeatherEntry, retention time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	exp := expirationSeconds(retention)
	for _, k := range keys {
		if err := s.client.Set(&memcache.Item{
			Key:        memcachedKey(k),
			Value:      raw,
			Expiration: exp,
		}); err != nil {
			return fmt.Errorf("memcached set %s: %w", k, err)
		}
	}
	return nil
}

func expirationSeconds(retention time.Duration) int32 {
	expSec := int32(retention.Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // 30 days
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 2 * 3600
	}
	return expSec
}

// Ping checks if memcached is reachable. Used for health checks.
func (s *MemcachedStore) Ping() error {
	return s.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (s *MemcachedStore) Close() error {
	return s.client.Close()
}
