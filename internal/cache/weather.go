package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-gateway/internal/models"
	"github.com/kjstillabower/city-weather-gateway/internal/observability"
)

// DefaultTTL is how long a weather payload stays fresh.
const DefaultTTL = 60 * time.Minute

// WeatherCache holds upstream weather payloads under both the city id key and
// the "name,country" key. An entry is fresh while now-fetchedAt <= ttl; stale
// entries stay in the store until a refresh overwrites them.
type WeatherCache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewWeatherCache wraps store with the given ttl. now defaults to time.Now and
// is injectable for tests.
func NewWeatherCache(store Store, ttl time.Duration, now func() time.Time) *WeatherCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &WeatherCache{store: store, ttl: ttl, now: now}
}

// TTL returns the freshness window.
func (c *WeatherCache) TTL() time.Duration {
	return c.ttl
}

// Fresh reports whether an entry fetched at fetchedAt is still fresh at now.
// The boundary is inclusive.
func (c *WeatherCache) Fresh(fetchedAt, now time.Time) bool {
	return now.Sub(fetchedAt) <= c.ttl
}

// Get returns the payload for key when a fresh entry exists. Backend errors
// are logged and treated as a miss so lookups fall through to upstream.
func (c *WeatherCache) Get(ctx context.Context, key string) ([]byte, bool) {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		observability.LoggerFromContext(ctx).Warn("weather cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		observability.CacheMissesTotal.WithLabelValues(observability.CacheTypeWeather, "absent").Inc()
		return nil, false
	}
	if !c.Fresh(entry.FetchedAt, c.now()) {
		observability.CacheMissesTotal.WithLabelValues(observability.CacheTypeWeather, "stale").Inc()
		return nil, false
	}
	observability.CacheHitsTotal.WithLabelValues(observability.CacheTypeWeather).Inc()
	return entry.Payload, true
}

// StoreCity records payload for a city under its id key and its name key with
// a single fetchedAt, so both lookup paths always agree on freshness. This is
// the only write path into the cache.
func (c *WeatherCache) StoreCity(ctx context.Context, cityID int, name, country string, payload []byte) (models.WeatherEntry, error) {
	entry := models.WeatherEntry{Payload: payload, FetchedAt: c.now()}
	keys := []string{models.CityIDKey(cityID), models.CityNameKey(name, country)}
	if err := c.store.SetMulti(ctx, keys, entry, 2*c.ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		return entry, err
	}
	return entry, nil
}
