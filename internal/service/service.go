package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/city-weather-gateway/internal/cache"
	"github.com/kjstillabower/city-weather-gateway/internal/cities"
	"github.com/kjstillabower/city-weather-gateway/internal/client"
	"github.com/kjstillabower/city-weather-gateway/internal/models"
	"github.com/kjstillabower/city-weather-gateway/internal/observability"
	"github.com/kjstillabower/city-weather-gateway/internal/traffic"
)

// ErrCityNotFound is returned for ids missing from the city directory and for
// names the upstream provider does not know.
var ErrCityNotFound = errors.New("city not found")

// WeatherService resolves weather lookups cache-first, falling back to the
// upstream client on a miss or stale entry. Every successful fetch is stored
// under both the id key and the name key.
type WeatherService struct {
	client   client.WeatherClient
	cache    *cache.WeatherCache
	cities   *cities.Directory
	outcomes *traffic.Tracker
	coalesce bool
	flights  singleflight.Group
}

// NewWeatherService creates a WeatherService. outcomes may be nil. With
// coalesceEnabled, concurrent misses for the same key share one upstream call.
func NewWeatherService(c client.WeatherClient, wc *cache.WeatherCache, dir *cities.Directory, outcomes *traffic.Tracker, coalesceEnabled bool) *WeatherService {
	return &WeatherService{
		client:   c,
		cache:    wc,
		cities:   dir,
		outcomes: outcomes,
		coalesce: coalesceEnabled,
	}
}

// GetByCityID returns the weather payload for a city in the directory.
// Unknown ids fail with ErrCityNotFound without calling upstream.
func (s *WeatherService) GetByCityID(ctx context.Context, id int) ([]byte, error) {
	observability.WeatherQueriesTotal.WithLabelValues("id").Inc()
	city, ok := s.cities.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrCityNotFound, id)
	}

	key := models.CityIDKey(id)
	return s.lookup(ctx, key, func(ctx context.Context) ([]byte, error) {
		res, err := s.client.FetchByID(ctx, id)
		if err != nil {
			return nil, err
		}
		s.store(ctx, id, city.Name, city.Country, res.Payload)
		return res.Payload, nil
	})
}

// GetByCityName returns the weather payload for "name,country". The upstream
// response supplies the city id so the id key is written too.
func (s *WeatherService) GetByCityName(ctx context.Context, name, country string) ([]byte, error) {
	observability.WeatherQueriesTotal.WithLabelValues("name").Inc()
	key := models.CityNameKey(name, country)
	return s.lookup(ctx, key, func(ctx context.Context) ([]byte, error) {
		res, err := s.client.FetchByName(ctx, name, country)
		if err != nil {
			return nil, err
		}
		s.store(ctx, res.CityID, name, country, res.Payload)
		return res.Payload, nil
	})
}

func (s *WeatherService) lookup(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	logger := observability.LoggerFromContext(ctx)
	start := time.Now()

	if payload, ok := s.cache.Get(ctx, key); ok {
		logger.Debug("weather served", zap.String("key", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return payload, nil
	}
	logger.Debug("cache miss, fetching upstream", zap.String("key", key))

	// A flight that finished between our cache check and joining has already
	// stored the entry, so check again inside the flight.
	fetchFresh := func(ctx context.Context) ([]byte, error) {
		if payload, ok := s.cache.Get(ctx, key); ok {
			return payload, nil
		}
		payload, err := fetch(ctx)
		s.recordOutcome(err)
		return payload, err
	}

	var (
		payload []byte
		err     error
	)
	if s.coalesce {
		payload, err = s.coalesced(ctx, key, fetchFresh)
	} else {
		payload, err = fetchFresh(ctx)
	}
	if err != nil {
		if errors.Is(err, client.ErrCityNotFound) {
			return nil, fmt.Errorf("%w: %s: %w", ErrCityNotFound, key, err)
		}
		return nil, fmt.Errorf("fetch weather for %s: %w", key, err)
	}
	logger.Debug("weather served", zap.String("key", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return payload, nil
}

// coalesced runs fetch once per key across concurrent callers. The shared call
// is detached from any single caller's cancellation; each caller still stops
// waiting when its own context ends.
func (s *WeatherService) coalesced(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	ch := s.flights.DoChan(key, func() (any, error) {
		return fetch(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Shared {
			observability.WeatherCoalescedTotal.Inc()
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]byte), nil
	}
}

// store writes both keys. A cache write failure is logged and the fetched
// payload is still returned to the caller.
func (s *WeatherService) store(ctx context.Context, cityID int, name, country string, payload []byte) {
	if _, err := s.cache.StoreCity(ctx, cityID, name, country, payload); err != nil {
		observability.LoggerFromContext(ctx).Warn("cache set failed",
			zap.Int("city_id", cityID),
			zap.String("name_key", models.CityNameKey(name, country)),
			zap.Error(err))
	}
}

func (s *WeatherService) recordOutcome(err error) {
	if s.outcomes == nil {
		return
	}
	switch {
	case err == nil:
		s.outcomes.RecordSuccess()
	case client.CountsAgainstCircuit(err):
		s.outcomes.RecordFailure()
	}
}
