package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-gateway/internal/observability"
)

// WeatherFetcher is implemented by the service layer to fetch weather for a city id.
// Used by CacheWarmer to avoid a circular dependency on the service package.
type WeatherFetcher interface {
	GetByCityID(ctx context.Context, id int) ([]byte, error)
}

// CacheWarmer prefetches weather for a fixed set of city ids.
type CacheWarmer struct {
	fetcher WeatherFetcher
	logger  *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer that uses the given fetcher and logger.
func NewCacheWarmer(fetcher WeatherFetcher, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{fetcher: fetcher, logger: logger}
}

// Warm fetches weather for each city concurrently; fresh entries are served from
// cache, so a warm inside the TTL window issues no upstream calls.
// Returns the joined per-city errors.
func (w *CacheWarmer) Warm(ctx context.Context, cityIDs []int) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Info("warming weather cache", zap.Int("cities", len(cityIDs)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, id := range cityIDs {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if _, err := w.fetcher.GetByCityID(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm city %d: %w", id, err))
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.logger.Info("weather cache warming complete",
		zap.Int("cities", len(cityIDs)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration))
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}

// WarmPeriodic refreshes at the given interval until ctx is done. The initial
// warm is expected to have run already during startup.
func (w *CacheWarmer) WarmPeriodic(ctx context.Context, cityIDs []int, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, cityIDs); err != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
