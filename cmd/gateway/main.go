package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/city-weather-gateway/internal/assets"
	"github.com/kjstillabower/city-weather-gateway/internal/cache"
	"github.com/kjstillabower/city-weather-gateway/internal/circuitbreaker"
	"github.com/kjstillabower/city-weather-gateway/internal/cities"
	"github.com/kjstillabower/city-weather-gateway/internal/client"
	"github.com/kjstillabower/city-weather-gateway/internal/config"
	"github.com/kjstillabower/city-weather-gateway/internal/filter"
	httphandler "github.com/kjstillabower/city-weather-gateway/internal/http"
	"github.com/kjstillabower/city-weather-gateway/internal/lifecycle"
	"github.com/kjstillabower/city-weather-gateway/internal/observability"
	"github.com/kjstillabower/city-weather-gateway/internal/service"
	"github.com/kjstillabower/city-weather-gateway/internal/submissions"
	"github.com/kjstillabower/city-weather-gateway/internal/traffic"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// backend is the weather store selected by configuration, with its health probe and closer.
type backend struct {
	store cache.Store
	ping  func() error
	close func() error
}

func main() {
	logger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if logger, err = observability.NewLogger(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	assetCache := assets.NewCache(os.DirFS(cfg.PublicDir))
	if _, err := assetCache.Preload(logger); err != nil {
		logger.Fatal("asset preload", zap.String("public_dir", cfg.PublicDir), zap.Error(err))
	}
	directory, err := loadCities(assetCache, cfg.CitiesFile)
	if err != nil {
		logger.Fatal("city list", zap.Error(err))
	}
	logger.Info("city list loaded", zap.Int("cities", directory.Len()))

	be, err := newBackend(cfg, logger)
	if err != nil {
		logger.Fatal("cache backend", zap.String("backend", cfg.CacheBackend), zap.Error(err))
	}

	weatherClient, err := client.NewOpenWeatherClientWithRetry(
		cfg.WeatherAPIKey,
		cfg.WeatherAPIURL,
		cfg.WeatherAPITimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	weatherClient.SetUnits(cfg.WeatherAPIUnits)

	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        "weather_api",
			IsFailure:        client.CountsAgainstCircuit,
			OnStateChange: func(component string, from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition(component, from.String(), to.String(), int(to))
				logger.Warn("circuit breaker state change",
					zap.String("component", component),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		weatherClient.SetCircuitBreaker(cb)
		observability.CircuitBreakerState.WithLabelValues("weather_api").Set(0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	outcomes := traffic.NewTracker(cfg.DegradedWindow, time.Now)
	weatherCache := cache.NewWeatherCache(be.store, cfg.CacheTTL, time.Now)
	weatherService := service.NewWeatherService(weatherClient, weatherCache, directory, outcomes, cfg.CoalesceEnabled)

	warmCtx, stopWarm := context.WithCancel(context.Background())
	defer stopWarm()
	if cfg.WarmEnabled && len(cfg.WarmCityIDs) > 0 {
		startWarming(warmCtx, cache.NewCacheWarmer(weatherService, logger), cfg, logger)
	}

	state := lifecycle.New(time.Now())
	handler := httphandler.NewHandler(
		weatherService,
		assetCache,
		filter.New(cfg.FilterStrictEquality),
		submissions.NewLog(cfg.SubmissionsFile),
		state,
		outcomes,
		logger,
		httphandler.Options{
			DefaultAsset:    cfg.DefaultAsset,
			MaxBodyBytes:    cfg.MaxBodyBytes,
			MaxCityQueryLen: cfg.MaxCityQueryLen,
			Health: &httphandler.HealthConfig{
				DegradedErrorRatio: float64(cfg.DegradedErrorPct) / 100,
				DegradedMinSamples: cfg.DegradedMinSamples,
				CachePing:          be.ping,
				Version:            version,
			},
		},
	)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	inFlight := &httphandler.InFlightTracker{}
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Logger:         logger,
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		InFlight:       inFlight,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	state.BeginShutdown()
	stopWarm()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	remaining := inFlight.Count()
	logger.Info("waiting for in-flight requests", zap.Int64("count", remaining))
	observability.RecordShutdownInFlight(remaining)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := inFlight.WaitForZero(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", inFlight.Count()))
	}

	if err := observability.FlushTelemetry(logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if be.close != nil {
		if err := be.close(); err != nil {
			logger.Error("cache backend close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// loadCities parses the city list through the asset cache so a preloaded copy is reused.
func loadCities(assetCache *assets.Cache, name string) (*cities.Directory, error) {
	data, _, err := assetCache.Load(strings.ToLower(name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	dir, err := cities.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return dir, nil
}

// newBackend builds the weather store named by cfg.CacheBackend.
func newBackend(cfg *config.Config, logger *zap.Logger) (backend, error) {
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return backend{}, err
		}
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return backend{store: mc, ping: mc.Ping, close: mc.Close}, nil
	case "redis":
		rs := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTimeout)
		if err := rs.Ping(); err != nil {
			logger.Warn("redis not reachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		logger.Info("cache backend: redis", zap.String("addr", cfg.RedisAddr))
		return backend{store: rs, ping: rs.Ping, close: rs.Close}, nil
	case "in_memory", "":
		mem := cache.NewInMemoryStore()
		observability.RegisterCacheSizeGauge(mem.Len)
		logger.Info("cache backend: in_memory")
		return backend{store: mem}, nil
	default:
		return backend{}, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// startWarming runs one bounded warm pass, then keeps refreshing on WarmInterval if set.
func startWarming(ctx context.Context, warmer *cache.CacheWarmer, cfg *config.Config, logger *zap.Logger) {
	go func() {
		passCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := warmer.Warm(passCtx, cfg.WarmCityIDs); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		cancel()
		if cfg.WarmInterval <= 0 {
			return
		}
		if err := warmer.WarmPeriodic(ctx, cfg.WarmCityIDs, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("periodic cache warming stopped", zap.Error(err))
		}
	}()
}
