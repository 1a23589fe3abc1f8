package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds gateway configuration loaded from YAML, secrets and env.
type Config struct {
	LogLevel string

	ServerPort      string
	PublicDir       string
	DefaultAsset    string
	CitiesFile      string
	SubmissionsFile string
	MaxBodyBytes    int64
	MaxCityQueryLen int

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration
	WeatherAPIUnits   string

	RequestTimeout time.Duration

	CacheBackend string // "in_memory", "memcached" or "redis"
	CacheTTL     time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTimeout  time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	CoalesceEnabled bool

	FilterStrictEquality bool

	CORSAllowedOrigins []string

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	DegradedWindow     time.Duration
	DegradedErrorPct   int
	DegradedMinSamples int

	WarmEnabled  bool
	WarmCityIDs  []int
	WarmInterval time.Duration
}

type fileConfig struct {
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Port            string `yaml:"port"`
		PublicDir       string `yaml:"public_dir"`
		DefaultAsset    string `yaml:"default_asset"`
		CitiesFile      string `yaml:"cities_file"`
		SubmissionsFile string `yaml:"submissions_file"`
		MaxBodyBytes    int64  `yaml:"max_body_bytes"`
		MaxCityQueryLen int    `yaml:"max_city_query_len"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL     string  `yaml:"url"`
		Timeout string  `yaml:"timeout"`
		Units   *string `yaml:"units"`
	} `yaml:"weather_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr    string `yaml:"addr"`
			DB      int    `yaml:"db"`
			Timeout string `yaml:"timeout"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts               int    `yaml:"retry_max_attempts"`
		RetryBaseDelay                 string `yaml:"retry_base_delay"`
		RetryMaxDelay                  string `yaml:"retry_max_delay"`
		RateLimitRPS                   int    `yaml:"rate_limit_rps"`
		RateLimitBurst                 int    `yaml:"rate_limit_burst"`
		CircuitBreakerEnabled          *bool  `yaml:"circuit_breaker_enabled"`
		CircuitBreakerFailureThreshold int    `yaml:"circuit_breaker_failure_threshold"`
		CircuitBreakerSuccessThreshold int    `yaml:"circuit_breaker_success_threshold"`
		CircuitBreakerTimeout          string `yaml:"circuit_breaker_timeout"`
		CoalesceEnabled                *bool  `yaml:"coalesce_enabled"`
	} `yaml:"reliability"`

	Filter struct {
		StrictEquality bool `yaml:"strict_equality"`
	} `yaml:"filter"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Health struct {
		DegradedWindow     string `yaml:"degraded_window"`
		DegradedErrorPct   int    `yaml:"degraded_error_pct"`
		DegradedMinSamples int    `yaml:"degraded_min_samples"`
	} `yaml:"health"`

	Warm struct {
		Enabled  bool   `yaml:"enabled"`
		CityIDs  []int  `yaml:"city_ids"`
		Interval string `yaml:"interval"`
	} `yaml:"warm"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// envOverrides are read from the process environment and win over the YAML file.
type envOverrides struct {
	EnvName        string `env:"ENV_NAME" envDefault:"dev"`
	WeatherAPIKey  string `env:"WEATHER_API_KEY"`
	ServerPort     string `env:"SERVER_PORT"`
	PublicDir      string `env:"PUBLIC_DIR"`
	CacheBackend   string `env:"CACHE_BACKEND"`
	MemcachedAddrs string `env:"MEMCACHED_ADDRS"`
	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	LogLevel       string `env:"LOG_LEVEL"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml,
// then applies environment overrides. Call from project root.
func Load() (*Config, error) {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", ov.EnvName+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}
	cfg.LogLevel = firstNonEmpty(ov.LogLevel, fc.Log.Level, "info")

	cfg.ServerPort = firstNonEmpty(ov.ServerPort, fc.Server.Port, "8080")
	cfg.PublicDir = firstNonEmpty(ov.PublicDir, fc.Server.PublicDir, "public")
	cfg.DefaultAsset = firstNonEmpty(fc.Server.DefaultAsset, "index.html")
	cfg.CitiesFile = firstNonEmpty(fc.Server.CitiesFile, "cities.json")
	cfg.SubmissionsFile = firstNonEmpty(fc.Server.SubmissionsFile, filepath.Join(cfg.PublicDir, "data.json"))
	cfg.MaxBodyBytes = fc.Server.MaxBodyBytes
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	cfg.MaxCityQueryLen = fc.Server.MaxCityQueryLen
	if cfg.MaxCityQueryLen <= 0 {
		cfg.MaxCityQueryLen = 120
	}

	cfg.WeatherAPIKey = ov.WeatherAPIKey
	if cfg.WeatherAPIKey == "" {
		key, err := readSecretsKey(filepath.Join(cwd, "config", "secrets.yaml"))
		if err != nil {
			return nil, err
		}
		cfg.WeatherAPIKey = key
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}

	cfg.WeatherAPIURL = firstNonEmpty(fc.WeatherAPI.URL, "https://api.openweathermap.org/data/2.5/weather")
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 2*time.Second)
	cfg.WeatherAPIUnits = "metric"
	if fc.WeatherAPI.Units != nil {
		cfg.WeatherAPIUnits = strings.TrimSpace(*fc.WeatherAPI.Units)
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 60*time.Minute)
	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(firstNonEmpty(ov.CacheBackend, fc.Cache.Backend, "in_memory")))

	cfg.MemcachedAddrs = firstNonEmpty(ov.MemcachedAddrs, fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.RedisAddr = firstNonEmpty(ov.RedisAddr, fc.Cache.Redis.Addr, "localhost:6379")
	cfg.RedisPassword = ov.RedisPassword
	cfg.RedisDB = fc.Cache.Redis.DB
	cfg.RedisTimeout = parseDuration(fc.Cache.Redis.Timeout, 500*time.Millisecond)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}
	cfg.CircuitBreakerEnabled = boolOr(fc.Reliability.CircuitBreakerEnabled, true)
	cfg.CircuitBreakerFailureThreshold = fc.Reliability.CircuitBreakerFailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.Reliability.CircuitBreakerSuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.Reliability.CircuitBreakerTimeout, 30*time.Second)
	cfg.CoalesceEnabled = boolOr(fc.Reliability.CoalesceEnabled, true)

	cfg.FilterStrictEquality = fc.Filter.StrictEquality
	cfg.CORSAllowedOrigins = fc.CORS.AllowedOrigins

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct == 0 {
		cfg.DegradedErrorPct = 50
	}
	cfg.DegradedMinSamples = fc.Health.DegradedMinSamples
	if cfg.DegradedMinSamples <= 0 {
		cfg.DegradedMinSamples = 5
	}

	cfg.WarmEnabled = fc.Warm.Enabled
	cfg.WarmCityIDs = fc.Warm.CityIDs
	cfg.WarmInterval = parseDurationOrZero(fc.Warm.Interval, 0)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readSecretsKey returns the API key from the secrets file, or "" when the file is absent.
func readSecretsKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return strings.TrimSpace(sec.WeatherAPIKey), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. RequestTimeout is raised above
// WeatherAPITimeout when needed so a single upstream attempt can complete.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached", "redis":
	default:
		return fmt.Errorf("cache.backend must be in_memory, memcached or redis, got %q", cfg.CacheBackend)
	}
	switch cfg.WeatherAPIUnits {
	case "", "standard", "metric", "imperial":
	default:
		return fmt.Errorf("weather_api.units must be standard, metric or imperial, got %q", cfg.WeatherAPIUnits)
	}
	if cfg.DegradedErrorPct < 0 || cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("health.degraded_error_pct must be between 0 and 100, got %d", cfg.DegradedErrorPct)
	}
	for _, id := range cfg.WarmCityIDs {
		if id <= 0 {
			return fmt.Errorf("warm.city_ids must be positive, got %d", id)
		}
	}
	if cfg.WarmEnabled && cfg.WarmInterval > 0 && cfg.WarmInterval >= cfg.CacheTTL {
		return fmt.Errorf("warm.interval (%s) must be shorter than cache.ttl (%s)", cfg.WarmInterval, cfg.CacheTTL)
	}
	return nil
}
