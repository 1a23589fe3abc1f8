package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-gateway/internal/assets"
	"github.com/kjstillabower/city-weather-gateway/internal/client"
	"github.com/kjstillabower/city-weather-gateway/internal/filter"
	"github.com/kjstillabower/city-weather-gateway/internal/lifecycle"
	"github.com/kjstillabower/city-weather-gateway/internal/observability"
	"github.com/kjstillabower/city-weather-gateway/internal/service"
	"github.com/kjstillabower/city-weather-gateway/internal/submissions"
	"github.com/kjstillabower/city-weather-gateway/internal/traffic"
	"github.com/kjstillabower/city-weather-gateway/internal/validation"
)

const (
	// DefaultMaxBodyBytes caps POST bodies when no limit is configured.
	DefaultMaxBodyBytes = 1 << 20
	// DefaultAsset is served for "/" and for the by-name weather lookup.
	DefaultAsset = "index.html"

	weatherCookieName = "weatherData"
	allowedMethods    = "GET, POST, OPTIONS"
)

var weatherByIDPath = regexp.MustCompile(`^weather/(\d+)$`)

// WeatherService is the lookup surface the handlers need.
type WeatherService interface {
	GetByCityID(ctx context.Context, id int) ([]byte, error)
	GetByCityName(ctx context.Context, name, country string) ([]byte, error)
}

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	// DegradedErrorRatio is the upstream failure ratio at which /health reports degraded. 0 disables.
	DegradedErrorRatio float64
	// DegradedMinSamples is the minimum number of upstream calls in the window before degraded can trigger.
	DegradedMinSamples int
	// CachePing, when set, is called to check cache reachability. Used for memcached and redis.
	CachePing func() error
	Version   string
}

// Options configures a Handler. Zero values take defaults.
type Options struct {
	DefaultAsset    string
	MaxBodyBytes    int64
	MaxCityQueryLen int
	Health          *HealthConfig
	Now             func() time.Time
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weather      WeatherService
	assets       *assets.Cache
	filter       *filter.Filter
	submissions  *submissions.Log
	state        *lifecycle.State
	outcomes     *traffic.Tracker
	logger       *zap.Logger
	health       *HealthConfig
	defaultAsset string
	maxBodyBytes int64
	maxQueryLen  int
	now          func() time.Time

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. outcomes may be nil, in which case /health never reports degraded.
func NewHandler(
	weather WeatherService,
	assetCache *assets.Cache,
	jsonFilter *filter.Filter,
	subs *submissions.Log,
	state *lifecycle.State,
	outcomes *traffic.Tracker,
	logger *zap.Logger,
	opts Options,
) *Handler {
	if opts.DefaultAsset == "" {
		opts.DefaultAsset = DefaultAsset
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Health == nil {
		opts.Health = &HealthConfig{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if jsonFilter == nil {
		jsonFilter = filter.New(false)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weather:      weather,
		assets:       assetCache,
		filter:       jsonFilter,
		submissions:  subs,
		state:        state,
		outcomes:     outcomes,
		logger:       logger,
		health:       opts.Health,
		defaultAsset: strings.ToLower(opts.DefaultAsset),
		maxBodyBytes: opts.MaxBodyBytes,
		maxQueryLen:  opts.MaxCityQueryLen,
		now:          opts.Now,
	}
}

// normalizedPath lower-cases the request path and trims surrounding slashes.
func normalizedPath(r *http.Request) string {
	return strings.ToLower(strings.Trim(r.URL.Path, "/"))
}

// Options handles OPTIONS for any path. CORS preflights are answered earlier by the CORS middleware.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// MethodNotAllowed answers every method other than GET, POST and OPTIONS.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", allowedMethods)
	writeText(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

// weatherCityID extracts the id from a "weather/<digits>" path.
func weatherCityID(path string) (string, bool) {
	m := weatherByIDPath.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// isWeatherByName reports whether the request is a by-name weather lookup.
func isWeatherByName(r *http.Request) bool {
	return normalizedPath(r) == "weather" && r.URL.Query().Get("city") != ""
}

// GetWeatherByID handles GET /weather/{cityId}.
func (h *Handler) GetWeatherByID(w http.ResponseWriter, r *http.Request) {
	raw, ok := weatherCityID(normalizedPath(r))
	if !ok {
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", "City not found")
		return
	}
	// Ids too large for int cannot be in the directory.
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", "City not found")
		return
	}

	payload, err := h.weather.GetByCityID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// GetWeatherByName handles GET /weather?city=<name>,<country>. The payload is
// handed to the page in the weatherData cookie and the default asset is served.
func (h *Handler) GetWeatherByName(w http.ResponseWriter, r *http.Request) {
	name, country, err := validation.ParseCityQuery(r.URL.Query().Get("city"), h.maxQueryLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}

	payload, err := h.weather.GetByCityName(r.Context(), name, country)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Add("Set-Cookie", weatherCookie(payload))
	h.serveAsset(w, r, h.defaultAsset, false)
}

// weatherCookie renders the payload as a cookie the page can JSON.parse
// directly. The JSON is compacted and ';' is escaped as \u003b, which is only
// legal inside JSON strings anyway. http.SetCookie is not used because it
// strips the quotes the payload depends on.
func weatherCookie(payload []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		buf.Reset()
		buf.Write(payload)
	}
	value := bytes.ReplaceAll(buf.Bytes(), []byte(";"), []byte(`\u003b`))
	value = bytes.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, value)
	return weatherCookieName + "=" + string(value) + "; Path=/"
}

// GetAsset handles GET for every path that is not a weather lookup.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	path := normalizedPath(r)
	if path == "" {
		path = h.defaultAsset
	}
	h.serveAsset(w, r, path, true)
}

func (h *Handler) serveAsset(w http.ResponseWriter, r *http.Request, path string, applyFilter bool) {
	data, _, err := h.assets.Load(path)
	if err != nil {
		if errors.Is(err, assets.ErrNotFound) {
			writeText(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
			return
		}
		observability.LoggerFromContext(r.Context()).Error("asset read failed", zap.String("path", path), zap.Error(err))
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	if applyFilter {
		if q := r.URL.Query(); len(q) > 0 {
			data = h.filter.Apply(data, q)
		}
	}
	w.Header().Set("Content-Type", assets.ContentType(path))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// PostSubmission handles POST to any path: the JSON body is appended to the submissions log.
func (h *Handler) PostSubmission(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			observability.SubmissionsTotal.WithLabelValues("too_large").Inc()
			writeText(w, http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge))
			return
		}
		observability.SubmissionsTotal.WithLabelValues("invalid").Inc()
		writeText(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.submissions.Append(body); err != nil {
		if errors.Is(err, submissions.ErrInvalidJSON) {
			observability.SubmissionsTotal.WithLabelValues("invalid").Inc()
			writeText(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		observability.SubmissionsTotal.WithLabelValues("error").Inc()
		observability.LoggerFromContext(r.Context()).Error("submission write failed", zap.Error(err))
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	observability.SubmissionsTotal.WithLabelValues("saved").Inc()
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Data saved successfully!"})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherApi": "healthy"}
	if result.reason == "error_rate_breach" {
		checks["weatherApi"] = "unhealthy"
	}
	if h.health.CachePing != nil {
		if h.health.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	version := h.health.Version
	if version == "" {
		version = "dev"
	}
	now := h.now()
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "city-weather-gateway",
		"version":   version,
		"checks":    checks,
		"assets":    h.assets.Len(),
		"timestamp": now.UTC().Format(time.RFC3339),
	}
	if h.state != nil {
		resp["uptime"] = h.state.Uptime(now).String()
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates shutting-down, then degraded, then healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if h.state != nil && h.state.ShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.outcomes != nil && h.health.DegradedErrorRatio > 0 &&
		h.outcomes.Degraded(h.health.DegradedErrorRatio, h.health.DegradedMinSamples) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeText writes a plain-text body. Asset and submission errors use this form.
func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

// writeError writes the JSON error envelope with code, message and the request's correlation id.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError maps a weather lookup failure to its response:
// unknown city 404, upstream timeout 504, anything else upstream 502.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context())
	switch {
	case errors.Is(err, service.ErrCityNotFound):
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", "City not found")
	case errors.Is(err, client.ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("upstream timeout", zap.Error(err))
		writeError(w, r, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "Weather provider timed out")
	default:
		logger.Warn("upstream error", zap.Error(err), zap.String("category", string(client.CategorizeError(err))))
		writeError(w, r, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data")
	}
}
