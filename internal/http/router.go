package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/city-weather-gateway/internal/observability"
)

// RouterConfig carries the cross-cutting settings applied around the handlers.
type RouterConfig struct {
	Logger         *zap.Logger
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
	AllowedOrigins []string
	InFlight       *InFlightTracker
}

// NewRouter wires the handlers behind method and path dispatch:
// GET weather/<id>, GET weather?city=, GET assets, POST submissions,
// OPTIONS, and 405 for everything else. Weather routes are rate limited and
// carry the request timeout.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	if cfg.InFlight != nil {
		router.Use(cfg.InFlight.Middleware)
	}

	weather := func(fn http.HandlerFunc) http.Handler {
		return RateLimitMiddleware(cfg.Limiter)(TimeoutMiddleware(cfg.RequestTimeout)(fn))
	}

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		_, ok := weatherCityID(normalizedPath(r))
		return ok
	}).Methods(http.MethodGet).Handler(weather(h.GetWeatherByID))
	router.MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		return isWeatherByName(r)
	}).Methods(http.MethodGet).Handler(weather(h.GetWeatherByName))
	router.Methods(http.MethodGet).HandlerFunc(h.GetAsset)
	router.Methods(http.MethodPost).HandlerFunc(h.PostSubmission)
	router.Methods(http.MethodOptions).HandlerFunc(h.Options)
	router.PathPrefix("/").HandlerFunc(h.MethodNotAllowed)
	router.MethodNotAllowedHandler = http.HandlerFunc(h.MethodNotAllowed)

	return CORSMiddleware(cfg.AllowedOrigins)(router)
}
