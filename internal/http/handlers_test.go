package http

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/city-weather-gateway/internal/assets"
	"github.com/kjstillabower/city-weather-gateway/internal/cache"
	"github.com/kjstillabower/city-weather-gateway/internal/cities"
	"github.com/kjstillabower/city-weather-gateway/internal/client"
	"github.com/kjstillabower/city-weather-gateway/internal/filter"
	"github.com/kjstillabower/city-weather-gateway/internal/lifecycle"
	"github.com/kjstillabower/city-weather-gateway/internal/service"
	"github.com/kjstillabower/city-weather-gateway/internal/submissions"
	"github.com/kjstillabower/city-weather-gateway/internal/traffic"
)

const (
	indexHTML  = "<!doctype html><title>weather</title>"
	citiesJSON = `[{"id":2643743,"name":"London","country":"GB","coord":{"lat":51.50853,"lon":-0.12574}},{"id":5128581,"name":"New York","country":"US","coord":{"lat":40.71427,"lon":-74.00597}},{"id":2653941,"name":"Cambridge","country":"GB","coord":{"lat":52.2,"lon":0.11667}}]`
	londonBody = `{"id":2643743,"name":"London","sys":{"country":"GB"},"main":{"temp":281.3}}`
)

type mockWeatherClient struct {
	calls atomic.Int32
	err   error
	block bool // when true, fetches wait for ctx.Done()
}

func (m *mockWeatherClient) FetchByID(ctx context.Context, id int) (client.Result, error) {
	m.calls.Add(1)
	if m.block {
		<-ctx.Done()
		return client.Result{}, ctx.Err()
	}
	if m.err != nil {
		return client.Result{}, m.err
	}
	return client.Result{Payload: []byte(londonBody), CityID: id, Name: "London", Country: "GB"}, nil
}

func (m *mockWeatherClient) FetchByName(ctx context.Context, name, country string) (client.Result, error) {
	m.calls.Add(1)
	if m.err != nil {
		return client.Result{}, m.err
	}
	if !strings.EqualFold(name, "London") {
		return client.Result{}, client.ErrCityNotFound
	}
	return client.Result{Payload: []byte(londonBody), CityID: 2643743, Name: "London", Country: "GB"}, nil
}

// errFS fails every read of the named file with a non-NotExist error.
type errFS struct {
	files fstest.MapFS
	name  string
}

func (e errFS) Open(name string) (fs.File, error) {
	if name == e.name {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return e.files.Open(name)
}

type testEnv struct {
	handler   *Handler
	router    http.Handler
	client    *mockWeatherClient
	assets    *assets.Cache
	state     *lifecycle.State
	outcomes  *traffic.Tracker
	submitLog string
}

type envOption func(*envConfig)

type envConfig struct {
	store   fs.FS
	limiter *rate.Limiter
	timeout time.Duration
	maxBody int64
	logger  *zap.Logger
	health  *HealthConfig
}

func newTestEnv(t *testing.T, mc *mockWeatherClient, opts ...envOption) *testEnv {
	t.Helper()
	cfg := envConfig{
		store: fstest.MapFS{
			"index.html":  {Data: []byte(indexHTML)},
			"cities.json": {Data: []byte(citiesJSON)},
			"main.js":     {Data: []byte("console.log('hi')")},
		},
		logger: zap.NewNop(),
		health: &HealthConfig{DegradedErrorRatio: 0.5, DegradedMinSamples: 2},
	}
	for _, o := range opts {
		o(&cfg)
	}

	assetCache := assets.NewCache(cfg.store)
	if _, err := assetCache.Preload(cfg.logger); err != nil {
		t.Fatalf("Preload() error = %v", err)
	}
	dir, err := cities.Parse([]byte(citiesJSON))
	if err != nil {
		t.Fatalf("cities.Parse() error = %v", err)
	}
	outcomes := traffic.NewTracker(time.Minute, nil)
	wc := cache.NewWeatherCache(cache.NewInMemoryStore(), time.Hour, nil)
	svc := service.NewWeatherService(mc, wc, dir, outcomes, false)

	submitLog := filepath.Join(t.TempDir(), "public", "data.json")
	state := lifecycle.New(time.Now())
	h := NewHandler(svc, assetCache, filter.New(false), submissions.NewLog(submitLog), state, outcomes, cfg.logger, Options{
		MaxBodyBytes: cfg.maxBody,
		Health:       cfg.health,
	})
	router := NewRouter(h, RouterConfig{
		Logger:         cfg.logger,
		Limiter:        cfg.limiter,
		RequestTimeout: cfg.timeout,
		InFlight:       &InFlightTracker{},
	})
	return &testEnv{handler: h, router: router, client: mc, assets: assetCache, state: state, outcomes: outcomes, submitLog: submitLog}
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code      string `json:"code"`
			Message   string `json:"message"`
			RequestID string `json:"requestId"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error envelope: %v (body %q)", err, w.Body.String())
	}
	if resp.Error.RequestID == "" {
		t.Error("error envelope requestId is empty")
	}
	return resp.Error.Code
}

// TestGetWeatherByID_CachedWithinTTL verifies that two requests inside the TTL
// return byte-identical bodies with one upstream call.
func TestGetWeatherByID_CachedWithinTTL(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{})

	first := env.do(http.MethodGet, "/weather/2643743", "")
	second := env.do(http.MethodGet, "/weather/2643743", "")

	for i, w := range []*httptest.ResponseRecorder{first, second} {
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("request %d Content-Type = %q, want application/json", i, ct)
		}
	}
	if first.Body.String() != londonBody || second.Body.String() != first.Body.String() {
		t.Errorf("bodies = %q / %q, want %q twice", first.Body.String(), second.Body.String(), londonBody)
	}
	if n := env.client.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestGetWeatherByID_CaseAndSlashInsensitive(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{})
	w := env.do(http.MethodGet, "/Weather/2643743/", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestGetWeatherByID_UnknownCity(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{})

	w := env.do(http.MethodGet, "/weather/999", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if code := decodeErrorCode(t, w); code != "CITY_NOT_FOUND" {
		t.Errorf("error code = %q, want CITY_NOT_FOUND", code)
	}
	if n := env.client.calls.Load(); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
}

func TestGetWeatherByID_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"5xx", client.ErrUpstreamFailure, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
		{"malformed", client.ErrMalformedResponse, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
		{"timeout", client.ErrUpstreamTimeout, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"},
		{"not found upstream", client.ErrCityNotFound, http.StatusNotFound, "CITY_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &mockWeatherClient{err: tt.err})
			w := env.do(http.MethodGet, "/weather/2643743", "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if code := decodeErrorCode(t, w); code != tt.wantCode {
				t.Errorf("error code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestGetWeatherByID_RequestTimeout(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{block: true}, func(c *envConfig) { c.timeout = 20 * time.Millisecond })

	w := env.do(http.MethodGet, "/weather/2643743", "")
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", w.Code)
	}
	if code := decodeErrorCode(t, w); code != "UPSTREAM_TIMEOUT" {
		t.Errorf("error code = %q, want UPSTREAM_TIMEOUT", code)
	}
}

func TestGetWeatherByID_RateLimited(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{}, func(c *envConfig) { c.limiter = rate.NewLimiter(rate.Every(time.Hour), 1) })

	if w := env.do(http.MethodGet, "/weather/2643743", ""); w.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", w.Code)
	}
	w := env.do(http.MethodGet, "/weather/2643743", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", w.Code)
	}
	if code := decodeErrorCode(t, w); code != "RATE_LIMITED" {
		t.Errorf("error code = %q, want RATE_LIMITED", code)
	}
	// Assets are not rate limited.
	if w := env.do(http.MethodGet, "/", ""); w.Code != http.StatusOK {
		t.Errorf("asset status = %d, want 200", w.Code)
	}
}

func TestGetWeatherByName_SetsCookieAndServesIndex(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{})

	w := env.do(http.MethodGet, "/weather?city=London,GB", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Set-Cookie"); got != "weatherData="+londonBody+"; Path=/" {
		t.Errorf("Set-Cookie = %q", got)
	}
	if w.Body.String() != indexHTML {
		t.Errorf("body = %q, want index.html", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html" {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}

	// The name fetch also stored the id key.
	if w := env.do(http.MethodGet, "/weather/2643743", ""); w.Code != http.StatusOK {
		t.Fatalf("by-id status = %d, want 200", w.Code)
	}
	if n := env.client.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestGetWeatherByName_InvalidQuery(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{})

	w := env.do(http.MethodGet, "/weather?city=London", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if code := decodeErrorCode(t, w); code != "INVALID_CITY" {
		t.Errorf("error code = %q, want INVALID_CITY", code)
	}
	if n := env.client.calls.Load(); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
}

func TestGetWeatherByName_UnknownCity(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{})
	w := env.do(http.MethodGet, "/weather?city=Atlantis,XX", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if w.Header().Get("Set-Cookie") != "" {
		t.Error("Set-Cookie present on failed lookup")
	}
}

func TestWeatherCookie_EscapesSemicolons(t *testing.T) {
	got := weatherCookie([]byte("{\"note\": \"a;b\",\n \"id\": 1}"))
	want := `weatherData={"note":"a\u003bb","id":1}; Path=/`
	if got != want {
		t.Errorf("weatherCookie() = %q, want %q", got, want)
	}
}

func TestGetAsset(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantCT   string
		wantBody string
	}{
		{"root serves index", "/", "text/html", indexHTML},
		{"case-insensitive", "/INDEX.HTML", "text/html", indexHTML},
		{"javascript", "/main.js", "text/javascript", "console.log('hi')"},
		{"json unfiltered", "/cities.json", "application/json", citiesJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &mockWeatherClient{})
			w := env.do(http.MethodGet, tt.target, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != tt.wantCT {
				t.Errorf("Content-Type = %q, want %q", ct, tt.wantCT)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

// TestGetAsset_FilteredByQuery verifies /cities.json?country=GB keeps only GB cities.
func TestGetAsset_FilteredByQuery(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{})

	w := env.do(http.MethodGet, "/cities.json?country=GB", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got []struct {
		ID      int    `json:"id"`
		Country string `json:"country"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d cities, want 2: %s", len(got), w.Body.String())
	}
	for _, c := range got {
		if c.Country != "GB" {
			t.Errorf("city %d country = %q, want GB", c.ID, c.Country)
		}
	}

	// Loose equality matches numeric ids given as strings.
	w = env.do(http.MethodGet, "/cities.json?id=5128581", "")
	if !strings.Contains(w.Body.String(), `"New York"`) || strings.Contains(w.Body.String(), "London") {
		t.Errorf("id filter body = %s", w.Body.String())
	}
}

// TestGetAsset_NotFoundLeavesCacheUnchanged verifies a missing asset is a 404
// and is not memoized.
func TestGetAsset_NotFoundLeavesCacheUnchanged(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{})
	before := env.assets.Len()

	w := env.do(http.MethodGet, "/nonexistent.json", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if env.assets.Len() != before {
		t.Errorf("asset cache size = %d, want %d", env.assets.Len(), before)
	}
	if _, ok := env.assets.Get("nonexistent.json"); ok {
		t.Error("missing asset was memoized")
	}
}

func TestGetAsset_LazyLoadAfterPreload(t *testing.T) {
	store := fstest.MapFS{"index.html": {Data: []byte(indexHTML)}, "cities.json": {Data: []byte(citiesJSON)}}
	env := newTestEnv(t, &mockWeatherClient{}, func(c *envConfig) { c.store = store })

	store["late.txt"] = &fstest.MapFile{Data: []byte("added later")}
	w := env.do(http.MethodGet, "/late.txt", "")
	if w.Code != http.StatusOK || w.Body.String() != "added later" {
		t.Fatalf("status = %d body = %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if _, ok := env.assets.Get("late.txt"); !ok {
		t.Error("lazily read asset not memoized")
	}
}

func TestGetAsset_ReadError(t *testing.T) {
	store := errFS{
		files: fstest.MapFS{"index.html": {Data: []byte(indexHTML)}, "secret.txt": {Data: []byte("x")}},
		name:  "secret.txt",
	}
	env := newTestEnv(t, &mockWeatherClient{}, func(c *envConfig) { c.store = store })

	w := env.do(http.MethodGet, "/secret.txt", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "permission denied") {
		t.Errorf("body = %q, want error message", w.Body.String())
	}
}

func TestPostSubmission(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{})

	w := env.do(http.MethodPost, "/anything", "{\n  \"name\": \"Ada\",\n  \"city\": 2643743\n}")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp["message"] != "Data saved successfully!" {
		t.Errorf("message = %q", resp["message"])
	}

	_ = env.do(http.MethodPost, "/", `[1,2]`)
	data, err := os.ReadFile(env.submitLog)
	if err != nil {
		t.Fatalf("read submissions log: %v", err)
	}
	if want := "{\"name\":\"Ada\",\"city\":2643743}\n[1,2]\n"; string(data) != want {
		t.Errorf("log = %q, want %q", data, want)
	}
}

func TestPostSubmission_Errors(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{}, func(c *envConfig) { c.maxBody = 16 })

	if w := env.do(http.MethodPost, "/", "{not json"); w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON status = %d, want 400", w.Code)
	}
	if w := env.do(http.MethodPost, "/", `{"k":"`+strings.Repeat("x", 64)+`"}`); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized status = %d, want 413", w.Code)
	}
	if _, err := os.Stat(env.submitLog); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("submissions log exists after rejected posts: %v", err)
	}
}

func TestOptionsAndMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{})

	w := env.do(http.MethodOptions, "/weather/2643743", "")
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("OPTIONS status = %d body = %q, want 200 empty", w.Code, w.Body.String())
	}

	for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
		w := env.do(method, "/cities.json", "")
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s status = %d, want 405", method, w.Code)
		}
		if allow := w.Header().Get("Allow"); allow != "GET, POST, OPTIONS" {
			t.Errorf("%s Allow = %q", method, allow)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{})

	req := httptest.NewRequest(http.MethodOptions, "/weather/2643743", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestCorrelationID(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{})

	w := env.do(http.MethodGet, "/", "")
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("X-Correlation-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/weather/999", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); got != "abc-123" {
		t.Errorf("X-Correlation-ID = %q, want abc-123", got)
	}
	if !strings.Contains(rec.Body.String(), `"requestId":"abc-123"`) {
		t.Errorf("body = %s, want requestId abc-123", rec.Body.String())
	}
}

func TestGetHealth(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{})

	w := env.do(http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", resp["status"])
	}
	if resp["service"] != "city-weather-gateway" {
		t.Errorf("service = %v", resp["service"])
	}
}

func TestGetHealth_Degraded(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{err: client.ErrUpstreamFailure})
	_ = env.do(http.MethodGet, "/weather/2643743", "")
	_ = env.do(http.MethodGet, "/weather/5128581", "")

	w := env.do(http.MethodGet, "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"degraded"`) {
		t.Errorf("body = %s, want degraded", w.Body.String())
	}
}

func TestGetHealth_ShuttingDown(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	env := newTestEnv(t, &mockWeatherClient{}, func(c *envConfig) { c.logger = zap.New(core) })

	_ = env.do(http.MethodGet, "/health", "")
	env.state.BeginShutdown()
	w := env.do(http.MethodGet, "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"shutting-down"`) {
		t.Errorf("body = %s, want shutting-down", w.Body.String())
	}
	if logs.FilterMessage("health status transition").Len() != 1 {
		t.Errorf("health status transition logs = %d, want 1", logs.FilterMessage("health status transition").Len())
	}
}

func TestGetHealth_CachePing(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{}, func(c *envConfig) {
		c.health = &HealthConfig{CachePing: func() error { return errors.New("dial tcp: connection refused") }}
	})
	w := env.do(http.MethodGet, "/health", "")
	if !strings.Contains(w.Body.String(), `"cache":"unhealthy"`) {
		t.Errorf("body = %s, want cache unhealthy", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{})
	_ = env.do(http.MethodGet, "/weather/2643743", "")

	w := env.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "httpRequestsTotal") {
		t.Error("metrics output missing httpRequestsTotal")
	}
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		method, target, want string
	}{
		{http.MethodGet, "/health", "/health"},
		{http.MethodGet, "/weather/123", "/weather/{cityId}"},
		{http.MethodGet, "/weather?city=a,b", "/weather"},
		{http.MethodGet, "/cities.json", "/{asset}"},
		{http.MethodPost, "/whatever", "/{submission}"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, tt.target, nil)
		if got := routeLabel(r); got != tt.want {
			t.Errorf("routeLabel(%s %s) = %q, want %q", tt.method, tt.target, got, tt.want)
		}
	}
}
