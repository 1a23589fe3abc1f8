package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kjstillabower/city-weather-gateway/internal/circuitbreaker"
	"github.com/kjstillabower/city-weather-gateway/internal/observability"
)

// WeatherClient fetches current weather for one city from the upstream provider.
type WeatherClient interface {
	FetchByID(ctx context.Context, id int) (Result, error)
	FetchByName(ctx context.Context, name, country string) (Result, error)
}

var (
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrCityNotFound      = errors.New("city not found")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 4 << 20

// Result is one upstream weather document plus the identity fields read from it.
type Result struct {
	Payload []byte
	CityID  int
	Name    string
	Country string
}

// OpenWeatherClient calls the OpenWeatherMap current-weather endpoint with
// bounded retries and an optional circuit breaker.
type OpenWeatherClient struct {
	apiKey         string
	apiURL         string
	units          string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
}

// NewOpenWeatherClient creates a client with default retry settings.
func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	return NewOpenWeatherClientWithRetry(apiKey, apiURL, timeout, 3, 100*time.Millisecond, 2*time.Second)
}

// NewOpenWeatherClientWithRetry creates a client with explicit retry settings.
// retryAttempts counts the first attempt, so 1 disables retries.
func NewOpenWeatherClientWithRetry(apiKey, apiURL string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if _, err := url.Parse(apiURL); err != nil || apiURL == "" {
		return nil, fmt.Errorf("invalid API URL %q", apiURL)
	}
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	return &OpenWeatherClient{
		apiKey:         apiKey,
		apiURL:         apiURL,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetUnits sets the units query parameter (metric, imperial, standard). Empty omits it.
func (c *OpenWeatherClient) SetUnits(units string) {
	c.units = units
}

// SetCircuitBreaker wraps every fetch in cb. Not safe to call once requests are in flight.
func (c *OpenWeatherClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

// FetchByID requests weather for a numeric city id.
func (c *OpenWeatherClient) FetchByID(ctx context.Context, id int) (Result, error) {
	params := url.Values{}
	params.Set("id", strconv.Itoa(id))
	res, err := c.fetch(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("fetch city %d: %w", id, err)
	}
	if res.CityID == 0 {
		res.CityID = id
	}
	return res, nil
}

// FetchByName requests weather for "name,country". When the upstream answers with
// a list, the first element is the result and its id is required.
func (c *OpenWeatherClient) FetchByName(ctx context.Context, name, country string) (Result, error) {
	q := name + "," + country
	params := url.Values{}
	params.Set("q", q)
	res, err := c.fetch(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("fetch city %q: %w", q, err)
	}
	if res.CityID == 0 {
		return Result{}, fmt.Errorf("fetch city %q: %w: missing city id", q, ErrMalformedResponse)
	}
	return res, nil
}

func (c *OpenWeatherClient) fetch(ctx context.Context, params url.Values) (Result, error) {
	if c.breaker == nil {
		return c.fetchWithRetry(ctx, params)
	}
	var res Result
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		res, err = c.fetchWithRetry(ctx, params)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return Result{}, fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
	}
	return res, err
}

func (c *OpenWeatherClient) fetchWithRetry(ctx context.Context, params url.Values) (Result, error) {
	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.WeatherAPIRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return Result{}, fmt.Errorf("retry wait: %w", ctx.Err())
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		res, err := c.callAPI(ctx, params)
		if err == nil {
			return res, nil
		}
		observability.WeatherAPIErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			return Result{}, err
		}
	}
	return Result{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, params url.Values) (Result, error) {
	start := time.Now()

	req, err := c.buildRequest(ctx, params)
	if err != nil {
		observability.ObserveWeatherAPICall("error", time.Since(start))
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.ObserveWeatherAPICall("error", time.Since(start))
		if isTimeout(err) {
			return Result{}, fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
		}
		return Result{}, fmt.Errorf("%w: http request failed: %w", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	observability.ObserveWeatherAPICall(statusLabel(resp.StatusCode), time.Since(start))

	if err := handleErrorResponse(resp); err != nil {
		return Result{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return Result{}, fmt.Errorf("%w: read response body: %w", ErrUpstreamTimeout, err)
		}
		return Result{}, fmt.Errorf("%w: read response body: %w", ErrUpstreamFailure, err)
	}
	return parseResponse(body)
}

// parseResponse accepts a single weather object or a {"list":[...]} search
// result, in which case the first element is used.
func parseResponse(body []byte) (Result, error) {
	if !gjson.ValidBytes(body) {
		return Result{}, fmt.Errorf("%w: invalid JSON", ErrMalformedResponse)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return Result{}, fmt.Errorf("%w: expected object", ErrMalformedResponse)
	}

	elem := doc
	payload := body
	if list := doc.Get("list"); list.Exists() {
		if !list.IsArray() {
			return Result{}, fmt.Errorf("%w: list is not an array", ErrMalformedResponse)
		}
		first := list.Get("0")
		if !first.Exists() {
			return Result{}, ErrCityNotFound
		}
		if !first.IsObject() {
			return Result{}, fmt.Errorf("%w: list element is not an object", ErrMalformedResponse)
		}
		elem = first
		payload = []byte(first.Raw)
	}

	res := Result{
		Payload: payload,
		Name:    elem.Get("name").String(),
		Country: elem.Get("sys.country").String(),
	}
	if id := elem.Get("id"); id.Type == gjson.Number {
		res.CityID = int(id.Int())
	}
	return res, nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, params url.Values) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	q := baseURL.Query()
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("appid", c.apiKey)
	if c.units != "" {
		q.Set("units", c.units)
	}
	baseURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return ErrCityNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamTimeout, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUpstreamFailure) ||
		errors.Is(err, ErrUpstreamTimeout)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *OpenWeatherClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	}
	return "error"
}

// CountsAgainstCircuit reports whether err indicates an unhealthy upstream.
// Lookups for unknown cities and caller cancellations do not.
func CountsAgainstCircuit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCityNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
