package racingapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/albapepper/racesync/internal/raceerr"
	"github.com/albapepper/racesync/internal/ratelimit"
)

// Retry policy from spec §4.B: on 429 or 5xx, wait the provider-advised
// duration (default 5s) and retry up to 5 times with exponential backoff
// 5, 10, 20, 40, 80 seconds.
var backoffSchedule = []time.Duration{
	5 * time.Second,
	10 * time.Second,
	20 * time.Second,
	40 * time.Second,
	80 * time.Second,
}

const maxAttempts = len(backoffSchedule) + 1

// HTTPClient is the production APIClient implementation: rate-limited,
// retrying, basic-auth HTTP GETs against the racing API, mirroring the
// retry-free GET helpers in the teacher's bdl.Client / sportmonks.Client
// (internal/provider/bdl/client.go, go/internal/provider/sportmonks/client.go)
// with the 429/5xx backoff policy spec §4.B adds on top.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	limiter    *ratelimit.Limiter
	logger     *slog.Logger

	// sleep is overridable in tests so backoff doesn't actually block.
	sleep func(time.Duration)
}

// NewHTTPClient creates a production APIClient. The limiter is shared
// process-wide (spec §5) — callers construct exactly one and pass it to
// every HTTPClient (there is only one upstream API, so there is normally
// only one HTTPClient too).
func NewHTTPClient(baseURL, username, password string, limiter *ratelimit.Limiter, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		limiter:    limiter,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// get performs one rate-limited, retrying GET. On success it returns the
// raw response body for the caller to unmarshal.
func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		body, retryable, err := c.doOnce(ctx, u)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retryable {
			// Non-retryable (4xx other than 429, or transport error after
			// we've already classified it) — fail immediately.
			return nil, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		wait := backoffSchedule[minInt(attempt, len(backoffSchedule)-1)]
		if retryAfter := retryAfterFromErr(err); retryAfter > wait {
			wait = retryAfter
		}

		c.logger.Warn("racing API retrying", "path", path, "attempt", attempt+1, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			c.sleep(wait)
		}
	}
	return nil, fmt.Errorf("%s: exhausted retries: %w: %w", path, raceerr.FetchError, lastErr)
}

// retryableError carries a 429's provider-advised Retry-After duration
// (0 when absent) so get can honor it if it exceeds the exponential
// schedule's step for that attempt.
type retryableError struct {
	err        error
	retryAfter time.Duration
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func retryAfterFromErr(err error) time.Duration {
	var re *retryableError
	if errors.As(err, &re) {
		return re.retryAfter
	}
	return 0
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// doOnce performs a single HTTP GET and classifies the outcome. retryable
// reports whether the caller should retry following the backoff schedule
// (err wraps *retryableError with a provider-advised wait for 429s).
func (c *HTTPClient) doOnce(ctx context.Context, u string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", raceerr.TransientNetworkError, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: read body: %v", raceerr.TransientNetworkError, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return raw, false, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, fmt.Errorf("%w: %d %s", raceerr.AuthenticationError, resp.StatusCode, truncate(raw))

	case resp.StatusCode == http.StatusTooManyRequests:
		wait := retryAfterHeader(resp.Header.Get("Retry-After"))
		werr := fmt.Errorf("%w: %d %s", raceerr.RateLimited, resp.StatusCode, truncate(raw))
		return nil, true, &retryableError{err: werr, retryAfter: wait}

	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: %d %s", raceerr.FetchError, resp.StatusCode, truncate(raw))

	default:
		return nil, false, fmt.Errorf("%w: %d %s", raceerr.FetchError, resp.StatusCode, truncate(raw))
	}
}

// retryAfterHeader parses a provider-advised Retry-After wait, returning 0
// when absent so the exponential schedule's own step applies instead.
func retryAfterHeader(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func truncate(b []byte) string {
	const max = 200
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}

// --------------------------------------------------------------------------
// APIClient implementation
// --------------------------------------------------------------------------

func (c *HTTPClient) GetCourses(ctx context.Context, regions []string) ([]CourseDoc, error) {
	params := url.Values{}
	for _, r := range regions {
		params.Add("region", r)
	}
	body, err := c.get(ctx, "/v1/courses", params)
	if err != nil {
		return nil, err
	}
	var out []CourseDoc
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode courses: %v", raceerr.ParseError, err)
	}
	return out, nil
}

func (c *HTTPClient) GetBookmakers(ctx context.Context) ([]BookmakerDoc, error) {
	body, err := c.get(ctx, "/v1/bookmakers", nil)
	if err != nil {
		return nil, err
	}
	var out []BookmakerDoc
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode bookmakers: %v", raceerr.ParseError, err)
	}
	return out, nil
}

func (c *HTTPClient) GetJockeys(ctx context.Context, regions []string, p int) ([]PersonDoc, bool, error) {
	return c.getPeoplePage(ctx, "/v1/jockeys", regions, p)
}

func (c *HTTPClient) GetTrainers(ctx context.Context, regions []string, p int) ([]PersonDoc, bool, error) {
	return c.getPeoplePage(ctx, "/v1/trainers", regions, p)
}

func (c *HTTPClient) GetOwners(ctx context.Context, regions []string, p int) ([]PersonDoc, bool, error) {
	return c.getPeoplePage(ctx, "/v1/owners", regions, p)
}

func (c *HTTPClient) getPeoplePage(ctx context.Context, path string, regions []string, p int) ([]PersonDoc, bool, error) {
	params := url.Values{}
	for _, r := range regions {
		params.Add("region", r)
	}
	params.Set("page", strconv.Itoa(p))

	body, err := c.get(ctx, path, params)
	if err != nil {
		return nil, false, err
	}

	var env page
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, fmt.Errorf("%w: decode %s page: %v", raceerr.ParseError, path, err)
	}
	var items []PersonDoc
	if err := json.Unmarshal(env.Data, &items); err != nil {
		return nil, false, fmt.Errorf("%w: decode %s items: %v", raceerr.ParseError, path, err)
	}
	return items, env.HasMore, nil
}

func (c *HTTPClient) GetRacecardsPro(ctx context.Context, dateFrom, dateTo string, regions []string) ([]RaceDoc, error) {
	params := url.Values{"date_from": {dateFrom}, "date_to": {dateTo}}
	for _, r := range regions {
		params.Add("region", r)
	}
	body, err := c.get(ctx, "/v1/racecards/pro", params)
	if err != nil {
		return nil, err
	}
	var out []RaceDoc
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode racecards: %v", raceerr.ParseError, err)
	}
	return out, nil
}

func (c *HTTPClient) GetResults(ctx context.Context, dateFrom, dateTo string, regions []string) ([]RaceResultDoc, error) {
	params := url.Values{"date_from": {dateFrom}, "date_to": {dateTo}}
	for _, r := range regions {
		params.Add("region", r)
	}
	body, err := c.get(ctx, "/v1/results", params)
	if err != nil {
		return nil, err
	}
	var out []RaceResultDoc
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode results: %v", raceerr.ParseError, err)
	}
	return out, nil
}

func (c *HTTPClient) GetHorsePro(ctx context.Context, id string) (HorseDetailDoc, error) {
	body, err := c.get(ctx, "/v1/horses/"+url.PathEscape(id)+"/pro", nil)
	if err != nil {
		return HorseDetailDoc{}, err
	}
	var out HorseDetailDoc
	if err := json.Unmarshal(body, &out); err != nil {
		return HorseDetailDoc{}, fmt.Errorf("%w: decode horse %s: %v", raceerr.ParseError, id, err)
	}
	return out, nil
}
