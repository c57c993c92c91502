package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.github.com"

// ClientConfig configures the GitHub client.
type ClientConfig struct {
	BaseURL string
	Token   string

	// Timeout for individual requests (default: 30s).
	Timeout time.Duration

	// MaxRetries for rate-limited and 5xx responses. Zero disables retries.
	MaxRetries int

	// RateLimit in requests per second; zero means unlimited.
	RateLimit float64

	// Backoff returns the delay before retry attempt n (0-based).
	Backoff func(attempt int) time.Duration

	// MaxRetryWait caps the wait the server may ask for through Retry-After or
	// X-RateLimit-Reset. A longer wait fails the request at once (default: 1m).
	MaxRetryWait time.Duration

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper

	Logger *slog.Logger
}

// DefaultClientConfig returns a client config with sensible defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:      DefaultBaseURL,
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		RateLimit:    10,
		Backoff:      exponentialBackoff,
		MaxRetryWait: time.Minute,
	}
}

func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// Client is a GitHub REST API client for issues and comments
type Client struct {
	baseURL    string
	token      string
	maxRetries int
	maxWait    time.Duration
	backoff    func(int) time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a new GitHub API client
func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = exponentialBackoff
	}
	maxWait := cfg.MaxRetryWait
	if maxWait == 0 {
		maxWait = time.Minute
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		maxRetries: max(cfg.MaxRetries, 0),
		maxWait:    maxWait,
		backoff:    backoff,
		limiter:    rate.NewLimiter(limit, 1),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: cfg.Transport,
		},
		logger: logger,
		now:    time.Now,
	}
}

// ListIssues fetches every issue (and pull request) of a repository, newest first.
// A failing page fails the whole listing.
func (c *Client) ListIssues(ctx context.Context, owner, repo string, opts ListOptions) ([]Issue, error) {
	path := fmt.Sprintf("/repos/%s/%s/issues", url.PathEscape(owner), url.PathEscape(repo))
	state := opts.State
	if state == "" {
		state = "all"
	}

	issues, err := FetchAll(ctx, MaxPerPage, func(ctx context.Context, page, perPage int) ([]Issue, error) {
		query := url.Values{}
		query.Set("state", state)
		query.Set("per_page", strconv.Itoa(perPage))
		query.Set("page", strconv.Itoa(page))
		query.Set("sort", "created")
		query.Set("direction", "desc")
		if opts.Since != nil {
			query.Set("since", opts.Since.UTC().Format(time.RFC3339))
		}

		var batch []Issue
		if err := c.get(ctx, path, query, &batch); err != nil {
			return nil, err
		}
		c.logger.Debug("fetched issues page", "page", page, "count", len(batch))
		return batch, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list issues %s/%s: %w", owner, repo, err)
	}
	return issues, nil
}

// ListComments fetches all comments of an issue, oldest first.
func (c *Client) ListComments(ctx context.Context, owner, repo string, number int) ([]Comment, error) {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", url.PathEscape(owner), url.PathEscape(repo), number)

	comments, err := FetchAll(ctx, MaxPerPage, func(ctx context.Context, page, perPage int) ([]Comment, error) {
		query := url.Values{}
		query.Set("per_page", strconv.Itoa(perPage))
		query.Set("page", strconv.Itoa(page))

		var batch []Comment
		if err := c.get(ctx, path, query, &batch); err != nil {
			return nil, err
		}
		return batch, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list comments #%d: %w", number, err)
	}
	return comments, nil
}

// get performs a GET with rate limiting and bounded retry, decoding the JSON body into result.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt - 1)
			if httpErr, ok := lastErr.(*HTTPError); ok && httpErr.RetryAfter > delay {
				delay = httpErr.RetryAfter
			}
			c.logger.Warn("retrying GitHub request", "path", path, "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.doOnce(ctx, path, query, result)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		if httpErr, ok := err.(*HTTPError); ok && httpErr.RetryAfter > c.maxWait {
			return fmt.Errorf("rate limit resets in %v: %w", httpErr.RetryAfter.Round(time.Second), err)
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doOnce(ctx context.Context, path string, query url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return newHTTPError(resp, body, c.now())
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// HTTPError is a non-2xx response from the GitHub API.
type HTTPError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	exhausted  bool // primary rate limit used up (403 + X-RateLimit-Remaining: 0)
}

func newHTTPError(resp *http.Response, body []byte, now time.Time) *HTTPError {
	e := &HTTPError{StatusCode: resp.StatusCode, Message: string(body)}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		e.Message = payload.Message
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		e.RetryAfter = time.Duration(secs) * time.Second
	}
	e.exhausted = resp.Header.Get("X-RateLimit-Remaining") == "0"
	// an exhausted primary limit only recovers at the reset time (unix seconds)
	if e.exhausted && e.RetryAfter == 0 {
		if reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
			if wait := time.Unix(reset, 0).Sub(now); wait > 0 {
				e.RetryAfter = wait
			}
		}
	}
	return e
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error.
func (e *HTTPError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		(e.StatusCode == http.StatusForbidden && e.exhausted)
}

// IsServerError returns true if this is a server error.
func (e *HTTPError) IsServerError() bool {
	return e.StatusCode >= 500
}

func isRetryable(err error) bool {
	if httpErr, ok := err.(*HTTPError); ok {
		return httpErr.IsRateLimited() || httpErr.IsServerError()
	}
	return false
}
