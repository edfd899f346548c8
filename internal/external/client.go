// Package external wraps the third-party services tenantkit talks to: the
// email providers (SES, SendGrid) and Stripe. HTTP-based vendors go through
// BaseClient, which adds circuit breaking, retry with backoff and error
// mapping to types.AppError.
package external

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"tenantkit/internal/types"
)

// UserAgent is sent on every outbound vendor request.
const UserAgent = "tenantkit/1.0"

// RetryPolicy configures BaseClient retries. Only 429 and 5xx responses and
// transport errors are retried.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    500 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// BaseClient is the resilient HTTP client shared by vendor integrations.
type BaseClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	policy  RetryPolicy
	sleep   func(time.Duration)
}

// BaseClientOption customizes a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc replaces time.Sleep between retries; tests pass a no-op.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) { c.sleep = fn }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) BaseClientOption {
	return func(c *BaseClient) { c.breaker = cb }
}

// NewBaseClient builds a client whose breaker, named name, opens after more
// than five consecutive failures and half-opens after 30 seconds.
func NewBaseClient(httpClient *http.Client, name string, policy RetryPolicy, opts ...BaseClientOption) *BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	c := &BaseClient{
		client: httpClient,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
		policy: policy,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req, retrying 429 and 5xx responses. Any other response is
// returned as-is and the caller closes its body. When retries run out or the
// breaker is open Do returns an upstream AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if id := types.GetRequestID(req.Context()); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	req.Header.Set("User-Agent", UserAgent)

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to buffer request body", err)
		}
	}

	var (
		lastResp *http.Response
		lastErr  error
	)
	attempts := 1 + c.policy.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, err := c.client.Do(req)
			if err != nil {
				return nil, err
			}
			if retryable(r.StatusCode) {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})
		if err == nil {
			return resp, nil
		}

		lastResp, lastErr = resp, err
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if attempt < attempts-1 {
			wait := c.backoff(attempt, resp)
			if resp != nil {
				resp.Body.Close()
				lastResp = nil
			}
			c.sleep(wait)
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return nil, mapTransportError(lastResp, lastErr)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// backoff honors Retry-After (seconds or HTTP date) and otherwise returns
// exponential backoff with jitter, clamped to [MinWait, MaxWait].
func (c *BaseClient) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				return min(time.Duration(secs)*time.Second, c.policy.MaxWait)
			}
			if t, err := http.ParseTime(ra); err == nil {
				return max(min(time.Until(t), c.policy.MaxWait), c.policy.MinWait)
			}
		}
	}

	ceiling := math.Min(float64(c.policy.MinWait)*math.Pow(2, float64(attempt)), float64(c.policy.MaxWait))
	floor := float64(c.policy.MinWait)
	if ceiling <= floor {
		return c.policy.MinWait
	}
	return time.Duration(floor + rand.Float64()*(ceiling-floor))
}

func mapTransportError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "circuit breaker open", err)
	}
	if resp != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			return types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream rate limit exceeded", err)
		}
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("upstream returned %d after retries", resp.StatusCode), err)
	}
	return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", err)
}
