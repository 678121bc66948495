package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxPageBytes = 10 << 20

// ErrRateLimited is returned once the retry budget for HTTP 429 responses is
// exhausted.
var ErrRateLimited = errors.New("upstream rate limited")

// RetryPolicy bounds exponential backoff on rate-limited responses.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy is three attempts starting at two seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	return p
}

// BackOff builds the exponential schedule for rate-limited retries: BaseDelay
// doubling up to MaxDelay, without jitter.
func (p RetryPolicy) BackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.MaxInterval = p.MaxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.Reset()
	return bo
}

// ClientOptions configure the HTTP side of an adapter.
type ClientOptions struct {
	Timeout      time.Duration
	UserAgent    string
	PageInterval time.Duration
	Retry        RetryPolicy
}

// pageClient performs paced GET requests with 429 backoff. One instance
// belongs to exactly one adapter, so backoff never delays other sources.
type pageClient struct {
	client    *http.Client
	userAgent string
	retry     RetryPolicy
	limiter   *rate.Limiter
	logger    zerolog.Logger
}

func newPageClient(opts ClientOptions, logger zerolog.Logger) *pageClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	limit := rate.Inf
	if opts.PageInterval > 0 {
		limit = rate.Every(opts.PageInterval)
	}

	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "x402index/1.0"
	}

	return &pageClient{
		client:    &http.Client{Timeout: timeout},
		userAgent: ua,
		retry:     opts.Retry.withDefaults(),
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// get fetches one page body. HTTP 429 is retried with backoff and reported as
// ErrRateLimited when the budget runs out; any other failure is final.
func (c *pageClient) get(ctx context.Context, url string) ([]byte, error) {
	attempts := 0
	operation := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		attempts++
		body, status, err := c.do(ctx, url)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if status == http.StatusTooManyRequests {
			return nil, ErrRateLimited
		}
		if status < 200 || status >= 300 {
			return nil, backoff.Permanent(parseHTTPError(status, body))
		}
		return body, nil
	}

	notify := func(_ error, delay time.Duration) {
		c.logger.Warn().Str("url", url).Int("attempt", attempts).Dur("delay", delay).Msg("rate limited, backing off")
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.retry.BackOff()),
		backoff.WithMaxTries(uint(c.retry.Attempts)),
		backoff.WithNotify(notify),
	)
	if errors.Is(err, ErrRateLimited) {
		return nil, fmt.Errorf("%w after %d attempts", ErrRateLimited, attempts)
	}
	return body, err
}

func (c *pageClient) do(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

type errorResponse struct {
	ErrorType   string `json:"errorType"`
	Error       string `json:"error"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		for _, msg := range []string{apiErr.Description, apiErr.Message, apiErr.Error, apiErr.ErrorType} {
			if msg != "" {
				return fmt.Errorf("registry error (%d): %s", status, msg)
			}
		}
	}
	if trimmed := strings.TrimSpace(string(payload)); trimmed != "" {
		if len(trimmed) > 200 {
			trimmed = trimmed[:200]
		}
		return fmt.Errorf("registry error (%d): %s", status, trimmed)
	}
	return fmt.Errorf("registry error (%d)", status)
}
