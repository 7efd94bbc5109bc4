package pptlinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"pptlinks-bot/internal/model"
)

const (
	DefaultAPIBase  = "https://api.pptlinks.com/api/v1"
	DefaultTimezone = "Africa/Lagos"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Client struct {
	client      *http.Client
	base        string
	timezone    string
	timeout     time.Duration
	maxAttempts uint
	interval    time.Duration
	logger      zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout bounds every single attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithMaxAttempts(attempts uint) Option {
	return func(c *Client) {
		c.maxAttempts = attempts
	}
}

// WithRetryInterval sets the first backoff delay; later delays grow from it.
func WithRetryInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.interval = interval
	}
}

func WithTimezone(timezone string) Option {
	return func(c *Client) {
		c.timezone = timezone
	}
}

func NewClient(base string, logger zerolog.Logger, options ...Option) *Client {
	if base == "" {
		base = DefaultAPIBase
	}
	c := &Client{
		client:      &http.Client{},
		base:        strings.TrimRight(base, "/"),
		timezone:    DefaultTimezone,
		timeout:     30 * time.Second,
		maxAttempts: 4,
		interval:    time.Second,
		logger:      logger.With().Str("component", "pptlinks").Logger(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Fetch loads the full course representation. Throttling and server errors
// are retried with exponential backoff, honouring Retry-After; any other
// failure is returned as is.
func (c *Client) Fetch(ctx context.Context, courseID string) (model.Snapshot, error) {
	endpoint := c.courseURL(courseID)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.interval
	policy.MaxInterval = 30 * time.Second
	hinted := &retryAfterBackOff{next: policy}

	attempt := 0
	snapshot, err := backoff.Retry(ctx, func() (model.Snapshot, error) {
		attempt++
		snapshot, retryAfter, err := c.fetchOnce(ctx, endpoint, courseID)
		if err == nil {
			return snapshot, nil
		}

		var (
			statusErr *StatusError
			permanent *backoff.PermanentError
		)
		switch {
		case errors.As(err, &permanent):
			return model.Snapshot{}, err
		case ctx.Err() != nil:
			return model.Snapshot{}, backoff.Permanent(err)
		case errors.As(err, &statusErr) && !statusErr.Retryable():
			return model.Snapshot{}, backoff.Permanent(err)
		case errors.Is(err, errDecode):
			return model.Snapshot{}, backoff.Permanent(err)
		}

		hinted.hint = retryAfter
		c.logger.Debug().Err(err).Int("attempt", attempt).Str("course_id", courseID).Msg("fetch failed, retrying")
		return model.Snapshot{}, err
	},
		backoff.WithBackOff(hinted),
		backoff.WithMaxTries(c.maxAttempts),
	)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("fetch course %s: %w", courseID, err)
	}
	return snapshot, nil
}

func (c *Client) courseURL(courseID string) string {
	query := url.Values{}
	query.Set("brief", "false")
	query.Set("timeZone", c.timezone)
	return c.base + "/course/user-courses/" + url.PathEscape(courseID) + "?" + query.Encode()
}

var errDecode = errors.New("decode course payload")

func (c *Client) fetchOnce(ctx context.Context, endpoint, courseID string) (model.Snapshot, time.Duration, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.Snapshot{}, 0, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Snapshot{}, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return model.Snapshot{}, parseRetryAfter(resp.Header.Get("Retry-After")), &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	var payload coursePayload
	if err := decoder.Decode(&payload); err != nil {
		return model.Snapshot{}, 0, fmt.Errorf("%w: %v", errDecode, err)
	}
	return payload.snapshot(courseID), 0, nil
}

// parseRetryAfter reads the header as seconds or an HTTP date.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// retryAfterBackOff prefers a server supplied delay over the wrapped policy.
type retryAfterBackOff struct {
	next backoff.BackOff
	hint time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	if b.hint > 0 {
		d := b.hint
		b.hint = 0
		return d
	}
	return b.next.NextBackOff()
}

func (b *retryAfterBackOff) Reset() {
	b.hint = 0
	b.next.Reset()
}
