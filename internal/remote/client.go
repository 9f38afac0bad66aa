package remote

import (
	"context"
	"crypto/sha1" //nolint:gosec // artifact hashes are sha1 on the wire
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned while a host's breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrNotAvailable is returned when a probe gets a definitive non-2xx answer.
	ErrNotAvailable = errors.New("artifact not available")
)

// ServerError represents an HTTP 5xx answer.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// Observer receives the outcome of every request attempt.
type Observer interface {
	ObserveRequest(ctx context.Context, host string, status int, duration time.Duration, err error)
}

// ClientConfig holds configuration for a Client.
type ClientConfig struct {
	Name string

	// Timeout bounds a single attempt.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries uint64

	// InitialInterval is the first backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval caps the backoff interval.
	// Default: 5 seconds
	MaxInterval time.Duration

	// Breaker configures the circuit breaker. Nil uses DefaultBreakerConfig.
	Breaker *BreakerConfig

	// Registry, when set, tracks the client's health under Name.
	Registry *Registry

	// Observer, when set, is told about every attempt.
	Observer Observer

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// DefaultClientConfig returns defaults for a named client.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Breaker:         &breaker,
	}
}

// Client is an HTTP client guarded by a circuit breaker with retries.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     ClientConfig
}

// NewClient creates a client and registers it with cfg.Registry if set.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	breakerCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
	}

	c := &Client{
		name: cfg.Name,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
			// Redirects are reported, not followed, so probes see the host that answered.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		breaker: newBreaker[*http.Response](breakerCfg), //nolint:bodyclose // type param, not response
		config:  cfg,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the client name.
func (c *Client) Name() string {
	return c.name
}

// Do executes req with breaker protection, retrying network errors and
// 5xx answers with exponential backoff. 4xx answers are returned as is.
// When retries run out on a 5xx the last response is returned without error.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var last *http.Response
	operation := func() error {
		if last != nil {
			last.Body.Close()
			last = nil
		}

		start := time.Now()
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})
		c.observe(ctx, req, resp, time.Since(start), err)

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			last = resp
			return err
		}
		last = resp
		return nil
	}

	err := backoff.Retry(operation, policy)
	if err != nil {
		if c.config.Registry != nil {
			c.config.Registry.RecordFailure(c.name, err)
		}
		if last != nil {
			return last, nil
		}
		return nil, err
	}
	if c.config.Registry != nil {
		c.config.Registry.RecordSuccess(c.name)
	}
	return last, nil
}

func (c *Client) observe(ctx context.Context, req *http.Request, resp *http.Response, d time.Duration, err error) {
	if c.config.Observer == nil {
		return
	}
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.config.Observer.ObserveRequest(ctx, req.URL.Host, status, d, err)
}

// ProbeResult describes a remote artifact as seen by a HEAD request.
type ProbeResult struct {
	StatusCode int
	Size       int64 // -1 when the host sends no Content-Length
	ETag       string
	Location   string // set on redirects
}

// Probe issues a HEAD request for url. A 2xx or 3xx answer is a result;
// anything else wraps ErrNotAvailable.
func (c *Client) Probe(ctx context.Context, url string) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build probe request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s answered %d", ErrNotAvailable, req.URL.Host, resp.StatusCode)
	}

	res := &ProbeResult{
		StatusCode: resp.StatusCode,
		Size:       -1,
		ETag:       strings.Trim(resp.Header.Get("ETag"), `"`),
		Location:   resp.Header.Get("Location"),
	}
	if v := resp.Header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			res.Size = n
		}
	}
	return res, nil
}

// Digest downloads url and returns its sha1 and size. Redirects are
// followed up to the http package limit.
func (c *Client) Digest(ctx context.Context, url string) (string, int64, error) {
	for hops := 0; hops < 10; hops++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return "", 0, fmt.Errorf("build download request: %w", err)
		}

		resp, err := c.Do(req)
		if err != nil {
			return "", 0, err
		}

		switch {
		case resp.StatusCode >= 300 && resp.StatusCode < 400 && resp.Header.Get("Location") != "":
			next, err := resp.Request.URL.Parse(resp.Header.Get("Location"))
			resp.Body.Close()
			if err != nil {
				return "", 0, fmt.Errorf("parse redirect: %w", err)
			}
			url = next.String()
			continue
		case resp.StatusCode >= 300:
			resp.Body.Close()
			return "", 0, fmt.Errorf("%w: %s answered %d", ErrNotAvailable, req.URL.Host, resp.StatusCode)
		}

		h := sha1.New() //nolint:gosec // see import
		n, err := io.Copy(h, resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", 0, fmt.Errorf("read artifact: %w", err)
		}
		return hex.EncodeToString(h.Sum(nil)), n, nil
	}
	return "", 0, fmt.Errorf("%w: too many redirects", ErrNotAvailable)
}

// BreakerState returns the breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// BreakerCounts returns the breaker counts.
func (c *Client) BreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}
