// Package remote talks to the decode services. Each service family has an
// ordered list of candidate base URLs; requests walk the list in order and
// return the first successful response.
package remote

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"flashdetail/internal/metrics"
)

// ErrUnavailable is returned when no candidate endpoint produced a usable
// response.
var ErrUnavailable = errors.New("remote: no endpoint responded")

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	maxBodySize      = 4 * 1024 * 1024
)

type Config struct {
	Timeout   time.Duration // per attempt (default: 10s)
	UserAgent string

	// Custom HTTP client (for testing or special configs)
	HTTPClient *http.Client
}

// WithDefaults returns a copy of Config with defaults applied.
func (c *Config) WithDefaults() Config {
	cfg := *c
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return cfg
}

// Response is a completed 2xx response with its body read.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Client issues GET requests against the candidate lists in Endpoints.
type Client struct {
	cfg        Config
	endpoints  *Endpoints
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client reading candidates from endpoints.
func NewClient(cfg Config, endpoints *Endpoints, logger *zap.Logger) *Client {
	cfg = cfg.WithDefaults()

	if logger == nil {
		logger = zap.NewNop()
	}
	if endpoints == nil {
		endpoints = NewEndpoints(nil)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: defaultTransport(),
		}
	}

	return &Client{
		cfg:        cfg,
		endpoints:  endpoints,
		httpClient: httpClient,
		logger:     logger.Named("remote"),
	}
}

// defaultTransport skips certificate verification: the decode services run
// on self-signed or private infrastructure.
func defaultTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout: 5 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // see doc comment
	}
}

// Endpoints exposes the candidate registry for administration.
func (c *Client) Endpoints() *Endpoints { return c.endpoints }

// Get requests base+"/"+suffix for each candidate of family in order and
// returns the first 2xx response. A non-empty override replaces the
// candidate list entirely, with no fallback.
func (c *Client) Get(ctx context.Context, family Family, suffix, override string) (*Response, error) {
	bases := c.endpoints.List(family)
	if override = NormalizeBaseURL(override); override != "" {
		bases = []string{override}
	}
	if len(bases) == 0 {
		return nil, fmt.Errorf("%w: no %s endpoints configured", ErrUnavailable, family)
	}

	var lastErr error
	for i, base := range bases {
		url := base + "/" + strings.TrimLeft(suffix, "/")

		resp, err := c.fetch(ctx, family, url)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		c.logger.Debug("endpoint failed, trying next",
			zap.String("family", string(family)),
			zap.String("url", url),
			zap.Int("candidate", i+1),
			zap.Int("candidates", len(bases)),
			zap.Error(err),
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			lastErr = ctxErr
			break
		}
	}

	c.logger.Warn("all endpoints failed",
		zap.String("family", string(family)),
		zap.Int("candidates", len(bases)),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, family, lastErr)
}

// Probe reports whether base answers HTTP at all. Any response below 500
// counts as reachable.
func (c *Client) Probe(ctx context.Context, base string) error {
	base = NormalizeBaseURL(base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/", nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode >= 500 {
		return fmt.Errorf("probe %s: status %d", base, resp.StatusCode)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, family Family, url string) (*Response, error) {
	start := time.Now()
	defer func() {
		metrics.RemoteLatencySeconds.WithLabelValues(string(family)).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(string(family), "transport").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(string(family), "transport").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		metrics.RemoteRequestsTotal.WithLabelValues(string(family), "status").Inc()
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(string(family), "transport").Inc()
		return nil, fmt.Errorf("read body: %w", err)
	}

	metrics.RemoteRequestsTotal.WithLabelValues(string(family), "ok").Inc()
	c.logger.Debug("endpoint responded",
		zap.String("family", string(family)),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	return &Response{URL: url, StatusCode: resp.StatusCode, Body: body}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
