// Package backend is the knowledge-base REST client. It fetches the article
// and tag collections and maps them through the dto boundary.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/dto"
	"github.com/cewkb/kbsearch/internal/logger"
	"github.com/cewkb/kbsearch/internal/ratelimit"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRPS     = 5.0
	defaultBurst   = 2

	articlesPath = "/Knowledge"
	tagsPath     = "/Tag"

	// maxBodyBytes bounds a single collection response.
	maxBodyBytes = 64 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Policy            dto.Policy
}

// Client is a rate-limited knowledge-base API client. It implements
// catalog.Source.
type Client struct {
	base    *url.URL
	token   string
	policy  dto.Policy
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	mapper  *dto.Mapper
	logger  *slog.Logger
}

// New creates a client for cfg.BaseURL.
func New(cfg Config, mapper *dto.Mapper, log *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRPS
	}
	if cfg.Policy == "" {
		cfg.Policy = dto.PolicySkip
	}
	if mapper == nil {
		mapper = dto.NewMapper(nil)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		base:    base,
		token:   cfg.Token,
		policy:  cfg.Policy,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.New(cfg.RequestsPerSecond, defaultBurst),
		mapper:  mapper,
		logger:  log,
	}, nil
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Name implements catalog.Source.
func (c *Client) Name() string { return "backend" }

// Load fetches tags and articles and maps them. Under the skip policy invalid
// records are logged and dropped; under strict the first one fails the load.
// Failures are reported, never retried.
func (c *Client) Load(ctx context.Context) (domain.Collection, error) {
	var p dto.Payload
	if err := c.get(ctx, "tags", tagsPath, &p.Tags); err != nil {
		return domain.Collection{}, err
	}
	if err := c.get(ctx, "articles", articlesPath, &p.Articles); err != nil {
		return domain.Collection{}, err
	}

	col, skipped, err := c.mapper.MapCollection(p, c.policy)
	if err != nil {
		return domain.Collection{}, &Error{Op: "map", Endpoint: c.base.String(), Err: err}
	}
	for _, s := range skipped {
		c.logger.Warn("skipped invalid backend record", "error", s)
	}
	c.logger.Debug("backend collection fetched",
		"articles", len(col.Articles),
		"tags", len(col.Tags),
		"skipped", len(skipped),
	)
	return col, nil
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	if err := c.limiter.Wait(ctx, c.base.Host); err != nil {
		return &Error{Op: op, Endpoint: path, Err: fmt.Errorf("rate limit wait: %w", err)}
	}

	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &Error{Op: op, Endpoint: path, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "kbsearch/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("backend request", "op", op, "url", u.Redacted())

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Endpoint: path, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return &Error{Op: op, Endpoint: path, Err: err}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return &Error{Op: op, Endpoint: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
