package lichess

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arenawatch/arenawatch/cachestore"
	"github.com/arenawatch/arenawatch/netclient"

	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("lichess")

type Config struct {
	Host string
	// optional personal API token
	Token string
	// max requests per second to upstream; zero disables limiting
	RateLimit    float64
	GamesTimeout time.Duration
	// how far back to look for games
	GamesWindow time.Duration
	Logger      *slog.Logger
}

// Client talks to the public lichess API. All requests go through the
// retrying netclient, so calls only fail when their context is done.
type Client struct {
	Host         string
	Net          *netclient.Client
	Credential   netclient.Credential
	Limiter      *rate.Limiter
	Cache        cachestore.CacheStore
	GamesTimeout time.Duration
	GamesWindow  time.Duration
	Now          func() time.Time

	logger *slog.Logger
}

func NewClient(nc *netclient.Client, cache cachestore.CacheStore, cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	host := cfg.Host
	if host == "" {
		host = "https://lichess.org"
	}
	c := &Client{
		Host:         strings.TrimSuffix(host, "/"),
		Net:          nc,
		Cache:        cache,
		GamesTimeout: cfg.GamesTimeout,
		GamesWindow:  cfg.GamesWindow,
		Now:          time.Now,
		logger:       logger.With("component", "lichess"),
	}
	if c.GamesTimeout == 0 {
		c.GamesTimeout = 60 * time.Second
	}
	if c.GamesWindow == 0 {
		c.GamesWindow = 180 * 24 * time.Hour
	}
	if cfg.Token != "" {
		c.Credential = netclient.BearerToken(cfg.Token)
	}
	if cfg.RateLimit > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

func (c *Client) do(ctx context.Context, req netclient.Request) (*http.Response, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if req.Credential == nil {
		req.Credential = c.Credential
	}
	return c.Net.Perform(ctx, req)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.do(ctx, netclient.Request{
		Method: http.MethodGet,
		URL:    c.Host + path,
		Accept: "application/json",
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
