// Package polymarket implements the Polymarket CLOB read API client: cursor
// pagination over markets, batched price lookups, and normalization into
// canonical markets. Every request is gated on network readiness.
package polymarket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/normalize"
	"github.com/alanyoungcy/arbscanner/internal/platform/rest"
)

const (
	DefaultBaseURL = "https://clob.polymarket.com"

	// endCursor is the cursor the CLOB API returns on the last page.
	endCursor = "LTE="

	defaultPriceChunk = 10
	defaultChunkDelay = 100 * time.Millisecond
)

// Config holds the Polymarket client parameters.
type Config struct {
	BaseURL               string
	MaxConcurrentRequests int
	MaxRetries            int
	Backoff               time.Duration
	Timeout               time.Duration
	MaxPages              int // 0 means follow the cursor until it runs out
	PriceChunkSize        int
	ChunkDelay            time.Duration
}

// Client is the REST client for the Polymarket CLOB API.
type Client struct {
	rest       *rest.Client
	gate       domain.NetworkGate
	normalizer *Normalizer
	maxPages   int
	chunkSize  int
	chunkDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

// NewClient creates a Polymarket client. A nil gate treats the network as
// always ready.
func NewClient(cfg Config, gate domain.NetworkGate, logger *slog.Logger, opts ...rest.Option) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PriceChunkSize <= 0 {
		cfg.PriceChunkSize = defaultPriceChunk
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 0
	} else if cfg.ChunkDelay == 0 {
		cfg.ChunkDelay = defaultChunkDelay
	}

	c := &Client{
		gate:       gate,
		normalizer: NewNormalizer(logger),
		maxPages:   cfg.MaxPages,
		chunkSize:  cfg.PriceChunkSize,
		chunkDelay: cfg.ChunkDelay,
		sleep:      sleepContext,
		logger:     logger,
	}

	all := append([]rest.Option{
		rest.WithAuthorizer(rest.AuthorizerFunc(c.requireNetwork)),
		rest.WithLogger(logger),
	}, opts...)
	rc, err := rest.New(rest.Config{
		Platform:              domain.PlatformPolymarket,
		BaseURL:               cfg.BaseURL,
		MaxConcurrentRequests: cfg.MaxConcurrentRequests,
		MaxRetries:            cfg.MaxRetries,
		Backoff:               cfg.Backoff,
		Timeout:               cfg.Timeout,
	}, all...)
	if err != nil {
		return nil, fmt.Errorf("polymarket: %w", err)
	}
	c.rest = rc
	return c, nil
}

// requireNetwork refuses to send while the gate reports the network as not
// ready.
func (c *Client) requireNetwork(ctx context.Context, _ *http.Request) error {
	if c.gate == nil || c.gate.IsNetworkReady(ctx) {
		return nil
	}
	return domain.ErrNetworkUnavailable
}

// Platform identifies the exchange.
func (c *Client) Platform() domain.Platform {
	return domain.PlatformPolymarket
}

// Normalizer returns the client's record normalizer.
func (c *Client) Normalizer() *Normalizer {
	return c.normalizer
}

// Fetch performs a raw gated request and returns the response body.
func (c *Client) Fetch(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	return c.rest.Do(ctx, rest.Request{Method: method, Path: path, Query: query, Body: body})
}

// ListMarketsPage fetches one page of markets starting at cursor.
func (c *Client) ListMarketsPage(ctx context.Context, cursor string) (MarketsPage, error) {
	var params url.Values
	if cursor != "" {
		params = url.Values{"next_cursor": {cursor}}
	}
	var page MarketsPage
	if err := c.rest.GetJSON(ctx, "markets", params, &page); err != nil {
		return MarketsPage{}, fmt.Errorf("polymarket: get markets: %w", err)
	}
	return page, nil
}

// ListByKeyword follows next_cursor until the end sentinel and returns every
// open market whose question or description mentions keyword.
func (c *Client) ListByKeyword(ctx context.Context, keyword string) ([]RawMarket, error) {
	var (
		matched []RawMarket
		cursor  string
		seen    = make(map[string]bool)
		pages   int
		total   int
	)

	for {
		page, err := c.ListMarketsPage(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("polymarket: list by keyword page %d: %w", pages+1, err)
		}
		pages++
		total += len(page.Data)

		for _, m := range page.Data {
			if !bool(m.Active) || bool(m.Closed) {
				continue
			}
			if normalize.ContainsFold(keyword, m.Question, m.Description) {
				matched = append(matched, m)
			}
		}

		next := page.NextCursor
		if next == "" || next == endCursor || len(page.Data) == 0 || seen[next] {
			break
		}
		if c.maxPages > 0 && pages >= c.maxPages {
			c.logger.WarnContext(ctx, "polymarket: page limit reached, stopping pagination",
				slog.Int("max_pages", c.maxPages),
			)
			break
		}
		seen[next] = true
		cursor = next
	}

	c.logger.InfoContext(ctx, "polymarket: markets fetched",
		slog.String("keyword", keyword),
		slog.Int("pages", pages),
		slog.Int("scanned", total),
		slog.Int("matched", len(matched)),
	)
	return matched, nil
}

// MarketDetail fetches one market by condition id. The boolean is false when
// the market does not exist.
func (c *Client) MarketDetail(ctx context.Context, conditionID string) (RawMarket, bool, error) {
	if conditionID == "" {
		return RawMarket{}, false, nil
	}
	var m RawMarket
	if err := c.rest.GetJSON(ctx, "markets/"+url.PathEscape(conditionID), nil, &m); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return RawMarket{}, false, nil
		}
		return RawMarket{}, false, fmt.Errorf("polymarket: get market %s: %w", conditionID, err)
	}
	if m.ConditionID == "" {
		return RawMarket{}, false, nil
	}
	return m, true, nil
}

// HealthCheck reports whether the markets endpoint answers.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if _, err := c.ListMarketsPage(ctx, ""); err != nil {
		c.logger.WarnContext(ctx, "polymarket: health check failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// SearchMarkets lists keyword-matching markets, prices every token with one
// batched lookup, and normalizes the result.
func (c *Client) SearchMarkets(ctx context.Context, keyword string) ([]domain.Market, error) {
	raws, err := c.ListByKeyword(ctx, keyword)
	if err != nil {
		return nil, err
	}

	var tokenIDs []string
	for _, m := range raws {
		tokenIDs = append(tokenIDs, m.TokenIDs()...)
	}
	quotes := c.BatchPrices(ctx, tokenIDs)
	return c.NormalizeAll(raws, quotes), nil
}

// NormalizeAll normalizes a batch, dropping malformed records.
func (c *Client) NormalizeAll(raws []RawMarket, quotes Quotes) []domain.Market {
	markets := make([]domain.Market, 0, len(raws))
	for _, raw := range raws {
		if m, ok := c.normalizer.Normalize(raw, quotes); ok {
			markets = append(markets, m)
		}
	}
	if skipped := len(raws) - len(markets); skipped > 0 {
		c.logger.Warn("polymarket: skipped malformed records",
			slog.Int("skipped", skipped),
			slog.Int("kept", len(markets)),
		)
	}
	return markets
}

// GetMarket fetches, prices and normalizes a single market.
func (c *Client) GetMarket(ctx context.Context, conditionID string) (domain.Market, bool, error) {
	raw, ok, err := c.MarketDetail(ctx, conditionID)
	if err != nil || !ok {
		return domain.Market{}, false, err
	}
	m, ok := c.normalizer.Normalize(raw, c.BatchPrices(ctx, raw.TokenIDs()))
	return m, ok, nil
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
