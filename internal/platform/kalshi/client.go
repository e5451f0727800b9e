// Package kalshi implements the Kalshi trade API client: RSA-PSS request
// signing, cursor pagination, and normalization into canonical markets.
package kalshi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/normalize"
	"github.com/alanyoungcy/arbscanner/internal/platform/rest"
)

const (
	DefaultBaseURL   = "https://api.elections.kalshi.com/trade-api/v2"
	DefaultPageLimit = 200
)

// Config holds the Kalshi client parameters.
type Config struct {
	BaseURL               string
	APIKeyID              string
	PrivateKeyPEM         []byte
	MaxConcurrentRequests int
	MaxRetries            int
	Backoff               time.Duration
	Timeout               time.Duration
	PageLimit             int
	MaxPages              int // 0 means follow the cursor until it runs out
}

// Client is the REST client for the Kalshi exchange API.
type Client struct {
	rest       *rest.Client
	signer     *Signer
	normalizer *Normalizer
	pageLimit  int
	maxPages   int
	logger     *slog.Logger
}

// NewClient creates a Kalshi client. Invalid key material is returned as an
// error wrapping domain.ErrAuthentication; missing key material is allowed
// and leaves requests unsigned.
func NewClient(cfg Config, logger *slog.Logger, opts ...rest.Option) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultPageLimit
	}

	signer, err := NewSigner(cfg.APIKeyID, cfg.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}
	if !signer.HasKey() {
		logger.Warn("kalshi: no API key configured, requests will be sent unsigned")
	}

	all := append([]rest.Option{
		rest.WithAuthorizer(signer),
		rest.WithLogger(logger),
	}, opts...)
	rc, err := rest.New(rest.Config{
		Platform:              domain.PlatformKalshi,
		BaseURL:               cfg.BaseURL,
		MaxConcurrentRequests: cfg.MaxConcurrentRequests,
		MaxRetries:            cfg.MaxRetries,
		Backoff:               cfg.Backoff,
		Timeout:               cfg.Timeout,
	}, all...)
	if err != nil {
		return nil, fmt.Errorf("kalshi: %w", err)
	}

	return &Client{
		rest:       rc,
		signer:     signer,
		normalizer: NewNormalizer(logger),
		pageLimit:  cfg.PageLimit,
		maxPages:   cfg.MaxPages,
		logger:     logger,
	}, nil
}

// Platform identifies the exchange.
func (c *Client) Platform() domain.Platform {
	return domain.PlatformKalshi
}

// Normalizer returns the client's record normalizer.
func (c *Client) Normalizer() *Normalizer {
	return c.normalizer
}

// Fetch performs a raw signed request and returns the response body.
func (c *Client) Fetch(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	return c.rest.Do(ctx, rest.Request{Method: method, Path: path, Query: query, Body: body})
}

// ListMarketsPage fetches one page of open markets starting at cursor.
func (c *Client) ListMarketsPage(ctx context.Context, cursor string) (MarketsPage, error) {
	params := url.Values{}
	params.Set("status", "open")
	params.Set("limit", strconv.Itoa(c.pageLimit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var page MarketsPage
	if err := c.rest.GetJSON(ctx, "markets", params, &page); err != nil {
		return MarketsPage{}, fmt.Errorf("kalshi: get markets: %w", err)
	}
	return page, nil
}

// ListByKeyword follows the markets cursor until the server stops returning
// one and collects every record whose title or rules mention keyword.
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
			return nil, fmt.Errorf("kalshi: list by keyword page %d: %w", pages+1, err)
		}
		pages++
		total += len(page.Markets)

		for _, m := range page.Markets {
			if normalize.ContainsFold(keyword, m.Title, m.RulesPrimary) {
				matched = append(matched, m)
			}
		}

		if page.Cursor == "" || len(page.Markets) == 0 || seen[page.Cursor] {
			break
		}
		if c.maxPages > 0 && pages >= c.maxPages {
			c.logger.WarnContext(ctx, "kalshi: page limit reached, stopping pagination",
				slog.Int("max_pages", c.maxPages),
			)
			break
		}
		seen[page.Cursor] = true
		cursor = page.Cursor
	}

	c.logger.InfoContext(ctx, "kalshi: markets fetched",
		slog.String("keyword", keyword),
		slog.Int("pages", pages),
		slog.Int("scanned", total),
		slog.Int("matched", len(matched)),
	)
	return matched, nil
}

// MarketDetail fetches a single market. The boolean is false when the market
// does not exist.
func (c *Client) MarketDetail(ctx context.Context, ticker string) (RawMarket, bool, error) {
	if ticker == "" {
		return RawMarket{}, false, nil
	}
	var resp marketResponse
	if err := c.rest.GetJSON(ctx, "markets/"+url.PathEscape(ticker), nil, &resp); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return RawMarket{}, false, nil
		}
		return RawMarket{}, false, fmt.Errorf("kalshi: get market %s: %w", ticker, err)
	}
	if resp.Market.Ticker == "" {
		return RawMarket{}, false, nil
	}
	return resp.Market, true, nil
}

// Orderbook fetches the resting bids for a market.
func (c *Client) Orderbook(ctx context.Context, ticker string) (RawOrderbook, error) {
	var resp orderbookResponse
	if err := c.rest.GetJSON(ctx, "markets/"+url.PathEscape(ticker)+"/orderbook", nil, &resp); err != nil {
		return RawOrderbook{}, fmt.Errorf("kalshi: get orderbook %s: %w", ticker, err)
	}
	return resp.Orderbook, nil
}

// ExchangeStatus reports whether the exchange is accepting activity.
func (c *Client) ExchangeStatus(ctx context.Context) (RawExchangeStatus, error) {
	var status RawExchangeStatus
	if err := c.rest.GetJSON(ctx, "exchange/status", nil, &status); err != nil {
		return RawExchangeStatus{}, fmt.Errorf("kalshi: exchange status: %w", err)
	}
	return status, nil
}

// HealthCheck reports whether the API is reachable and the exchange is
// active.
func (c *Client) HealthCheck(ctx context.Context) bool {
	status, err := c.ExchangeStatus(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "kalshi: health check failed", slog.String("error", err.Error()))
		return false
	}
	return status.ExchangeActive
}

// SearchMarkets lists keyword-matching markets and normalizes them, skipping
// records that fail normalization.
func (c *Client) SearchMarkets(ctx context.Context, keyword string) ([]domain.Market, error) {
	raws, err := c.ListByKeyword(ctx, keyword)
	if err != nil {
		return nil, err
	}
	return c.NormalizeAll(raws), nil
}

// NormalizeAll normalizes a batch, dropping malformed records.
func (c *Client) NormalizeAll(raws []RawMarket) []domain.Market {
	markets := make([]domain.Market, 0, len(raws))
	for _, raw := range raws {
		if m, ok := c.normalizer.Normalize(raw); ok {
			markets = append(markets, m)
		}
	}
	if skipped := len(raws) - len(markets); skipped > 0 {
		c.logger.Warn("kalshi: skipped malformed records",
			slog.Int("skipped", skipped),
			slog.Int("kept", len(markets)),
		)
	}
	return markets
}

// GetMarket fetches and normalizes a single market.
func (c *Client) GetMarket(ctx context.Context, id string) (domain.Market, bool, error) {
	raw, ok, err := c.MarketDetail(ctx, id)
	if err != nil || !ok {
		return domain.Market{}, false, err
	}
	m, ok := c.normalizer.Normalize(raw)
	return m, ok, nil
}
