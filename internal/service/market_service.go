// Package service orchestrates scans across the exchange clients and fans
// the results out to storage, pub/sub, notifications and reports.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// MarketSource is an exchange client as seen by the services.
type MarketSource interface {
	Platform() domain.Platform
	SearchMarkets(ctx context.Context, keyword string) ([]domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, bool, error)
	HealthCheck(ctx context.Context) bool
}

// MarketService looks up markets and health across the configured sources.
type MarketService struct {
	sources map[domain.Platform]MarketSource
	logger  *slog.Logger
}

func NewMarketService(logger *slog.Logger, sources ...MarketSource) *MarketService {
	m := make(map[domain.Platform]MarketSource, len(sources))
	for _, s := range sources {
		if s != nil {
			m[s.Platform()] = s
		}
	}
	return &MarketService{sources: m, logger: logger}
}

// Source returns the client registered for platform.
func (s *MarketService) Source(platform domain.Platform) (MarketSource, bool) {
	src, ok := s.sources[platform]
	return src, ok
}

// Market fetches one canonical market. Unknown platforms and absent markets
// both report ErrNotFound.
func (s *MarketService) Market(ctx context.Context, platform domain.Platform, id string) (domain.Market, error) {
	src, ok := s.sources[platform]
	if !ok {
		return domain.Market{}, fmt.Errorf("market_service: platform %q: %w", platform, domain.ErrNotFound)
	}
	m, found, err := src.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %s/%s: %w", platform, id, err)
	}
	if !found {
		return domain.Market{}, fmt.Errorf("market_service: %s/%s: %w", platform, id, domain.ErrNotFound)
	}
	return m, nil
}

// Health runs every source health check and reports the result per platform.
func (s *MarketService) Health(ctx context.Context) map[domain.Platform]bool {
	out := make(map[domain.Platform]bool, len(s.sources))
	for _, p := range s.Platforms() {
		ok := s.sources[p].HealthCheck(ctx)
		if !ok {
			s.logger.WarnContext(ctx, "market_service: health check failed", slog.String("platform", string(p)))
		}
		out[p] = ok
	}
	return out
}

// Platforms lists the configured platforms in sorted order.
func (s *MarketService) Platforms() []domain.Platform {
	out := make([]domain.Platform, 0, len(s.sources))
	for p := range s.sources {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
