package redis

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// NetworkGate implements domain.NetworkGate from two keys maintained by an
// external VPN manager: "<prefix>:network:ready" and
// "<prefix>:network:endpoint". A missing ready key means not ready.
type NetworkGate struct {
	c      *Client
	logger *slog.Logger
}

// NewNetworkGate creates a NetworkGate backed by c.
func NewNetworkGate(c *Client, logger *slog.Logger) *NetworkGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &NetworkGate{c: c, logger: logger}
}

// IsNetworkReady reports the published readiness flag. Redis errors count as
// not ready.
func (g *NetworkGate) IsNetworkReady(ctx context.Context) bool {
	v, err := g.c.rdb.Get(ctx, g.c.Key("network", "ready")).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			g.logger.WarnContext(ctx, "redis: network gate read failed", slog.String("error", err.Error()))
		}
		return false
	}
	return parseReady(v)
}

// CurrentEndpointLabel returns the published endpoint label, if any.
func (g *NetworkGate) CurrentEndpointLabel(ctx context.Context) (string, bool) {
	v, err := g.c.rdb.Get(ctx, g.c.Key("network", "endpoint")).Result()
	if err != nil || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// SetStatus publishes readiness and the endpoint label, expiring after ttl so
// a dead manager does not leave a stale "ready". A zero ttl never expires.
func (g *NetworkGate) SetStatus(ctx context.Context, ready bool, endpoint string, ttl time.Duration) error {
	pipe := g.c.rdb.TxPipeline()
	pipe.Set(ctx, g.c.Key("network", "ready"), strconv.FormatBool(ready), ttl)
	if endpoint != "" {
		pipe.Set(ctx, g.c.Key("network", "endpoint"), endpoint, ttl)
	} else {
		pipe.Del(ctx, g.c.Key("network", "endpoint"))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return nil
}

func parseReady(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "up", "connected":
		return true
	default:
		return false
	}
}

var _ domain.NetworkGate = (*NetworkGate)(nil)
