// Package notify pushes scan alerts to chat webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Event kinds a Notifier can be restricted to.
const (
	EventOpportunity = "opportunity"
	EventScanError   = "scan_error"
)

// Sender delivers one message to a channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Config controls which alerts are sent.
type Config struct {
	// Events restricts delivery to the listed kinds; empty allows all.
	Events []string
	// MinProfitPct is the profit percentage an opportunity must reach to be
	// announced.
	MinProfitPct float64
}

// Notifier fans alerts out to every Sender.
type Notifier struct {
	senders      []Sender
	events       map[string]bool
	minProfitPct float64
	logger       *slog.Logger
}

func NewNotifier(senders []Sender, cfg Config, logger *slog.Logger) *Notifier {
	events := make(map[string]bool, len(cfg.Events))
	for _, e := range cfg.Events {
		if e = strings.TrimSpace(e); e != "" {
			events[e] = true
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		senders:      senders,
		events:       events,
		minProfitPct: cfg.MinProfitPct,
		logger:       logger,
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Opportunities announces each opportunity at or above the profit threshold
// and returns how many were sent.
func (n *Notifier) Opportunities(ctx context.Context, opps []domain.SizedOpportunity) (int, error) {
	if !n.Enabled() || !n.allowed(EventOpportunity) {
		return 0, nil
	}
	var (
		sent int
		errs []error
	)
	for _, o := range opps {
		if o.ProfitPercentage < n.minProfitPct {
			continue
		}
		if err := n.dispatch(ctx, opportunityTitle(o), opportunityMessage(o)); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// ScanFailed announces the errors recorded on a session, if any.
func (n *Notifier) ScanFailed(ctx context.Context, sess domain.ScanSession) error {
	if !n.Enabled() || !n.allowed(EventScanError) || len(sess.Errors) == 0 {
		return nil
	}
	title := fmt.Sprintf("Scan %q had %d error(s)", sess.Keyword, len(sess.Errors))
	return n.dispatch(ctx, title, strings.Join(sess.Errors, "\n"))
}

func (n *Notifier) allowed(event string) bool {
	return len(n.events) == 0 || n.events[event]
}

// dispatch sends to every sender; one failing sender does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "notify: sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("notify: %s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notify: sent", slog.String("sender", s.Name()), slog.String("title", title))
	}
	return errors.Join(errs...)
}

func opportunityTitle(o domain.SizedOpportunity) string {
	return fmt.Sprintf("Arbitrage %s%% : buy %s / sell %s",
		decimal.NewFromFloat(o.ProfitPercentage).StringFixed(2), o.Buy.Platform, o.Sell.Platform)
}

func opportunityMessage(o domain.SizedOpportunity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", o.MarketA.Title, o.MarketB.Title)
	fmt.Fprintf(&b, "Buy %s at %s, sell %s at %s (spread %s)\n",
		o.Buy.Platform, fixed3(o.Buy.Price), o.Sell.Platform, fixed3(o.Sell.Price), fixed3(o.Spread))
	fmt.Fprintf(&b, "Risk %s, invest $%s\n", fixed3(o.RiskScore),
		decimal.NewFromFloat(o.Sizing.Investment).StringFixed(2))
	fmt.Fprintf(&b, "%s\n%s", o.MarketA.SourceURL, o.MarketB.SourceURL)
	return b.String()
}

func fixed3(v float64) string { return decimal.NewFromFloat(v).StringFixed(3) }
