package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore. The headline figures
// are stored as columns for querying and the full sized opportunity as JSONB.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Insert stores opp under sessionID. Re-inserting the same id is a no-op.
func (s *OpportunityStore) Insert(ctx context.Context, sessionID string, opp domain.SizedOpportunity) error {
	payload, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("postgres: encode opportunity %s: %w", opp.ID, err)
	}

	const query = `
		INSERT INTO opportunities (
			id, session_id,
			buy_platform, buy_market_id, buy_price,
			sell_platform, sell_market_id, sell_price,
			spread, profit_pct, potential_profit, risk_score, similarity_score,
			investment, discovered_at, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING`

	var session *string
	if sessionID != "" {
		session = &sessionID
	}
	_, err = s.pool.Exec(ctx, query,
		opp.ID, session,
		string(opp.Buy.Platform), opp.Buy.MarketID, opp.Buy.Price,
		string(opp.Sell.Platform), opp.Sell.MarketID, opp.Sell.Price,
		opp.Spread, opp.ProfitPercentage, opp.PotentialProfit, opp.RiskScore, opp.SimilarityScore,
		opp.Sizing.Investment, opp.DiscoveredAt, payload,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns opportunities newest first.
func (s *OpportunityStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.SizedOpportunity, error) {
	query, args := recentOpportunitiesQuery(opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.SizedOpportunity
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		var opp domain.SizedOpportunity
		if err := json.Unmarshal(payload, &opp); err != nil {
			return nil, fmt.Errorf("postgres: decode opportunity: %w", err)
		}
		out = append(out, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list opportunities rows: %w", err)
	}
	return out, nil
}

func recentOpportunitiesQuery(opts domain.ListOpts) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT payload FROM opportunities`)
	if opts.Since != nil {
		args = append(args, *opts.Since)
		b.WriteString(` WHERE discovered_at >= $` + strconv.Itoa(len(args)))
	}
	b.WriteString(` ORDER BY discovered_at DESC`)
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		b.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		b.WriteString(` OFFSET $` + strconv.Itoa(len(args)))
	}
	return b.String(), args
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
