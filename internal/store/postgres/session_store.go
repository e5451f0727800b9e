package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// SessionStore implements domain.SessionStore. Only the session summary is
// stored; opportunities live in their own table.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a SessionStore backed by pool.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Save inserts or updates the session summary.
func (s *SessionStore) Save(ctx context.Context, sess domain.ScanSession) error {
	errs, err := json.Marshal(nonNil(sess.Errors))
	if err != nil {
		return fmt.Errorf("postgres: encode session errors: %w", err)
	}
	warns, err := json.Marshal(nonNil(sess.Warnings))
	if err != nil {
		return fmt.Errorf("postgres: encode session warnings: %w", err)
	}

	const query = `
		INSERT INTO scan_sessions (
			id, keyword, started_at, completed_at,
			kalshi_count, polymarket_count, opportunities_found,
			network_ready, network_endpoint, errors, warnings
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			completed_at        = EXCLUDED.completed_at,
			kalshi_count        = EXCLUDED.kalshi_count,
			polymarket_count    = EXCLUDED.polymarket_count,
			opportunities_found = EXCLUDED.opportunities_found,
			network_ready       = EXCLUDED.network_ready,
			network_endpoint    = EXCLUDED.network_endpoint,
			errors              = EXCLUDED.errors,
			warnings            = EXCLUDED.warnings`

	_, err = s.pool.Exec(ctx, query,
		sess.ID, sess.Keyword, sess.StartedAt, sess.CompletedAt,
		sess.KalshiCount, sess.PolymarketCount, sess.OpportunitiesFound,
		sess.NetworkReady, nullString(sess.NetworkEndpoint), errs, warns,
	)
	if err != nil {
		return fmt.Errorf("postgres: save session %s: %w", sess.ID, err)
	}
	return nil
}

// ListRecent returns session summaries newest first.
func (s *SessionStore) ListRecent(ctx context.Context, limit int) ([]domain.ScanSession, error) {
	query := `
		SELECT id, keyword, started_at, completed_at,
		       kalshi_count, polymarket_count, opportunities_found,
		       network_ready, COALESCE(network_endpoint, ''), errors, warnings
		FROM scan_sessions
		ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.ScanSession
	for rows.Next() {
		var (
			sess        domain.ScanSession
			errs, warns []byte
		)
		if err := rows.Scan(
			&sess.ID, &sess.Keyword, &sess.StartedAt, &sess.CompletedAt,
			&sess.KalshiCount, &sess.PolymarketCount, &sess.OpportunitiesFound,
			&sess.NetworkReady, &sess.NetworkEndpoint, &errs, &warns,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan session: %w", err)
		}
		if err := json.Unmarshal(errs, &sess.Errors); err != nil {
			return nil, fmt.Errorf("postgres: decode session errors: %w", err)
		}
		if err := json.Unmarshal(warns, &sess.Warnings); err != nil {
			return nil, fmt.Errorf("postgres: decode session warnings: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list sessions rows: %w", err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ domain.SessionStore = (*SessionStore)(nil)
