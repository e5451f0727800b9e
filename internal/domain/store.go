package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
}

// OpportunityStore persists detected opportunities.
type OpportunityStore interface {
	Insert(ctx context.Context, sessionID string, opp SizedOpportunity) error
	ListRecent(ctx context.Context, opts ListOpts) ([]SizedOpportunity, error)
}

// SessionStore persists scan session summaries.
type SessionStore interface {
	Save(ctx context.Context, session ScanSession) error
	ListRecent(ctx context.Context, limit int) ([]ScanSession, error)
}
