package domain

import "time"

// ScanSession records the outcome of one scan cycle.
type ScanSession struct {
	ID                 string             `json:"id"`
	Keyword            string             `json:"keyword"`
	StartedAt          time.Time          `json:"started_at"`
	CompletedAt        *time.Time         `json:"completed_at,omitempty"`
	KalshiCount        int                `json:"kalshi_markets_count"`
	PolymarketCount    int                `json:"polymarket_markets_count"`
	OpportunitiesFound int                `json:"opportunities_found"`
	NetworkReady       bool               `json:"network_ready"`
	NetworkEndpoint    string             `json:"network_endpoint,omitempty"`
	Errors             []string           `json:"errors"`
	Warnings           []string           `json:"warnings"`
	Opportunities      []SizedOpportunity `json:"opportunities"`
	Spreads            []Spread           `json:"spreads"`
}

// AddError appends a formatted error to the session.
func (s *ScanSession) AddError(err error) {
	if err != nil {
		s.Errors = append(s.Errors, err.Error())
	}
}

// AddWarning appends a warning to the session.
func (s *ScanSession) AddWarning(msg string) {
	s.Warnings = append(s.Warnings, msg)
}
