package scoremock

import (
	"context"

	"edufund-backend/internal/domain/scoring"
)

var _ scoring.Provider = (*Provider)(nil)

// Provider serves scores from a map, or from GetScoreFn when set.
type Provider struct {
	Scores     map[string]*scoring.Score
	GetScoreFn func(ctx context.Context, borrowerID string) (*scoring.Score, error)
	Calls      int
}

func (p *Provider) GetScore(ctx context.Context, borrowerID string) (*scoring.Score, error) {
	p.Calls++
	if p.GetScoreFn != nil {
		return p.GetScoreFn(ctx, borrowerID)
	}
	if s, ok := p.Scores[borrowerID]; ok {
		return s, nil
	}
	return nil, scoring.ErrNotFound
}
