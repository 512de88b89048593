package matchmock

import (
	"context"

	domain "edufund-backend/internal/domain/match"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset list calls return no rows.
type Repo struct {
	CreateFn                    func(ctx context.Context, m *domain.Match) error
	SaveFn                      func(ctx context.Context, m *domain.Match) error
	GetByMatchIDFn              func(ctx context.Context, matchID string) (*domain.Match, error)
	GetByMatchIDForUpdateFn     func(ctx context.Context, matchID string) (*domain.Match, error)
	ExistsForPairFn             func(ctx context.Context, loanID, offerID uint64) (bool, error)
	ListByLoanFn                func(ctx context.Context, loanID uint64) ([]domain.Match, error)
	ListByOfferFn               func(ctx context.Context, offerID uint64) ([]domain.Match, error)
	ListNeedingReconciliationFn func(ctx context.Context, limit int) ([]domain.Match, error)
}

func (m *Repo) Create(ctx context.Context, x *domain.Match) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, x)
	}
	return nil
}

func (m *Repo) Save(ctx context.Context, x *domain.Match) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, x)
	}
	return nil
}

func (m *Repo) GetByMatchID(ctx context.Context, matchID string) (*domain.Match, error) {
	if m.GetByMatchIDFn != nil {
		return m.GetByMatchIDFn(ctx, matchID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByMatchIDForUpdate(ctx context.Context, matchID string) (*domain.Match, error) {
	if m.GetByMatchIDForUpdateFn != nil {
		return m.GetByMatchIDForUpdateFn(ctx, matchID)
	}
	return nil, context.Canceled
}

func (m *Repo) ExistsForPair(ctx context.Context, loanID, offerID uint64) (bool, error) {
	if m.ExistsForPairFn != nil {
		return m.ExistsForPairFn(ctx, loanID, offerID)
	}
	return false, nil
}

func (m *Repo) ListByLoan(ctx context.Context, loanID uint64) ([]domain.Match, error) {
	if m.ListByLoanFn != nil {
		return m.ListByLoanFn(ctx, loanID)
	}
	return nil, nil
}

func (m *Repo) ListByOffer(ctx context.Context, offerID uint64) ([]domain.Match, error) {
	if m.ListByOfferFn != nil {
		return m.ListByOfferFn(ctx, offerID)
	}
	return nil, nil
}

func (m *Repo) ListNeedingReconciliation(ctx context.Context, limit int) ([]domain.Match, error) {
	if m.ListNeedingReconciliationFn != nil {
		return m.ListNeedingReconciliationFn(ctx, limit)
	}
	return nil, nil
}
