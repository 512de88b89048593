package offermock

import (
	"context"

	domain "edufund-backend/internal/domain/offer"

	"github.com/shopspring/decimal"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	CreateFn                func(ctx context.Context, o *domain.Offer) error
	GetByOfferIDFn          func(ctx context.Context, offerID string) (*domain.Offer, error)
	GetByIDFn               func(ctx context.Context, id uint64) (*domain.Offer, error)
	GetByOfferIDForUpdateFn func(ctx context.Context, offerID string) (*domain.Offer, error)
	ListActiveForLoanFn     func(ctx context.Context, termMonths int, effectiveRate decimal.Decimal, excludeLoanID uint64, limit int) ([]domain.Offer, error)
	ConsumeFn               func(ctx context.Context, id uint64, amount decimal.Decimal) (bool, error)
	UpdateStatusFn          func(ctx context.Context, id uint64, status domain.Status) error
}

func (m *Repo) Create(ctx context.Context, o *domain.Offer) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, o)
	}
	return nil
}

func (m *Repo) GetByOfferID(ctx context.Context, offerID string) (*domain.Offer, error) {
	if m.GetByOfferIDFn != nil {
		return m.GetByOfferIDFn(ctx, offerID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByID(ctx context.Context, id uint64) (*domain.Offer, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByOfferIDForUpdate(ctx context.Context, offerID string) (*domain.Offer, error) {
	if m.GetByOfferIDForUpdateFn != nil {
		return m.GetByOfferIDForUpdateFn(ctx, offerID)
	}
	return nil, context.Canceled
}

func (m *Repo) ListActiveForLoan(ctx context.Context, termMonths int, effectiveRate decimal.Decimal, excludeLoanID uint64, limit int) ([]domain.Offer, error) {
	if m.ListActiveForLoanFn != nil {
		return m.ListActiveForLoanFn(ctx, termMonths, effectiveRate, excludeLoanID, limit)
	}
	return nil, context.Canceled
}

func (m *Repo) Consume(ctx context.Context, id uint64, amount decimal.Decimal) (bool, error) {
	if m.ConsumeFn != nil {
		return m.ConsumeFn(ctx, id, amount)
	}
	return true, nil
}

func (m *Repo) UpdateStatus(ctx context.Context, id uint64, status domain.Status) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, status)
	}
	return nil
}
