package loanmock

import (
	"context"

	domain "edufund-backend/internal/domain/loan"

	"github.com/shopspring/decimal"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset lookups return context.Canceled; unset writes are no-ops.
type Repo struct {
	CreateFn               func(ctx context.Context, l *domain.Loan) error
	GetByLoanIDFn          func(ctx context.Context, loanID string) (*domain.Loan, error)
	GetByIDFn              func(ctx context.Context, id uint64) (*domain.Loan, error)
	GetByLoanIDForUpdateFn func(ctx context.Context, loanID string) (*domain.Loan, error)
	ListFundableFn         func(ctx context.Context, q domain.FundableQuery) ([]domain.Loan, error)
	AddFundedFn            func(ctx context.Context, id uint64, amount decimal.Decimal) (bool, error)
	UpdateStatusFn         func(ctx context.Context, id uint64, from, to domain.Status) error
}

func (m *Repo) Create(ctx context.Context, l *domain.Loan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}

func (m *Repo) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDFn != nil {
		return m.GetByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByID(ctx context.Context, id uint64) (*domain.Loan, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDForUpdateFn != nil {
		return m.GetByLoanIDForUpdateFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) ListFundable(ctx context.Context, q domain.FundableQuery) ([]domain.Loan, error) {
	if m.ListFundableFn != nil {
		return m.ListFundableFn(ctx, q)
	}
	return nil, context.Canceled
}

func (m *Repo) AddFunded(ctx context.Context, id uint64, amount decimal.Decimal) (bool, error) {
	if m.AddFundedFn != nil {
		return m.AddFundedFn(ctx, id, amount)
	}
	return true, nil
}

func (m *Repo) UpdateStatus(ctx context.Context, id uint64, from, to domain.Status) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, from, to)
	}
	return nil
}
