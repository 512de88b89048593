package uowmock

import (
	"context"
	"errors"

	"edufund-backend/internal/domain/loan"
	"edufund-backend/internal/domain/offer"
	"edufund-backend/internal/domain/uow"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

type matchTxFn = func(r uow.Repos, l *loan.Loan, o *offer.Offer) error

// UoW is a function-backed mock that satisfies uow.UnitOfWork.
// Fill in the function fields you need in a test; unfilled ones return errUnimplemented.
type UoW struct {
	WithinTxFn      func(ctx context.Context, fn func(r uow.Repos) error) error
	WithinMatchTxFn func(ctx context.Context, loanID, offerID string, fn matchTxFn) error
}

// Convenience fluent setters
func New() *UoW { return &UoW{} }
func (m *UoW) WithWithinTx(fn func(context.Context, func(uow.Repos) error) error) *UoW {
	m.WithinTxFn = fn
	return m
}
func (m *UoW) WithWithinMatchTx(fn func(context.Context, string, string, matchTxFn) error) *UoW {
	m.WithinMatchTxFn = fn
	return m
}
func (m *UoW) Reset() { *m = UoW{} }

// Passthrough runs every unit of work directly against repos, with no transaction.
func Passthrough(repos uow.Repos) *UoW {
	return &UoW{
		WithinTxFn: func(_ context.Context, fn func(uow.Repos) error) error { return fn(repos) },
		WithinMatchTxFn: func(ctx context.Context, loanID, offerID string, fn matchTxFn) error {
			l, err := repos.Loans.GetByLoanIDForUpdate(ctx, loanID)
			if err != nil {
				return err
			}
			o, err := repos.Offers.GetByOfferIDForUpdate(ctx, offerID)
			if err != nil {
				return err
			}
			return fn(repos, l, o)
		},
	}
}

// Methods implementing UnitOfWork
func (m *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return errUnimplemented
}
func (m *UoW) WithinMatchTx(ctx context.Context, loanID, offerID string, fn matchTxFn) error {
	if m.WithinMatchTxFn != nil {
		return m.WithinMatchTxFn(ctx, loanID, offerID, fn)
	}
	return errUnimplemented
}
