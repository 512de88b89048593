package loan

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	GetByLoanID(ctx context.Context, loanID string) (*Loan, error)
	GetByID(ctx context.Context, id uint64) (*Loan, error)
	// GetByLoanIDForUpdate must only be called inside a unit of work.
	GetByLoanIDForUpdate(ctx context.Context, loanID string) (*Loan, error)
	// ListFundable returns pending loans with open principal that pass q, in id order.
	ListFundable(ctx context.Context, q FundableQuery) ([]Loan, error)
	// AddFunded atomically increments amount_funded when the result stays within amount.
	// Returns false when no row satisfied the guard.
	AddFunded(ctx context.Context, id uint64, amount decimal.Decimal) (bool, error)
	UpdateStatus(ctx context.Context, id uint64, from, to Status) error
}

// FundableQuery narrows the fundable scan for one offer. Rate and pairing filters run in
// the store so unfundable rows never occupy the page. AfterID pages by primary key.
type FundableQuery struct {
	MaxTerm        int
	MinRate        decimal.Decimal
	ExcludeOfferID uint64
	AfterID        uint64
	Limit          int
}
