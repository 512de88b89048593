package offer

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, o *Offer) error
	GetByOfferID(ctx context.Context, offerID string) (*Offer, error)
	GetByID(ctx context.Context, id uint64) (*Offer, error)
	GetByOfferIDForUpdate(ctx context.Context, offerID string) (*Offer, error)
	// ListActiveForLoan returns active offers with capital left whose term and rate floor
	// accept a loan of the given term and effective rate, skipping offers already matched
	// with excludeLoanID. Largest availability first.
	ListActiveForLoan(ctx context.Context, termMonths int, effectiveRate decimal.Decimal, excludeLoanID uint64, limit int) ([]Offer, error)
	// Consume atomically decrements amount_available when enough capital remains.
	Consume(ctx context.Context, id uint64, amount decimal.Decimal) (bool, error)
	UpdateStatus(ctx context.Context, id uint64, status Status) error
}
