package mysql

import (
	"context"

	"edufund-backend/internal/domain/loan"
	"edufund-backend/internal/domain/offer"
	"edufund-backend/internal/domain/uow"

	"gorm.io/gorm"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func reposFor(tx *gorm.DB) uow.Repos {
	return uow.Repos{
		Loans:    &LoanRepository{db: tx},
		Offers:   &OfferRepository{db: tx},
		Matches:  &MatchRepository{db: tx},
		Accounts: &AccountRepository{db: tx},
		Entries:  &EntryRepository{db: tx},
	}
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(reposFor(tx))
	})
}

func (u *GormUoW) WithinMatchTx(ctx context.Context, loanID, offerID string, fn func(r uow.Repos, l *loan.Loan, o *offer.Offer) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		// always loan first, then offer
		l, err := r.Loans.GetByLoanIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		o, err := r.Offers.GetByOfferIDForUpdate(ctx, offerID)
		if err != nil {
			return err
		}
		return fn(r, l, o)
	})
}
