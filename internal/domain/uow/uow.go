package uow

import (
	"context"
	"errors"

	"edufund-backend/internal/domain/custody"
	"edufund-backend/internal/domain/ledger"
	"edufund-backend/internal/domain/loan"
	"edufund-backend/internal/domain/match"
	"edufund-backend/internal/domain/offer"
)

// ErrConflict marks a unit of work that lost an optimistic race and may be re-run.
var ErrConflict = errors.New("concurrent modification, retry")

// domain/uow/uow.go
type Repos struct {
	Loans    loan.Repository
	Offers   offer.Repository
	Matches  match.Repository
	Accounts custody.Repository
	Entries  ledger.Repository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// lock loan then offer (fixed order), then pass both in
	WithinMatchTx(ctx context.Context, loanID, offerID string, fn func(r Repos, l *loan.Loan, o *offer.Offer) error) error
}

// Retry re-runs fn while it fails with ErrConflict, up to attempts times.
func Retry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !errors.Is(err, ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}
