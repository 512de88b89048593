package match

import "context"

type Repository interface {
	// Create relies on the (loan_id, offer_id) unique index as the last duplicate guard.
	Create(ctx context.Context, m *Match) error
	Save(ctx context.Context, m *Match) error
	GetByMatchID(ctx context.Context, matchID string) (*Match, error)
	GetByMatchIDForUpdate(ctx context.Context, matchID string) (*Match, error)
	ExistsForPair(ctx context.Context, loanID, offerID uint64) (bool, error)
	ListByLoan(ctx context.Context, loanID uint64) ([]Match, error)
	ListByOffer(ctx context.Context, offerID uint64) ([]Match, error)
	ListNeedingReconciliation(ctx context.Context, limit int) ([]Match, error)
}
