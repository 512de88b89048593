package automation

import (
	"context"

	"edufund-backend/internal/usecase/matching"
	"edufund-backend/internal/usecase/settlement"
)

// Finder is the read side the trigger walks.
type Finder interface {
	FindMatchesForOffer(ctx context.Context, offerID string) ([]matching.LoanCandidate, error)
	FindMatchesForLoan(ctx context.Context, loanID string) ([]matching.OfferCandidate, error)
}

type Executor interface {
	ExecuteMatch(ctx context.Context, in settlement.ExecuteInput) (*settlement.ExecuteResult, error)
}

// Summary reports what one trigger run did.
type Summary struct {
	Executed           int      `json:"executed"`
	Skipped            int      `json:"skipped"`
	SettlementFailures int      `json:"settlement_failures"`
	MatchIDs           []string `json:"match_ids"`
}
