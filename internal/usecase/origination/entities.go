package origination

import (
	"context"
	"errors"

	"edufund-backend/internal/domain/scoring"

	"github.com/shopspring/decimal"
)

// MaxScore is the top of the scoring engine's scale.
const MaxScore = 1000

var (
	ErrInvalidInput       = errors.New("invalid origination input")
	ErrScoringUnavailable = errors.New("score store not configured")
)

// ScoreStore persists scores delivered by the scoring engine.
type ScoreStore interface {
	Upsert(ctx context.Context, s *scoring.Score) error
}

// ScoreInvalidator evicts cached copies of a borrower's score.
type ScoreInvalidator interface {
	Invalidate(ctx context.Context, borrowerID string) error
}

// Announcer tells the automation side that new capacity exists.
type Announcer interface {
	LoanCreated(ctx context.Context, loanID string) error
	OfferCreated(ctx context.Context, offerID string) error
}

type CreateLoanInput struct {
	BorrowerID     string          `json:"borrower_id"`
	InstitutionID  string          `json:"institution_id"`
	Amount         decimal.Decimal `json:"amount"`
	TermMonths     int             `json:"term_months"`
	AnnualSpread   decimal.Decimal `json:"annual_spread"`
	MonthlyCustody decimal.Decimal `json:"monthly_custody_fee"`
	OriginationFee decimal.Decimal `json:"origination_fee"`
}

type CreateOfferInput struct {
	InvestorID      string          `json:"investor_id"`
	AmountAvailable decimal.Decimal `json:"amount_available"`
	TermMonths      int             `json:"term_months"`
	MinRate         decimal.Decimal `json:"min_rate"`
}

type UpsertScoreInput struct {
	BorrowerID string           `json:"borrower_id"`
	Score      int              `json:"score"`
	RiskBand   scoring.RiskBand `json:"risk_band"`
}
