package matching

import (
	"time"

	"edufund-backend/internal/domain/scoring"

	"github.com/shopspring/decimal"
)

const (
	DefaultMinScore       = 600
	DefaultScanLimit      = 500
	DefaultAutoMatchLimit = 5
)

type Config struct {
	MinScore       int
	ScanLimit      int
	AutoMatchLimit int
}

func (c Config) withDefaults() Config {
	if c.MinScore <= 0 {
		c.MinScore = DefaultMinScore
	}
	if c.ScanLimit <= 0 {
		c.ScanLimit = DefaultScanLimit
	}
	if c.AutoMatchLimit <= 0 {
		c.AutoMatchLimit = DefaultAutoMatchLimit
	}
	return c
}

// LoanCandidate is a loan an offer may fund, annotated with what it may invest.
type LoanCandidate struct {
	LoanID        string           `json:"loan_id"`
	BorrowerID    string           `json:"borrower_id"`
	Amount        decimal.Decimal  `json:"amount"`
	AmountFunded  decimal.Decimal  `json:"amount_funded"`
	Remaining     decimal.Decimal  `json:"remaining"`
	TermMonths    int              `json:"term_months"`
	EffectiveRate decimal.Decimal  `json:"effective_rate"`
	Score         int              `json:"score"`
	RiskBand      scoring.RiskBand `json:"risk_band"`
	MaxInvestable decimal.Decimal  `json:"max_investable"`
	CreatedAt     time.Time        `json:"created_at"`

	id uint64
}

// OfferCandidate is an offer that may fund a given loan.
type OfferCandidate struct {
	OfferID         string          `json:"offer_id"`
	InvestorID      string          `json:"investor_id"`
	AmountAvailable decimal.Decimal `json:"amount_available"`
	TermMonths      int             `json:"term_months"`
	MinRate         decimal.Decimal `json:"min_rate"`
	MaxInvestable   decimal.Decimal `json:"max_investable"`
	CreatedAt       time.Time       `json:"created_at"`

	id uint64
}
