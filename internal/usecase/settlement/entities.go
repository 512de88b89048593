package settlement

import (
	"edufund-backend/internal/domain/loan"
	"edufund-backend/internal/domain/match"
	"edufund-backend/internal/domain/offer"

	"github.com/shopspring/decimal"
)

const (
	DefaultMaxRetries   = 3
	DefaultMatchesTopic = "matches.executed"
	DefaultListLimit    = 50
	MaxListLimit        = 500
)

type Config struct {
	MaxRetries   int
	MatchesTopic string
}

type ExecuteInput struct {
	InvestorID string
	OfferID    string
	LoanID     string
	Amount     decimal.Decimal
	// Rate overrides the loan's effective rate; it may not undercut the offer's floor.
	Rate *decimal.Decimal
}

type ExecuteResult struct {
	Match          *match.Match    `json:"match"`
	LoanID         string          `json:"loan_id"`
	OfferID        string          `json:"offer_id"`
	LoanRemaining  decimal.Decimal `json:"loan_remaining"`
	LoanStatus     loan.Status     `json:"loan_status"`
	OfferAvailable decimal.Decimal `json:"offer_available"`
	OfferStatus    offer.Status    `json:"offer_status"`
}

type DisburseResult struct {
	LoanID                    string          `json:"loan_id"`
	Status                    loan.Status     `json:"status"`
	Gross                     decimal.Decimal `json:"gross"`
	Fee                       decimal.Decimal `json:"fee"`
	Net                       decimal.Decimal `json:"net"`
	InstitutionRef            string          `json:"institution_ref"`
	FeeTransactionID          string          `json:"fee_transaction_id,omitempty"`
	DisbursementTransactionID string          `json:"disbursement_transaction_id,omitempty"`
}
