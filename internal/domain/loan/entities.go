package loan

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusMatched   Status = "matched"
	StatusDisbursed Status = "disbursed"
	StatusRejected  Status = "rejected"
	StatusDefaulted Status = "defaulted"
)

var (
	ErrNotFound          = errors.New("loan not found")
	ErrNotPending        = errors.New("loan is not pending")
	ErrInvalidTransition = errors.New("invalid loan status transition")
)

type Loan struct {
	ID              uint64          `gorm:"primaryKey;column:id" json:"-"`
	LoanID          string          `gorm:"size:32;uniqueIndex:ux_loans_loan_id" json:"loan_id"`
	BorrowerID      string          `gorm:"size:32;index:idx_loans_borrower" json:"borrower_id"`
	InstitutionID   string          `gorm:"size:32" json:"institution_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	AmountFunded    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"amount_funded"`
	TermMonths      int             `gorm:"not null" json:"term_months"`
	AnnualSpread    decimal.Decimal `gorm:"type:decimal(8,6);not null;default:0" json:"annual_spread"`
	MonthlyCustody  decimal.Decimal `gorm:"column:monthly_custody_fee;type:decimal(8,6);not null;default:0" json:"monthly_custody_fee"`
	OriginationFee  decimal.Decimal `gorm:"type:decimal(8,6);not null;default:0" json:"origination_fee"`
	Status          Status          `gorm:"size:16;index:idx_loans_status;default:'pending'" json:"status"`
	StatusUpdatedAt time.Time       `gorm:"autoCreateTime" json:"status_updated_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Loan) TableName() string { return "loans" }

// Remaining is the principal still open for funding.
func (l *Loan) Remaining() decimal.Decimal {
	r := l.Amount.Sub(l.AmountFunded)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func (l *Loan) FullyFunded() bool { return l.AmountFunded.GreaterThanOrEqual(l.Amount) }

// EffectiveRate is the annualized yield implied by the loan's pricing inputs:
// spread + 12*monthly custody fee + 12*(origination fee / term).
// The matching engine and match execution must both price through this function.
func (l *Loan) EffectiveRate() decimal.Decimal {
	return EffectiveRate(l.AnnualSpread, l.MonthlyCustody, l.OriginationFee, l.TermMonths)
}

// rateScale matches the decimal(8,6) rate columns.
const rateScale = 6

func EffectiveRate(spread, monthlyCustody, originationFee decimal.Decimal, termMonths int) decimal.Decimal {
	twelve := decimal.NewFromInt(12)
	rate := spread.Add(monthlyCustody.Mul(twelve))
	if termMonths > 0 {
		rate = rate.Add(originationFee.Mul(twelve).Div(decimal.NewFromInt(int64(termMonths))))
	}
	return rate.Round(rateScale)
}

// CanTransition reports whether from -> to follows the loan lifecycle.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusMatched || to == StatusRejected
	case StatusMatched:
		return to == StatusDisbursed
	case StatusDisbursed:
		return to == StatusDefaulted
	}
	return false
}
