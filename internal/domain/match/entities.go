package match

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// SettlementStatus tracks the two-phase movement of funds behind a committed match.
type SettlementStatus string

const (
	SettlementNone      SettlementStatus = "none"
	SettlementReserved  SettlementStatus = "reserved"
	SettlementConfirmed SettlementStatus = "confirmed"
	SettlementFailed    SettlementStatus = "failed"
)

var (
	ErrNotFound  = errors.New("match not found")
	ErrDuplicate = errors.New("loan and offer are already matched")
)

// Table: matches. (loan_id, offer_id) is unique.
type Match struct {
	ID                   uint64           `gorm:"primaryKey;column:id" json:"-"`
	MatchID              string           `gorm:"size:32;uniqueIndex:ux_matches_match_id" json:"match_id"`
	LoanID               uint64           `gorm:"not null;uniqueIndex:ux_matches_loan_offer" json:"-"`
	OfferID              uint64           `gorm:"not null;uniqueIndex:ux_matches_loan_offer;index" json:"-"`
	InvestorID           string           `gorm:"size:32;not null" json:"investor_id"`
	AmountMatched        decimal.Decimal  `gorm:"type:decimal(18,2);not null" json:"amount_matched"`
	Rate                 decimal.Decimal  `gorm:"type:decimal(8,6);not null" json:"rate"`
	Status               Status           `gorm:"size:16;default:'pending'" json:"status"`
	SettlementStatus     SettlementStatus `gorm:"size:16;default:'none'" json:"settlement_status"`
	SettlementRef        string           `gorm:"size:64" json:"settlement_ref,omitempty"`
	NeedsReconciliation  bool             `gorm:"index;default:false" json:"needs_reconciliation"`
	ReconciliationReason string           `gorm:"type:text" json:"reconciliation_reason,omitempty"`
	CreatedAt            time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Match) TableName() string { return "matches" }

// Flag marks the match for operator reconciliation. The commitment itself stands.
func (m *Match) Flag(reason string) {
	m.NeedsReconciliation = true
	m.ReconciliationReason = reason
}
