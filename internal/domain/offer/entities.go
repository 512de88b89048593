package offer

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusExhausted Status = "exhausted"
)

var ErrNotFound = errors.New("offer not found")

// Offer is an investor's pool of committed capital, consumed by matches.
type Offer struct {
	ID              uint64          `gorm:"primaryKey;column:id" json:"-"`
	OfferID         string          `gorm:"size:32;uniqueIndex:ux_offers_offer_id" json:"offer_id"`
	InvestorID      string          `gorm:"size:32;index:idx_offers_investor" json:"investor_id"`
	AmountAvailable decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount_available"`
	TermMonths      int             `gorm:"not null" json:"term_months"`
	MinRate         decimal.Decimal `gorm:"type:decimal(8,6);not null;default:0" json:"min_rate"`
	Status          Status          `gorm:"size:16;index:idx_offers_status;default:'active'" json:"status"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Offer) TableName() string { return "offers" }

func (o *Offer) HasCapital() bool {
	return o.Status == StatusActive && o.AmountAvailable.IsPositive()
}
