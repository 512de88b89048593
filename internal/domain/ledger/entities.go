package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	CategoryDeposit      = "deposit"
	CategoryInvestment   = "investment"
	CategoryDisbursement = "disbursement"
	CategoryPlatformFee  = "platform_fee"
	CategoryFee          = "fee"
	CategoryTransfer     = "transfer"
)

var (
	ErrInvalidAmount      = errors.New("ledger amount must be positive")
	ErrInsufficientFunds  = errors.New("insufficient ledger balance on source account")
	ErrSameAccount        = errors.New("ledger posting needs two distinct accounts")
	ErrIntegrityViolation = errors.New("ledger integrity violation")
)

// Entry is one leg of a double-entry posting. Both legs of a movement share TransactionID.
type Entry struct {
	ID            uint64          `gorm:"primaryKey;column:id" json:"-"`
	EntryID       string          `gorm:"size:32;uniqueIndex:ux_ledger_entries_entry_id" json:"entry_id"`
	TransactionID string          `gorm:"size:36;not null;index:idx_ledger_entries_tx" json:"transaction_id"`
	AccountRef    string          `gorm:"size:64;not null;index:idx_ledger_entries_account" json:"account_ref"`
	Direction     Direction       `gorm:"size:8;not null" json:"direction"`
	FromAccount   string          `gorm:"size:64;not null" json:"from_account"`
	ToAccount     string          `gorm:"size:64;not null" json:"to_account"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Category      string          `gorm:"size:32;not null;index:idx_ledger_entries_category" json:"category"`
	Subcategory   string          `gorm:"size:32" json:"subcategory,omitempty"`
	Description   string          `gorm:"type:text" json:"description,omitempty"`
	Status        Status          `gorm:"size:16;not null;default:'completed'" json:"status"`
	LoanID        string          `gorm:"size:32;index" json:"loan_id,omitempty"`
	MatchID       string          `gorm:"size:32;index" json:"match_id,omitempty"`
	CreatedAt     time.Time       `gorm:"index:idx_ledger_entries_created" json:"created_at"`
}

func (Entry) TableName() string { return "ledger_entries" }

// Window bounds a query on created_at; zero values leave that side open.
type Window struct {
	Start time.Time
	End   time.Time
}

type AccountBalance struct {
	AccountRef string
	Credits    decimal.Decimal
	Debits     decimal.Decimal
}

func (b AccountBalance) Balance() decimal.Decimal { return b.Credits.Sub(b.Debits) }

// Aggregate is one (category, status) bucket over debit legs, i.e. one row per movement.
type Aggregate struct {
	Category string
	Status   Status
	Count    int64
	Total    decimal.Decimal
}
