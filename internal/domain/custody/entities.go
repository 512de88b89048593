package custody

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive = "active"

	HoldBlock   = "block"
	HoldUnblock = "unblock"

	PlatformFeesRef = "platform_fees"
	externalPrefix  = "external_"
)

var (
	ErrNotFound            = errors.New("custody account not found")
	ErrInsufficientFunds   = errors.New("insufficient available balance")
	ErrInsufficientBlocked = errors.New("insufficient blocked amount")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidRef          = errors.New("invalid account reference")
	ErrSameAccount         = errors.New("source and destination accounts are the same")
	ErrIntegrityViolation  = errors.New("custody account balances do not reconcile")
)

// Account is a bookkeeping balance held on behalf of one participant.
type Account struct {
	ID               uint64          `gorm:"primaryKey;column:id" json:"-"`
	AccountRef       string          `gorm:"size:64;uniqueIndex:ux_custody_accounts_ref" json:"account_ref"`
	AvailableBalance decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"available_balance"`
	BlockedAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"blocked_amount"`
	TotalBalance     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_balance"`
	Status           string          `gorm:"size:16;default:'active'" json:"status"`
	Version          int64           `gorm:"not null;default:1" json:"-"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string { return "custody_accounts" }

// Check verifies total == available + blocked and both parts are non-negative.
func (a *Account) Check() error {
	if a.AvailableBalance.IsNegative() || a.BlockedAmount.IsNegative() {
		return ErrIntegrityViolation
	}
	if !a.TotalBalance.Equal(a.AvailableBalance.Add(a.BlockedAmount)) {
		return ErrIntegrityViolation
	}
	return nil
}

// Hold records every block/unblock for audit.
type Hold struct {
	ID         uint64          `gorm:"primaryKey;column:id" json:"-"`
	AccountRef string          `gorm:"size:64;index" json:"account_ref"`
	Kind       string          `gorm:"size:16;not null" json:"kind"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Reason     string          `gorm:"type:text" json:"reason"`
	MatchID    string          `gorm:"size:32;index" json:"match_id,omitempty"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Hold) TableName() string { return "custody_holds" }

func UserRef(userID string) string               { return "user_" + userID }
func InstitutionRef(institutionID string) string { return "institution_" + institutionID }
func EscrowRef(loanID string) string             { return "escrow_loan_" + loanID }
func ExternalRef(method string) string           { return externalPrefix + strings.ToLower(method) }

// IsExternal reports whether ref names money outside the platform. External refs
// live only in the ledger and never get a custody row.
func IsExternal(ref string) bool { return strings.HasPrefix(ref, externalPrefix) }

func ValidRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	return ref != "" && len(ref) <= 64 && !IsExternal(ref)
}
