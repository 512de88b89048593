package ledger

import (
	"time"

	"edufund-backend/internal/domain/ledger"

	"github.com/shopspring/decimal"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// Epsilon is the tolerance used when comparing ledger totals.
var Epsilon = decimal.RequireFromString("0.0001")

type PostInput struct {
	From        string
	To          string
	Amount      decimal.Decimal
	Category    string
	Subcategory string
	Description string
	LoanID      string
	MatchID     string
}

type Page struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type EntriesPage struct {
	Entries    []ledger.Entry `json:"entries"`
	Limit      int            `json:"limit"`
	Offset     int            `json:"offset"`
	NextOffset *int           `json:"next_offset,omitempty"`
}

type CustodyMismatch struct {
	AccountRef    string          `json:"account_ref"`
	CustodyTotal  decimal.Decimal `json:"custody_total"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
}

type IntegrityReport struct {
	TotalDebits       decimal.Decimal            `json:"total_debits"`
	TotalCredits      decimal.Decimal            `json:"total_credits"`
	Difference        decimal.Decimal            `json:"difference"`
	IsBalanced        bool                       `json:"is_balanced"`
	Balances          map[string]decimal.Decimal `json:"balances"`
	Unpaired          []string                   `json:"unpaired_transactions"`
	CustodyMismatches []CustodyMismatch          `json:"custody_mismatches"`
	CheckedAt         time.Time                  `json:"checked_at"`
}

type AuditRow struct {
	Category string          `json:"category"`
	Status   string          `json:"status"`
	Count    int64           `json:"count"`
	Total    decimal.Decimal `json:"total"`
}

type AuditReport struct {
	Start       time.Time       `json:"start"`
	End         time.Time       `json:"end"`
	Rows        []AuditRow      `json:"rows"`
	TotalCount  int64           `json:"total_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type FinancialReport struct {
	Start            time.Time       `json:"start"`
	End              time.Time       `json:"end"`
	Deposits         decimal.Decimal `json:"deposits"`
	Investments      decimal.Decimal `json:"investments"`
	Disbursements    decimal.Decimal `json:"disbursements"`
	PlatformFees     decimal.Decimal `json:"platform_fees"`
	OtherFees        decimal.Decimal `json:"other_fees"`
	Transfers        decimal.Decimal `json:"transfers"`
	TransactionCount int64           `json:"transaction_count"`
	PlatformRevenue  decimal.Decimal `json:"platform_revenue"`
}
