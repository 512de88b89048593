package custody

import (
	"edufund-backend/internal/domain/custody"

	"github.com/shopspring/decimal"
)

const DefaultDepositMethod = "manual"

type TransferInput struct {
	From        string
	To          string
	Amount      decimal.Decimal
	Description string
	Category    string
	Subcategory string
	LoanID      string
	MatchID     string
}

type TransferResult struct {
	TransactionID string          `json:"transaction_id"`
	From          custody.Account `json:"from"`
	To            custody.Account `json:"to"`
}
