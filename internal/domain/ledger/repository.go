package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	// CreatePair inserts both legs of one posting.
	CreatePair(ctx context.Context, debit, credit *Entry) error
	BalanceOf(ctx context.Context, accountRef string) (decimal.Decimal, error)
	ListByAccount(ctx context.Context, accountRef string, limit, offset int) ([]Entry, error)
	ListByCategory(ctx context.Context, category string, limit, offset int) ([]Entry, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]Entry, error)
	Totals(ctx context.Context, w Window) (debits, credits decimal.Decimal, err error)
	AccountBalances(ctx context.Context, w Window) ([]AccountBalance, error)
	// UnpairedTransactions returns transaction ids whose legs are not exactly one debit and
	// one credit of equal amount.
	UnpairedTransactions(ctx context.Context, w Window) ([]string, error)
	Aggregate(ctx context.Context, w Window) ([]Aggregate, error)
}
