package mysql

import (
	"context"

	ledgerDomain "edufund-backend/internal/domain/ledger"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const sumLegs = "COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE 0 END), 0) AS credits, " +
	"COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE 0 END), 0) AS debits"

type EntryRepository struct{ db *gorm.DB }

func NewEntryRepository(db *gorm.DB) *EntryRepository { return &EntryRepository{db: db} }

func within(db *gorm.DB, w ledgerDomain.Window) *gorm.DB {
	if !w.Start.IsZero() {
		db = db.Where("created_at >= ?", w.Start)
	}
	if !w.End.IsZero() {
		db = db.Where("created_at <= ?", w.End)
	}
	return db
}

func (r *EntryRepository) CreatePair(ctx context.Context, debit, credit *ledgerDomain.Entry) error {
	return r.db.WithContext(ctx).Create([]*ledgerDomain.Entry{debit, credit}).Error
}

func (r *EntryRepository) BalanceOf(ctx context.Context, accountRef string) (decimal.Decimal, error) {
	var row ledgerDomain.AccountBalance
	err := r.db.WithContext(ctx).Model(&ledgerDomain.Entry{}).
		Select(sumLegs, ledgerDomain.Credit, ledgerDomain.Debit).
		Where("account_ref = ? AND status = ?", accountRef, ledgerDomain.StatusCompleted).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Balance(), nil
}

func (r *EntryRepository) ListByAccount(ctx context.Context, accountRef string, limit, offset int) ([]ledgerDomain.Entry, error) {
	var out []ledgerDomain.Entry
	err := r.db.WithContext(ctx).
		Where("account_ref = ?", accountRef).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&out).Error
	return out, err
}

// ListByCategory returns debit legs only, one row per movement.
func (r *EntryRepository) ListByCategory(ctx context.Context, category string, limit, offset int) ([]ledgerDomain.Entry, error) {
	var out []ledgerDomain.Entry
	err := r.db.WithContext(ctx).
		Where("category = ? AND direction = ?", category, ledgerDomain.Debit).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&out).Error
	return out, err
}

func (r *EntryRepository) ListByTransaction(ctx context.Context, transactionID string) ([]ledgerDomain.Entry, error) {
	var out []ledgerDomain.Entry
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *EntryRepository) Totals(ctx context.Context, w ledgerDomain.Window) (decimal.Decimal, decimal.Decimal, error) {
	var row ledgerDomain.AccountBalance
	q := r.db.WithContext(ctx).Model(&ledgerDomain.Entry{}).
		Select(sumLegs, ledgerDomain.Credit, ledgerDomain.Debit).
		Where("status = ?", ledgerDomain.StatusCompleted)
	if err := within(q, w).Scan(&row).Error; err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return row.Debits, row.Credits, nil
}

func (r *EntryRepository) AccountBalances(ctx context.Context, w ledgerDomain.Window) ([]ledgerDomain.AccountBalance, error) {
	var out []ledgerDomain.AccountBalance
	q := r.db.WithContext(ctx).Model(&ledgerDomain.Entry{}).
		Select("account_ref, "+sumLegs, ledgerDomain.Credit, ledgerDomain.Debit).
		Where("status = ?", ledgerDomain.StatusCompleted)
	err := within(q, w).Group("account_ref").Order("account_ref ASC").Scan(&out).Error
	return out, err
}

func (r *EntryRepository) UnpairedTransactions(ctx context.Context, w ledgerDomain.Window) ([]string, error) {
	var ids []string
	q := r.db.WithContext(ctx).Model(&ledgerDomain.Entry{})
	err := within(q, w).
		Group("transaction_id").
		Having("SUM(CASE WHEN direction = ? THEN 1 ELSE 0 END) <> 1 OR "+
			"SUM(CASE WHEN direction = ? THEN 1 ELSE 0 END) <> 1 OR "+
			"SUM(CASE WHEN direction = ? THEN amount ELSE -amount END) <> 0",
			ledgerDomain.Debit, ledgerDomain.Credit, ledgerDomain.Debit).
		Pluck("transaction_id", &ids).Error
	return ids, err
}

func (r *EntryRepository) Aggregate(ctx context.Context, w ledgerDomain.Window) ([]ledgerDomain.Aggregate, error) {
	var out []ledgerDomain.Aggregate
	q := r.db.WithContext(ctx).Model(&ledgerDomain.Entry{}).
		Select("category, status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("direction = ?", ledgerDomain.Debit)
	err := within(q, w).Group("category, status").Order("category ASC, status ASC").Scan(&out).Error
	return out, err
}
