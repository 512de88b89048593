package mysql

import (
	"context"

	custodyDomain "edufund-backend/internal/domain/custody"
	"edufund-backend/internal/domain/uow"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct{ db *gorm.DB }

func NewAccountRepository(db *gorm.DB) *AccountRepository { return &AccountRepository{db: db} }

func (r *AccountRepository) Ensure(ctx context.Context, ref string) error {
	a := custodyDomain.Account{AccountRef: ref, Status: custodyDomain.StatusActive, Version: 1}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "account_ref"}}, DoNothing: true}).
		Create(&a).Error
}

func (r *AccountRepository) GetByRef(ctx context.Context, ref string) (*custodyDomain.Account, error) {
	var out custodyDomain.Account
	if err := r.db.WithContext(ctx).Where("account_ref = ?", ref).First(&out).Error; err != nil {
		return nil, notFound(custodyDomain.ErrNotFound, err)
	}
	return &out, nil
}

func (r *AccountRepository) GetByRefForUpdate(ctx context.Context, ref string) (*custodyDomain.Account, error) {
	var out custodyDomain.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_ref = ?", ref).
		First(&out).Error
	if err != nil {
		return nil, notFound(custodyDomain.ErrNotFound, err)
	}
	return &out, nil
}

// Update writes the balances only if the row still carries a.Version, then bumps it.
func (r *AccountRepository) Update(ctx context.Context, a *custodyDomain.Account) error {
	if err := a.Check(); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&custodyDomain.Account{}).
		Where("id = ? AND version = ?", a.ID, a.Version).
		Updates(map[string]any{
			"available_balance": a.AvailableBalance,
			"blocked_amount":    a.BlockedAmount,
			"total_balance":     a.TotalBalance,
			"version":           gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return uow.ErrConflict
	}
	a.Version++
	return nil
}

func (r *AccountRepository) List(ctx context.Context) ([]custodyDomain.Account, error) {
	var out []custodyDomain.Account
	err := r.db.WithContext(ctx).Order("account_ref ASC").Find(&out).Error
	return out, err
}

func (r *AccountRepository) CreateHold(ctx context.Context, h *custodyDomain.Hold) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *AccountRepository) MatchHeld(ctx context.Context, ref string) (decimal.Decimal, error) {
	var held decimal.Decimal
	err := r.db.WithContext(ctx).Model(&custodyDomain.Hold{}).
		Select("COALESCE(SUM(CASE WHEN kind = ? THEN amount ELSE -amount END), 0)", custodyDomain.HoldBlock).
		Where("account_ref = ? AND match_id <> ''", ref).
		Row().Scan(&held)
	if err != nil {
		return decimal.Zero, err
	}
	return held.Round(2), nil
}
