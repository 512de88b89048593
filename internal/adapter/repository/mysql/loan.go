package mysql

import (
	"context"
	"time"

	loanDomain "edufund-backend/internal/domain/loan"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

func (r *LoanRepository) Create(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *LoanRepository) GetByLoanID(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	if err := r.db.WithContext(ctx).Where("loan_id = ?", loanID).First(&out).Error; err != nil {
		return nil, notFound(loanDomain.ErrNotFound, err)
	}
	return &out, nil
}

func (r *LoanRepository) GetByID(ctx context.Context, id uint64) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	if err := r.db.WithContext(ctx).First(&out, id).Error; err != nil {
		return nil, notFound(loanDomain.ErrNotFound, err)
	}
	return &out, nil
}

func (r *LoanRepository) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("loan_id = ?", loanID).
		First(&out).Error
	if err != nil {
		return nil, notFound(loanDomain.ErrNotFound, err)
	}
	return &out, nil
}

// effectiveRateSQL mirrors loan.EffectiveRate. The float bound carries rateSlack so rows on
// the boundary survive to the exact decimal check in the matching engine.
const effectiveRateSQL = "annual_spread + 12 * monthly_custody_fee + 12.0 * origination_fee / term_months"

var rateSlack = decimal.New(1, -6)

func (r *LoanRepository) ListFundable(ctx context.Context, q loanDomain.FundableQuery) ([]loanDomain.Loan, error) {
	tx := r.db.WithContext(ctx).
		Where("status = ? AND amount_funded < amount AND term_months > 0 AND term_months <= ?", loanDomain.StatusPending, q.MaxTerm).
		Where(effectiveRateSQL+" >= ?", q.MinRate.Sub(rateSlack).InexactFloat64())
	if q.ExcludeOfferID != 0 {
		tx = tx.Where("NOT EXISTS (SELECT 1 FROM matches WHERE matches.loan_id = loans.id AND matches.offer_id = ?)", q.ExcludeOfferID)
	}
	if q.AfterID != 0 {
		tx = tx.Where("id > ?", q.AfterID)
	}
	var out []loanDomain.Loan
	err := tx.Order("id ASC").Limit(q.Limit).Find(&out).Error
	return out, err
}

// AddFunded is the compare-and-swap on amount_funded; the guard re-checks capacity in SQL
// so a stale read can never over-fund the loan.
func (r *LoanRepository) AddFunded(ctx context.Context, id uint64, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Model(&loanDomain.Loan{}).
		Where("id = ? AND status = ? AND amount_funded + ? <= amount", id, loanDomain.StatusPending, amount).
		Update("amount_funded", gorm.Expr("amount_funded + ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *LoanRepository) UpdateStatus(ctx context.Context, id uint64, from, to loanDomain.Status) error {
	if !loanDomain.CanTransition(from, to) {
		return loanDomain.ErrInvalidTransition
	}
	res := r.db.WithContext(ctx).Model(&loanDomain.Loan{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "status_updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return loanDomain.ErrInvalidTransition
	}
	return nil
}
