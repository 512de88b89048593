package mysql

import (
	"context"
	"fmt"

	matchDomain "edufund-backend/internal/domain/match"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MatchRepository struct{ db *gorm.DB }

func NewMatchRepository(db *gorm.DB) *MatchRepository { return &MatchRepository{db: db} }

func (r *MatchRepository) Create(ctx context.Context, m *matchDomain.Match) error {
	err := r.db.WithContext(ctx).Create(m).Error
	if isDuplicateKey(err) {
		return fmt.Errorf("%w: %w", matchDomain.ErrDuplicate, err)
	}
	return err
}

func (r *MatchRepository) Save(ctx context.Context, m *matchDomain.Match) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *MatchRepository) GetByMatchID(ctx context.Context, matchID string) (*matchDomain.Match, error) {
	var out matchDomain.Match
	if err := r.db.WithContext(ctx).Where("match_id = ?", matchID).First(&out).Error; err != nil {
		return nil, notFound(matchDomain.ErrNotFound, err)
	}
	return &out, nil
}

func (r *MatchRepository) GetByMatchIDForUpdate(ctx context.Context, matchID string) (*matchDomain.Match, error) {
	var out matchDomain.Match
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("match_id = ?", matchID).
		First(&out).Error
	if err != nil {
		return nil, notFound(matchDomain.ErrNotFound, err)
	}
	return &out, nil
}

func (r *MatchRepository) ExistsForPair(ctx context.Context, loanID, offerID uint64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&matchDomain.Match{}).
		Where("loan_id = ? AND offer_id = ?", loanID, offerID).
		Count(&n).Error
	return n > 0, err
}

func (r *MatchRepository) ListByLoan(ctx context.Context, loanID uint64) ([]matchDomain.Match, error) {
	var out []matchDomain.Match
	err := r.db.WithContext(ctx).Where("loan_id = ?", loanID).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *MatchRepository) ListByOffer(ctx context.Context, offerID uint64) ([]matchDomain.Match, error) {
	var out []matchDomain.Match
	err := r.db.WithContext(ctx).Where("offer_id = ?", offerID).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *MatchRepository) ListNeedingReconciliation(ctx context.Context, limit int) ([]matchDomain.Match, error) {
	var out []matchDomain.Match
	err := r.db.WithContext(ctx).
		Where("needs_reconciliation = ?", true).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
