package mysql

import (
	"context"

	"edufund-backend/internal/domain/scoring"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScoreRepository stores borrower scores delivered by the external scoring engine.
type ScoreRepository struct{ db *gorm.DB }

func NewScoreRepository(db *gorm.DB) *ScoreRepository { return &ScoreRepository{db: db} }

func (r *ScoreRepository) GetScore(ctx context.Context, borrowerID string) (*scoring.Score, error) {
	var out scoring.Score
	if err := r.db.WithContext(ctx).Where("borrower_id = ?", borrowerID).First(&out).Error; err != nil {
		return nil, notFound(scoring.ErrNotFound, err)
	}
	return &out, nil
}

// Upsert stores the latest score for a borrower.
func (r *ScoreRepository) Upsert(ctx context.Context, s *scoring.Score) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "borrower_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "risk_band", "updated_at"}),
		}).
		Create(s).Error
}
