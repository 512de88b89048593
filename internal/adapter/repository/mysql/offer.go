package mysql

import (
	"context"

	offerDomain "edufund-backend/internal/domain/offer"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OfferRepository struct{ db *gorm.DB }

func NewOfferRepository(db *gorm.DB) *OfferRepository { return &OfferRepository{db: db} }

func (r *OfferRepository) Create(ctx context.Context, o *offerDomain.Offer) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *OfferRepository) GetByOfferID(ctx context.Context, offerID string) (*offerDomain.Offer, error) {
	var out offerDomain.Offer
	if err := r.db.WithContext(ctx).Where("offer_id = ?", offerID).First(&out).Error; err != nil {
		return nil, notFound(offerDomain.ErrNotFound, err)
	}
	return &out, nil
}

func (r *OfferRepository) GetByID(ctx context.Context, id uint64) (*offerDomain.Offer, error) {
	var out offerDomain.Offer
	if err := r.db.WithContext(ctx).First(&out, id).Error; err != nil {
		return nil, notFound(offerDomain.ErrNotFound, err)
	}
	return &out, nil
}

func (r *OfferRepository) GetByOfferIDForUpdate(ctx context.Context, offerID string) (*offerDomain.Offer, error) {
	var out offerDomain.Offer
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("offer_id = ?", offerID).
		First(&out).Error
	if err != nil {
		return nil, notFound(offerDomain.ErrNotFound, err)
	}
	return &out, nil
}

func (r *OfferRepository) ListActiveForLoan(ctx context.Context, termMonths int, effectiveRate decimal.Decimal, excludeLoanID uint64, limit int) ([]offerDomain.Offer, error) {
	tx := r.db.WithContext(ctx).
		Where("status = ? AND amount_available > 0 AND term_months >= ? AND min_rate <= ?",
			offerDomain.StatusActive, termMonths, effectiveRate)
	if excludeLoanID != 0 {
		tx = tx.Where("NOT EXISTS (SELECT 1 FROM matches WHERE matches.offer_id = offers.id AND matches.loan_id = ?)", excludeLoanID)
	}
	var out []offerDomain.Offer
	err := tx.
		Order("amount_available DESC, id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *OfferRepository) Consume(ctx context.Context, id uint64, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Model(&offerDomain.Offer{}).
		Where("id = ? AND status = ? AND amount_available >= ?", id, offerDomain.StatusActive, amount).
		Update("amount_available", gorm.Expr("amount_available - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *OfferRepository) UpdateStatus(ctx context.Context, id uint64, status offerDomain.Status) error {
	return r.db.WithContext(ctx).Model(&offerDomain.Offer{}).
		Where("id = ?", id).
		Update("status", status).Error
}
