package origination

import (
	"context"
	"fmt"
	"time"

	"edufund-backend/internal/domain/loan"
	"edufund-backend/internal/domain/offer"
	"edufund-backend/internal/domain/scoring"
	"edufund-backend/pkg/id"

	"go.uber.org/zap"
)

// Usecase is the local stand-in for the external origination service.
type Usecase struct {
	loans    loan.Repository
	offers   offer.Repository
	announce Announcer
	scores   ScoreStore
	cached   ScoreInvalidator
	log      *zap.Logger
}

func NewUsecase(loans loan.Repository, offers offer.Repository, announce Announcer, log *zap.Logger) *Usecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{loans: loans, offers: offers, announce: announce, log: log}
}

// WithScores enables UpsertScore. cached may be nil when scores are read uncached.
func (u *Usecase) WithScores(store ScoreStore, cached ScoreInvalidator) *Usecase {
	u.scores = store
	u.cached = cached
	return u
}

func (u *Usecase) CreateLoan(ctx context.Context, in CreateLoanInput) (*loan.Loan, error) {
	switch {
	case in.BorrowerID == "" || in.InstitutionID == "":
		return nil, fmt.Errorf("%w: borrower and institution are required", ErrInvalidInput)
	case !in.Amount.IsPositive():
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	case in.TermMonths <= 0:
		return nil, fmt.Errorf("%w: term_months must be positive", ErrInvalidInput)
	case in.AnnualSpread.IsNegative() || in.MonthlyCustody.IsNegative() || in.OriginationFee.IsNegative():
		return nil, fmt.Errorf("%w: pricing components cannot be negative", ErrInvalidInput)
	}

	l := &loan.Loan{
		LoanID:          id.NewID32(),
		BorrowerID:      in.BorrowerID,
		InstitutionID:   in.InstitutionID,
		Amount:          in.Amount,
		TermMonths:      in.TermMonths,
		AnnualSpread:    in.AnnualSpread,
		MonthlyCustody:  in.MonthlyCustody,
		OriginationFee:  in.OriginationFee,
		Status:          loan.StatusPending,
		StatusUpdatedAt: time.Now().UTC(),
	}
	if err := u.loans.Create(ctx, l); err != nil {
		return nil, err
	}
	u.log.Info("loan created", zap.String("loan_id", l.LoanID), zap.String("amount", l.Amount.String()))

	if u.announce != nil {
		if err := u.announce.LoanCreated(ctx, l.LoanID); err != nil {
			u.log.Warn("announce loan failed", zap.String("loan_id", l.LoanID), zap.Error(err))
		}
	}
	return l, nil
}

func (u *Usecase) GetLoan(ctx context.Context, loanID string) (*loan.Loan, error) {
	return u.loans.GetByLoanID(ctx, loanID)
}

func (u *Usecase) CreateOffer(ctx context.Context, in CreateOfferInput) (*offer.Offer, error) {
	switch {
	case in.InvestorID == "":
		return nil, fmt.Errorf("%w: investor is required", ErrInvalidInput)
	case !in.AmountAvailable.IsPositive():
		return nil, fmt.Errorf("%w: amount_available must be positive", ErrInvalidInput)
	case in.TermMonths <= 0:
		return nil, fmt.Errorf("%w: term_months must be positive", ErrInvalidInput)
	case in.MinRate.IsNegative():
		return nil, fmt.Errorf("%w: min_rate cannot be negative", ErrInvalidInput)
	}

	o := &offer.Offer{
		OfferID:         id.NewID32(),
		InvestorID:      in.InvestorID,
		AmountAvailable: in.AmountAvailable,
		TermMonths:      in.TermMonths,
		MinRate:         in.MinRate,
		Status:          offer.StatusActive,
	}
	if err := u.offers.Create(ctx, o); err != nil {
		return nil, err
	}
	u.log.Info("offer created", zap.String("offer_id", o.OfferID), zap.String("amount", o.AmountAvailable.String()))

	if u.announce != nil {
		if err := u.announce.OfferCreated(ctx, o.OfferID); err != nil {
			u.log.Warn("announce offer failed", zap.String("offer_id", o.OfferID), zap.Error(err))
		}
	}
	return o, nil
}

func (u *Usecase) GetOffer(ctx context.Context, offerID string) (*offer.Offer, error) {
	return u.offers.GetByOfferID(ctx, offerID)
}

// UpsertScore records the scoring engine's latest verdict and evicts the cached copy so the
// matching engine reads the new value on its next scan.
func (u *Usecase) UpsertScore(ctx context.Context, in UpsertScoreInput) (*scoring.Score, error) {
	switch {
	case in.BorrowerID == "" || len(in.BorrowerID) > 32:
		return nil, fmt.Errorf("%w: borrower_id is required (max 32)", ErrInvalidInput)
	case in.Score < 0 || in.Score > MaxScore:
		return nil, fmt.Errorf("%w: score must be within 0..%d", ErrInvalidInput, MaxScore)
	case !in.RiskBand.Known():
		return nil, fmt.Errorf("%w: unknown risk band %q", ErrInvalidInput, in.RiskBand)
	}
	if u.scores == nil {
		return nil, ErrScoringUnavailable
	}

	s := &scoring.Score{BorrowerID: in.BorrowerID, Value: in.Score, Band: in.RiskBand, UpdatedAt: time.Now().UTC()}
	if err := u.scores.Upsert(ctx, s); err != nil {
		return nil, err
	}
	if u.cached != nil {
		if err := u.cached.Invalidate(ctx, s.BorrowerID); err != nil {
			return nil, fmt.Errorf("evict cached score: %w", err)
		}
	}
	u.log.Info("borrower scored", zap.String("borrower_id", s.BorrowerID), zap.Int("score", s.Value), zap.String("risk_band", string(s.Band)))
	return s, nil
}
