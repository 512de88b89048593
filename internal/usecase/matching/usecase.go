package matching

import (
	"context"
	"errors"
	"sort"

	"edufund-backend/internal/domain/loan"
	"edufund-backend/internal/domain/match"
	"edufund-backend/internal/domain/offer"
	"edufund-backend/internal/domain/scoring"

	"go.uber.org/zap"
)

// Usecase selects compatible loan/offer pairs. It never writes.
type Usecase struct {
	loans   loan.Repository
	offers  offer.Repository
	matches match.Repository
	scores  scoring.Provider
	cfg     Config
	log     *zap.Logger
}

func NewUsecase(loans loan.Repository, offers offer.Repository, matches match.Repository, scores scoring.Provider, cfg Config, log *zap.Logger) *Usecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{loans: loans, offers: offers, matches: matches, scores: scores, cfg: cfg.withDefaults(), log: log}
}

// eligibleScore returns the borrower's score when it passes the risk filter, nil otherwise.
func (u *Usecase) eligibleScore(ctx context.Context, borrowerID string) (*scoring.Score, error) {
	s, err := u.scores.GetScore(ctx, borrowerID)
	if errors.Is(err, scoring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !s.Eligible(u.cfg.MinScore) {
		return nil, nil
	}
	return s, nil
}

func (u *Usecase) FindEligibleLoansForOffer(ctx context.Context, offerID string) ([]LoanCandidate, error) {
	o, err := u.offers.GetByOfferID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	out := []LoanCandidate{}
	if !o.HasCapital() {
		return out, nil
	}

	existing, err := u.matches.ListByOffer(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	matched := make(map[uint64]bool, len(existing))
	for _, m := range existing {
		matched[m.LoanID] = true
	}

	// Page by id until ScanLimit candidates survive the score filter or the scan runs dry.
	q := loan.FundableQuery{MaxTerm: o.TermMonths, MinRate: o.MinRate, ExcludeOfferID: o.ID, Limit: u.cfg.ScanLimit}
	scanned := 0
	for len(out) < u.cfg.ScanLimit {
		loans, err := u.loans.ListFundable(ctx, q)
		if err != nil {
			return nil, err
		}
		scanned += len(loans)
		for i := range loans {
			if len(out) == u.cfg.ScanLimit {
				break
			}
			c, err := u.loanCandidate(ctx, o, &loans[i], matched)
			if err != nil {
				return nil, err
			}
			if c != nil {
				out = append(out, *c)
			}
		}
		if len(loans) < q.Limit || loans[len(loans)-1].ID <= q.AfterID {
			break
		}
		q.AfterID = loans[len(loans)-1].ID
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RiskBand.Rank() != b.RiskBand.Rank() {
			return a.RiskBand.Rank() < b.RiskBand.Rank()
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.id < b.id
	})

	u.log.Debug("eligible loans for offer", zap.String("offer_id", offerID), zap.Int("scanned", scanned), zap.Int("eligible", len(out)))
	return out, nil
}

// loanCandidate applies the offer's filters to one loan. nil means the loan is not eligible.
func (u *Usecase) loanCandidate(ctx context.Context, o *offer.Offer, l *loan.Loan, matched map[uint64]bool) (*LoanCandidate, error) {
	if matched[l.ID] || l.Status != loan.StatusPending || l.TermMonths > o.TermMonths {
		return nil, nil
	}
	remaining := l.Remaining()
	if !remaining.IsPositive() {
		return nil, nil
	}
	rate := l.EffectiveRate()
	if rate.LessThan(o.MinRate) {
		return nil, nil
	}
	s, err := u.eligibleScore(ctx, l.BorrowerID)
	if err != nil || s == nil {
		return nil, err
	}
	return &LoanCandidate{
		LoanID:        l.LoanID,
		BorrowerID:    l.BorrowerID,
		Amount:        l.Amount,
		AmountFunded:  l.AmountFunded,
		Remaining:     remaining,
		TermMonths:    l.TermMonths,
		EffectiveRate: rate,
		Score:         s.Value,
		RiskBand:      s.Band,
		MaxInvestable: minDec(remaining, o.AmountAvailable),
		CreatedAt:     l.CreatedAt,
		id:            l.ID,
	}, nil
}

func (u *Usecase) FindMatchesForOffer(ctx context.Context, offerID string) ([]LoanCandidate, error) {
	out, err := u.FindEligibleLoansForOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if len(out) > u.cfg.AutoMatchLimit {
		out = out[:u.cfg.AutoMatchLimit]
	}
	return out, nil
}

func (u *Usecase) FindMatchesForLoan(ctx context.Context, loanID string) ([]OfferCandidate, error) {
	l, err := u.loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	out := []OfferCandidate{}
	remaining := l.Remaining()
	if l.Status != loan.StatusPending || !remaining.IsPositive() {
		return out, nil
	}
	s, err := u.eligibleScore(ctx, l.BorrowerID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return out, nil
	}

	rate := l.EffectiveRate()
	offers, err := u.offers.ListActiveForLoan(ctx, l.TermMonths, rate, l.ID, u.cfg.ScanLimit)
	if err != nil {
		return nil, err
	}
	existing, err := u.matches.ListByLoan(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	matched := make(map[uint64]bool, len(existing))
	for _, m := range existing {
		matched[m.OfferID] = true
	}

	for i := range offers {
		o := &offers[i]
		if matched[o.ID] || !o.HasCapital() || o.TermMonths < l.TermMonths || o.MinRate.GreaterThan(rate) {
			continue
		}
		out = append(out, OfferCandidate{
			OfferID:         o.OfferID,
			InvestorID:      o.InvestorID,
			AmountAvailable: o.AmountAvailable,
			TermMonths:      o.TermMonths,
			MinRate:         o.MinRate,
			MaxInvestable:   minDec(remaining, o.AmountAvailable),
			CreatedAt:       o.CreatedAt,
			id:              o.ID,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.AmountAvailable.Equal(b.AmountAvailable) {
			return a.AmountAvailable.GreaterThan(b.AmountAvailable)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.id < b.id
	})
	if len(out) > u.cfg.AutoMatchLimit {
		out = out[:u.cfg.AutoMatchLimit]
	}
	return out, nil
}
