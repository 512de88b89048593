package automation

import (
	"context"
	"errors"

	"edufund-backend/internal/domain/custody"
	"edufund-backend/internal/domain/loan"
	"edufund-backend/internal/domain/match"
	"edufund-backend/internal/domain/offer"
	"edufund-backend/internal/usecase/settlement"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Trigger turns loan and offer creation into match executions.
type Trigger struct {
	finder Finder
	exec   Executor
	offers offer.Repository
	log    *zap.Logger
}

func NewTrigger(finder Finder, exec Executor, offers offer.Repository, log *zap.Logger) *Trigger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Trigger{finder: finder, exec: exec, offers: offers, log: log}
}

// OnOfferCreated invests the new offer into the best eligible loans until it runs dry.
func (t *Trigger) OnOfferCreated(ctx context.Context, offerID string) (Summary, error) {
	sum := Summary{MatchIDs: []string{}}
	o, err := t.offers.GetByOfferID(ctx, offerID)
	if err != nil {
		return sum, err
	}
	cands, err := t.finder.FindMatchesForOffer(ctx, offerID)
	if err != nil {
		return sum, err
	}

	available := o.AmountAvailable
	for _, c := range cands {
		if !available.IsPositive() {
			break
		}
		amount := decimal.Min(c.MaxInvestable, available)
		res, err := t.exec.ExecuteMatch(ctx, settlement.ExecuteInput{
			InvestorID: o.InvestorID,
			OfferID:    offerID,
			LoanID:     c.LoanID,
			Amount:     amount,
		})
		if !t.record(&sum, res, err, c.LoanID, offerID) {
			if skippable(err) {
				continue
			}
			return sum, err
		}
		available = res.OfferAvailable
	}
	t.log.Info("offer automation finished", zap.String("offer_id", offerID),
		zap.Int("executed", sum.Executed), zap.Int("skipped", sum.Skipped))
	return sum, nil
}

// OnLoanCreated fills the new loan from the largest compatible offers.
func (t *Trigger) OnLoanCreated(ctx context.Context, loanID string) (Summary, error) {
	sum := Summary{MatchIDs: []string{}}
	cands, err := t.finder.FindMatchesForLoan(ctx, loanID)
	if err != nil {
		return sum, err
	}

	var remaining *decimal.Decimal
	for _, c := range cands {
		amount := c.MaxInvestable
		if remaining != nil {
			if !remaining.IsPositive() {
				break
			}
			amount = decimal.Min(amount, *remaining)
		}
		res, err := t.exec.ExecuteMatch(ctx, settlement.ExecuteInput{
			InvestorID: c.InvestorID,
			OfferID:    c.OfferID,
			LoanID:     loanID,
			Amount:     amount,
		})
		if !t.record(&sum, res, err, loanID, c.OfferID) {
			if skippable(err) {
				continue
			}
			return sum, err
		}
		left := res.LoanRemaining
		remaining = &left
		if res.LoanStatus != loan.StatusPending {
			break
		}
	}
	t.log.Info("loan automation finished", zap.String("loan_id", loanID),
		zap.Int("executed", sum.Executed), zap.Int("skipped", sum.Skipped))
	return sum, nil
}

// record folds one execution into sum and reports whether a match was committed.
func (t *Trigger) record(sum *Summary, res *settlement.ExecuteResult, err error, loanID, offerID string) bool {
	if res != nil {
		sum.Executed++
		sum.MatchIDs = append(sum.MatchIDs, res.Match.MatchID)
		if err != nil {
			sum.SettlementFailures++
			t.log.Warn("auto match needs reconciliation", zap.String("match_id", res.Match.MatchID), zap.Error(err))
		}
		return true
	}
	if skippable(err) {
		sum.Skipped++
		t.log.Debug("auto match skipped", zap.String("loan_id", loanID), zap.String("offer_id", offerID), zap.Error(err))
	}
	return false
}

// skippable errors come from a candidate going stale between scan and execution.
func skippable(err error) bool {
	for _, target := range []error{
		settlement.ErrCapacityExceeded,
		settlement.ErrRateMismatch,
		settlement.ErrTermMismatch,
		settlement.ErrInvalidAmount,
		match.ErrDuplicate,
		loan.ErrNotPending,
		loan.ErrNotFound,
		custody.ErrInsufficientFunds,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Inline runs the trigger in the caller's goroutine. It stands in for the
// broker when Kafka is disabled.
type Inline struct{ T *Trigger }

func (i Inline) LoanCreated(ctx context.Context, loanID string) error {
	_, err := i.T.OnLoanCreated(ctx, loanID)
	return err
}

func (i Inline) OfferCreated(ctx context.Context, offerID string) error {
	_, err := i.T.OnOfferCreated(ctx, offerID)
	return err
}
