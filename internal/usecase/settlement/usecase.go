package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"edufund-backend/internal/domain/custody"
	"edufund-backend/internal/domain/event"
	"edufund-backend/internal/domain/ledger"
	"edufund-backend/internal/domain/loan"
	"edufund-backend/internal/domain/match"
	"edufund-backend/internal/domain/offer"
	"edufund-backend/internal/domain/payment"
	"edufund-backend/internal/domain/uow"
	"edufund-backend/internal/infrastructure/metrics"
	custodyuc "edufund-backend/internal/usecase/custody"
	"edufund-backend/pkg/id"

	"go.uber.org/zap"
)

// Switch reports whether the integrity job has halted settlement.
type Switch interface {
	Halted(ctx context.Context) (bool, string, error)
	Resume(ctx context.Context) error
}

type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, value any) (int32, int64, error)
}

type Deps struct {
	UoW       uow.UnitOfWork
	Matches   match.Repository
	Loans     loan.Repository
	Custody   *custodyuc.Usecase
	Gateway   payment.Gateway
	Halt      Switch
	Publisher Publisher
	Metrics   *metrics.Metrics
	Log       *zap.Logger
}

type Usecase struct {
	uow     uow.UnitOfWork
	matches match.Repository
	loans   loan.Repository
	custody *custodyuc.Usecase
	gateway payment.Gateway
	halt    Switch
	pub     Publisher
	cfg     Config
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewUsecase(d Deps, cfg Config) *Usecase {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MatchesTopic == "" {
		cfg.MatchesTopic = DefaultMatchesTopic
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{
		uow:     d.UoW,
		matches: d.Matches,
		loans:   d.Loans,
		custody: d.Custody,
		gateway: d.Gateway,
		halt:    d.Halt,
		pub:     d.Publisher,
		cfg:     cfg,
		metrics: d.Metrics,
		log:     log,
	}
}

func (u *Usecase) tx(ctx context.Context, fn func(r uow.Repos) error) error {
	return storeErr(uow.Retry(ctx, u.cfg.MaxRetries, func() error { return u.uow.WithinTx(ctx, fn) }))
}

// ExecuteMatch commits a match and then settles it. A non-nil result with a
// *SettlementError means the match stands but its funds still need attention.
func (u *Usecase) ExecuteMatch(ctx context.Context, in ExecuteInput) (*ExecuteResult, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	start := time.Now()
	var res *ExecuteResult
	err := uow.Retry(ctx, u.cfg.MaxRetries, func() error {
		res = nil
		return u.uow.WithinMatchTx(ctx, in.LoanID, in.OfferID, func(r uow.Repos, l *loan.Loan, o *offer.Offer) error {
			var err error
			res, err = u.commit(ctx, r, in, l, o)
			return err
		})
	})
	err = storeErr(err)
	u.metrics.ObserveMatch(outcome(err), time.Since(start))
	if err != nil {
		u.log.Info("match rejected",
			zap.String("loan_id", in.LoanID), zap.String("offer_id", in.OfferID),
			zap.String("amount", in.Amount.String()), zap.Error(err))
		return nil, err
	}

	u.log.Info("match committed",
		zap.String("match_id", res.Match.MatchID),
		zap.String("loan_id", res.LoanID), zap.String("offer_id", res.OfferID),
		zap.String("amount", res.Match.AmountMatched.String()),
		zap.String("loan_status", string(res.LoanStatus)), zap.String("offer_status", string(res.OfferStatus)))

	serr := u.settle(ctx, res.Match, res.LoanID)
	u.publish(ctx, res)
	if serr != nil {
		u.log.Warn("match committed but settlement failed", zap.String("match_id", res.Match.MatchID), zap.Error(serr))
		return res, serr
	}
	return res, nil
}

// commit re-validates under the loan and offer locks and applies both CAS updates.
func (u *Usecase) commit(ctx context.Context, r uow.Repos, in ExecuteInput, l *loan.Loan, o *offer.Offer) (*ExecuteResult, error) {
	if o.InvestorID != in.InvestorID {
		return nil, fmt.Errorf("%w: offer %s for investor %s", offer.ErrNotFound, in.OfferID, in.InvestorID)
	}
	dup, err := r.Matches.ExistsForPair(ctx, l.ID, o.ID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, match.ErrDuplicate
	}
	if l.Status != loan.StatusPending {
		return nil, loan.ErrNotPending
	}
	if !o.HasCapital() || o.AmountAvailable.LessThan(in.Amount) {
		return nil, fmt.Errorf("%w: offer has %s available", ErrCapacityExceeded, o.AmountAvailable)
	}
	if l.Remaining().LessThan(in.Amount) {
		return nil, fmt.Errorf("%w: loan has %s remaining", ErrCapacityExceeded, l.Remaining())
	}
	if l.TermMonths > o.TermMonths {
		return nil, ErrTermMismatch
	}
	rate := l.EffectiveRate()
	if rate.LessThan(o.MinRate) {
		return nil, fmt.Errorf("%w: effective rate %s < %s", ErrRateMismatch, rate, o.MinRate)
	}
	if in.Rate != nil {
		if in.Rate.LessThan(o.MinRate) {
			return nil, fmt.Errorf("%w: rate %s < %s", ErrRateMismatch, in.Rate, o.MinRate)
		}
		rate = *in.Rate
	}

	m := &match.Match{
		MatchID:          id.NewID32(),
		LoanID:           l.ID,
		OfferID:          o.ID,
		InvestorID:       o.InvestorID,
		AmountMatched:    in.Amount,
		Rate:             rate,
		Status:           match.StatusPending,
		SettlementStatus: match.SettlementNone,
	}
	if err := r.Matches.Create(ctx, m); err != nil {
		return nil, err
	}

	ok, err := r.Loans.AddFunded(ctx, l.ID, in.Amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCapacityExceeded
	}
	ok, err = r.Offers.Consume(ctx, o.ID, in.Amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCapacityExceeded
	}

	l.AmountFunded = l.AmountFunded.Add(in.Amount)
	if l.FullyFunded() {
		if err := r.Loans.UpdateStatus(ctx, l.ID, loan.StatusPending, loan.StatusMatched); err != nil {
			return nil, err
		}
		l.Status = loan.StatusMatched
	}
	o.AmountAvailable = o.AmountAvailable.Sub(in.Amount)
	if !o.AmountAvailable.IsPositive() {
		if err := r.Offers.UpdateStatus(ctx, o.ID, offer.StatusExhausted); err != nil {
			return nil, err
		}
		o.Status = offer.StatusExhausted
	}

	return &ExecuteResult{
		Match:          m,
		LoanID:         l.LoanID,
		OfferID:        o.OfferID,
		LoanRemaining:  l.Remaining(),
		LoanStatus:     l.Status,
		OfferAvailable: o.AmountAvailable,
		OfferStatus:    o.Status,
	}, nil
}

func (u *Usecase) halted(ctx context.Context) (bool, string) {
	if u.halt == nil {
		return false, ""
	}
	halted, reason, err := u.halt.Halted(ctx)
	if err != nil {
		// fail closed: no money moves while the switch cannot be read
		u.log.Error("halt switch unavailable", zap.Error(err))
		return true, "halt switch unavailable: " + err.Error()
	}
	return halted, reason
}

// settle runs reserve -> submit -> capture/release for m and keeps m current.
func (u *Usecase) settle(ctx context.Context, m *match.Match, loanPublicID string) error {
	if halted, reason := u.halted(ctx); halted {
		u.flag(ctx, m, "", "settlement halted: "+reason)
		u.metrics.IncSettlement("halted")
		return &SettlementError{MatchID: m.MatchID, Stage: "halt", Err: ErrSettlementHalted}
	}

	investor := custody.UserRef(m.InvestorID)
	err := u.tx(ctx, func(r uow.Repos) error {
		cur, err := r.Matches.GetByMatchIDForUpdate(ctx, m.MatchID)
		if err != nil {
			return err
		}
		if cur.SettlementStatus != match.SettlementNone && cur.SettlementStatus != match.SettlementFailed {
			return ErrInvalidSettlementState
		}
		if _, err := u.custody.BlockTx(ctx, r, investor, cur.AmountMatched, "match:"+cur.MatchID, cur.MatchID); err != nil {
			return err
		}
		cur.SettlementStatus = match.SettlementReserved
		if err := r.Matches.Save(ctx, cur); err != nil {
			return err
		}
		*m = *cur
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrInvalidSettlementState) {
			u.flag(ctx, m, match.SettlementFailed, "reserve: "+err.Error())
		}
		u.metrics.IncSettlement("reserve_failed")
		return &SettlementError{MatchID: m.MatchID, Stage: "reserve", Err: err}
	}

	receipt, err := u.gateway.Submit(ctx, payment.Instruction{
		Amount:      m.AmountMatched,
		From:        investor,
		To:          custody.EscrowRef(loanPublicID),
		Description: "investment in loan " + loanPublicID,
		Reference:   m.MatchID,
	})
	switch {
	case err != nil:
		return u.release(ctx, m, "submit", err)
	case receipt.Status == payment.StatusFailed:
		return u.release(ctx, m, "submit", fmt.Errorf("%w: %s", ErrPaymentRejected, receipt.Message))
	case receipt.Status == payment.StatusPending:
		if err := u.tx(ctx, func(r uow.Repos) error {
			cur, err := r.Matches.GetByMatchIDForUpdate(ctx, m.MatchID)
			if err != nil {
				return err
			}
			cur.SettlementRef = receipt.Reference
			if err := r.Matches.Save(ctx, cur); err != nil {
				return err
			}
			*m = *cur
			return nil
		}); err != nil {
			u.log.Error("failed to record settlement reference", zap.String("match_id", m.MatchID), zap.Error(err))
		}
		u.metrics.IncSettlement("pending")
		return nil
	}

	captured, err := u.capture(ctx, m.MatchID, receipt.Reference)
	if err != nil {
		u.flag(ctx, m, "", "capture: "+err.Error())
		u.metrics.IncSettlement("capture_failed")
		return &SettlementError{MatchID: m.MatchID, Stage: "capture", Err: err}
	}
	*m = *captured
	return nil
}

func (u *Usecase) release(ctx context.Context, m *match.Match, stage string, cause error) error {
	released, err := u.FailSettlement(ctx, m.MatchID, stage+": "+cause.Error())
	if err != nil {
		u.log.Error("failed to release settlement hold", zap.String("match_id", m.MatchID), zap.Error(err))
		u.flag(ctx, m, "", "release: "+err.Error())
	} else {
		*m = *released
	}
	return &SettlementError{MatchID: m.MatchID, Stage: stage, Err: cause}
}

// flag marks the match for reconciliation outside the failed unit of work.
func (u *Usecase) flag(ctx context.Context, m *match.Match, status match.SettlementStatus, reason string) {
	err := u.tx(ctx, func(r uow.Repos) error {
		cur, err := r.Matches.GetByMatchIDForUpdate(ctx, m.MatchID)
		if err != nil {
			return err
		}
		if status != "" {
			cur.SettlementStatus = status
		}
		cur.Flag(reason)
		if err := r.Matches.Save(ctx, cur); err != nil {
			return err
		}
		*m = *cur
		return nil
	})
	if err != nil {
		u.log.Error("failed to flag match for reconciliation", zap.String("match_id", m.MatchID), zap.String("reason", reason), zap.Error(err))
		return
	}
	u.log.Warn("match flagged for reconciliation", zap.String("match_id", m.MatchID), zap.String("reason", reason))
}

// ConfirmSettlement captures a reserved match: the hold is released and the funds move
// to the loan's escrow in one unit of work. Confirming twice is a no-op.
func (u *Usecase) ConfirmSettlement(ctx context.Context, matchID, reference string) (*match.Match, error) {
	if halted, reason := u.halted(ctx); halted {
		return nil, fmt.Errorf("%w: %s", ErrSettlementHalted, reason)
	}
	return u.capture(ctx, matchID, reference)
}

func (u *Usecase) capture(ctx context.Context, matchID, reference string) (*match.Match, error) {
	var out *match.Match
	err := u.tx(ctx, func(r uow.Repos) error {
		m, err := r.Matches.GetByMatchIDForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		switch m.SettlementStatus {
		case match.SettlementConfirmed:
			out = m
			return nil
		case match.SettlementReserved:
		default:
			return fmt.Errorf("%w: match %s is %s", ErrInvalidSettlementState, matchID, m.SettlementStatus)
		}
		l, err := r.Loans.GetByID(ctx, m.LoanID)
		if err != nil {
			return err
		}

		investor := custody.UserRef(m.InvestorID)
		if _, err := u.custody.UnblockTx(ctx, r, investor, m.AmountMatched, "capture:"+m.MatchID, m.MatchID); err != nil {
			return err
		}
		if _, err := u.custody.TransferTx(ctx, r, custodyuc.TransferInput{
			From:        investor,
			To:          custody.EscrowRef(l.LoanID),
			Amount:      m.AmountMatched,
			Description: "investment in loan " + l.LoanID,
			Category:    ledger.CategoryInvestment,
			LoanID:      l.LoanID,
			MatchID:     m.MatchID,
		}); err != nil {
			return err
		}

		m.SettlementStatus = match.SettlementConfirmed
		m.Status = match.StatusCompleted
		if reference != "" {
			m.SettlementRef = reference
		}
		m.NeedsReconciliation = false
		m.ReconciliationReason = ""
		if err := r.Matches.Save(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.metrics.IncSettlement("confirmed")
	u.log.Info("settlement confirmed", zap.String("match_id", matchID), zap.String("reference", out.SettlementRef))
	return out, nil
}

// FailSettlement releases any hold and flags the match. Failing twice is a no-op.
func (u *Usecase) FailSettlement(ctx context.Context, matchID, reason string) (*match.Match, error) {
	if reason == "" {
		reason = "settlement failed"
	}
	var out *match.Match
	err := u.tx(ctx, func(r uow.Repos) error {
		m, err := r.Matches.GetByMatchIDForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		switch m.SettlementStatus {
		case match.SettlementConfirmed:
			return fmt.Errorf("%w: match %s is already confirmed", ErrInvalidSettlementState, matchID)
		case match.SettlementFailed:
			out = m
			return nil
		case match.SettlementReserved:
			investor := custody.UserRef(m.InvestorID)
			if _, err := u.custody.UnblockTx(ctx, r, investor, m.AmountMatched, "release:"+m.MatchID, m.MatchID); err != nil {
				return err
			}
		}
		m.SettlementStatus = match.SettlementFailed
		m.Flag(reason)
		if err := r.Matches.Save(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.metrics.IncSettlement("failed")
	u.log.Warn("settlement failed", zap.String("match_id", matchID), zap.String("reason", reason))
	return out, nil
}

// RetrySettlement re-runs settlement for a match that never reserved or was released.
func (u *Usecase) RetrySettlement(ctx context.Context, matchID string) (*match.Match, error) {
	m, err := u.matches.GetByMatchID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.SettlementStatus != match.SettlementNone && m.SettlementStatus != match.SettlementFailed {
		return nil, fmt.Errorf("%w: match %s is %s", ErrInvalidSettlementState, matchID, m.SettlementStatus)
	}
	l, err := u.loans.GetByID(ctx, m.LoanID)
	if err != nil {
		return nil, err
	}
	if err := u.settle(ctx, m, l.LoanID); err != nil {
		return m, err
	}
	return m, nil
}

func (u *Usecase) ListPendingReconciliation(ctx context.Context, limit int) ([]match.Match, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	out, err := u.matches.ListNeedingReconciliation(ctx, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []match.Match{}
	}
	return out, nil
}

func (u *Usecase) ResumeSettlement(ctx context.Context) error {
	if u.halt == nil {
		return nil
	}
	if err := u.halt.Resume(ctx); err != nil {
		return err
	}
	u.log.Warn("settlement resumed by operator")
	return nil
}

// DisburseLoan pays a fully settled loan out of escrow: the origination fee to the
// platform and the rest to the institution.
func (u *Usecase) DisburseLoan(ctx context.Context, loanID string) (*DisburseResult, error) {
	if halted, reason := u.halted(ctx); halted {
		return nil, fmt.Errorf("%w: %s", ErrSettlementHalted, reason)
	}

	var out *DisburseResult
	err := u.tx(ctx, func(r uow.Repos) error {
		l, err := r.Loans.GetByLoanIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		switch l.Status {
		case loan.StatusMatched:
		case loan.StatusPending:
			return fmt.Errorf("%w: loan %s is still pending", ErrNotSettled, loanID)
		default:
			return fmt.Errorf("%w: loan %s is %s", loan.ErrInvalidTransition, loanID, l.Status)
		}
		if l.InstitutionID == "" {
			return custody.ErrInvalidRef
		}

		ms, err := r.Matches.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		if len(ms) == 0 {
			return ErrNotSettled
		}
		for _, m := range ms {
			if m.SettlementStatus != match.SettlementConfirmed {
				return fmt.Errorf("%w: match %s is %s", ErrNotSettled, m.MatchID, m.SettlementStatus)
			}
		}

		gross := l.AmountFunded
		fee := gross.Mul(l.OriginationFee).Round(2)
		res := &DisburseResult{
			LoanID:         l.LoanID,
			Gross:          gross,
			Fee:            fee,
			Net:            gross.Sub(fee),
			InstitutionRef: custody.InstitutionRef(l.InstitutionID),
		}
		escrow := custody.EscrowRef(l.LoanID)

		if res.Fee.IsPositive() {
			tr, err := u.custody.TransferTx(ctx, r, custodyuc.TransferInput{
				From:        escrow,
				To:          custody.PlatformFeesRef,
				Amount:      res.Fee,
				Description: "origination fee for loan " + l.LoanID,
				Category:    ledger.CategoryPlatformFee,
				Subcategory: "origination",
				LoanID:      l.LoanID,
			})
			if err != nil {
				return err
			}
			res.FeeTransactionID = tr.TransactionID
		}
		if res.Net.IsPositive() {
			tr, err := u.custody.TransferTx(ctx, r, custodyuc.TransferInput{
				From:        escrow,
				To:          res.InstitutionRef,
				Amount:      res.Net,
				Description: "disbursement of loan " + l.LoanID,
				Category:    ledger.CategoryDisbursement,
				LoanID:      l.LoanID,
			})
			if err != nil {
				return err
			}
			res.DisbursementTransactionID = tr.TransactionID
		}

		if err := r.Loans.UpdateStatus(ctx, l.ID, loan.StatusMatched, loan.StatusDisbursed); err != nil {
			return err
		}
		res.Status = loan.StatusDisbursed
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info("loan disbursed",
		zap.String("loan_id", out.LoanID), zap.String("gross", out.Gross.String()),
		zap.String("fee", out.Fee.String()), zap.String("institution", out.InstitutionRef))
	return out, nil
}

func (u *Usecase) publish(ctx context.Context, res *ExecuteResult) {
	if u.pub == nil {
		return
	}
	env, err := event.NewEnvelope(event.TypeMatchExecuted, 1, res.Match.MatchID)
	if err != nil {
		u.log.Error("build match event", zap.Error(err))
		return
	}
	ev := event.MatchExecuted{
		Envelope:         env,
		MatchID:          res.Match.MatchID,
		LoanID:           res.LoanID,
		OfferID:          res.OfferID,
		InvestorID:       res.Match.InvestorID,
		Amount:           res.Match.AmountMatched,
		Rate:             res.Match.Rate,
		LoanStatus:       string(res.LoanStatus),
		OfferStatus:      string(res.OfferStatus),
		SettlementStatus: string(res.Match.SettlementStatus),
	}
	if _, _, err := u.pub.PublishJSON(ctx, u.cfg.MatchesTopic, res.Match.MatchID, ev); err != nil {
		u.log.Warn("publish match event failed", zap.String("match_id", res.Match.MatchID), zap.Error(err))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, match.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "rejected"
	}
}
