package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"edufund-backend/internal/domain/custody"
	"edufund-backend/internal/domain/ledger"
	"edufund-backend/internal/domain/uow"
	"edufund-backend/internal/infrastructure/metrics"
	"edufund-backend/pkg/id"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Halter stops settlement after an integrity violation.
type Halter interface {
	Halt(ctx context.Context, reason string) error
}

type Usecase struct {
	entries  ledger.Repository
	accounts custody.Repository
	halt     Halter
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewUsecase(entries ledger.Repository, accounts custody.Repository, halt Halter, m *metrics.Metrics, log *zap.Logger) *Usecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{entries: entries, accounts: accounts, halt: halt, metrics: m, log: log}
}

// Post writes one balanced movement inside the caller's unit of work.
func (u *Usecase) Post(ctx context.Context, r uow.Repos, in PostInput) (string, error) {
	if !in.Amount.IsPositive() {
		return "", ledger.ErrInvalidAmount
	}
	if in.From == in.To {
		return "", ledger.ErrSameAccount
	}
	if !custody.IsExternal(in.From) {
		bal, err := r.Entries.BalanceOf(ctx, in.From)
		if err != nil {
			return "", err
		}
		if bal.LessThan(in.Amount) {
			return "", fmt.Errorf("%w: %s has %s, needs %s", ledger.ErrInsufficientFunds, in.From, bal, in.Amount)
		}
	}

	txID := uuid.NewString()
	now := time.Now().UTC()
	leg := func(ref string, dir ledger.Direction) *ledger.Entry {
		return &ledger.Entry{
			EntryID:       id.NewID32(),
			TransactionID: txID,
			AccountRef:    ref,
			Direction:     dir,
			FromAccount:   in.From,
			ToAccount:     in.To,
			Amount:        in.Amount,
			Category:      in.Category,
			Subcategory:   in.Subcategory,
			Description:   in.Description,
			Status:        ledger.StatusCompleted,
			LoanID:        in.LoanID,
			MatchID:       in.MatchID,
			CreatedAt:     now,
		}
	}
	if err := r.Entries.CreatePair(ctx, leg(in.From, ledger.Debit), leg(in.To, ledger.Credit)); err != nil {
		return "", err
	}
	return txID, nil
}

func (u *Usecase) BalanceOf(ctx context.Context, ref string) (decimal.Decimal, error) {
	return u.entries.BalanceOf(ctx, ref)
}

func (u *Usecase) EntriesFor(ctx context.Context, ref string, p Page) (*EntriesPage, error) {
	p = p.normalize()
	out, err := u.entries.ListByAccount(ctx, ref, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	return pageOf(out, p), nil
}

func (u *Usecase) EntriesByCategory(ctx context.Context, category string, p Page) (*EntriesPage, error) {
	p = p.normalize()
	out, err := u.entries.ListByCategory(ctx, category, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	return pageOf(out, p), nil
}

func pageOf(entries []ledger.Entry, p Page) *EntriesPage {
	if entries == nil {
		entries = []ledger.Entry{}
	}
	res := &EntriesPage{Entries: entries, Limit: p.Limit, Offset: p.Offset}
	if len(entries) == p.Limit {
		next := p.Offset + p.Limit
		res.NextOffset = &next
	}
	return res
}

// ValidateIntegrity rebuilds balances from the ledger. Custody rows are compared only
// for an unbounded window, since a slice of history cannot explain a running total.
func (u *Usecase) ValidateIntegrity(ctx context.Context, w ledger.Window) (*IntegrityReport, error) {
	debits, credits, err := u.entries.Totals(ctx, w)
	if err != nil {
		return nil, err
	}
	diff := debits.Sub(credits)
	rep := &IntegrityReport{
		TotalDebits:       debits,
		TotalCredits:      credits,
		Difference:        diff,
		IsBalanced:        diff.Abs().LessThan(Epsilon),
		Balances:          map[string]decimal.Decimal{},
		Unpaired:          []string{},
		CustodyMismatches: []CustodyMismatch{},
		CheckedAt:         time.Now().UTC(),
	}

	balances, err := u.entries.AccountBalances(ctx, w)
	if err != nil {
		return nil, err
	}
	for _, b := range balances {
		rep.Balances[b.AccountRef] = b.Balance()
	}

	unpaired, err := u.entries.UnpairedTransactions(ctx, w)
	if err != nil {
		return nil, err
	}
	rep.Unpaired = append(rep.Unpaired, unpaired...)

	if w.Start.IsZero() && w.End.IsZero() {
		mismatches, err := u.custodyMismatches(ctx, rep.Balances)
		if err != nil {
			return nil, err
		}
		rep.CustodyMismatches = mismatches
	}

	u.metrics.ObserveIntegrity(rep.Err() == nil)
	return rep, nil
}

func (u *Usecase) custodyMismatches(ctx context.Context, balances map[string]decimal.Decimal) ([]CustodyMismatch, error) {
	accounts, err := u.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []CustodyMismatch{}
	seen := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		seen[a.AccountRef] = true
		lb := balances[a.AccountRef]
		if a.Check() != nil || !a.TotalBalance.Sub(lb).Abs().LessThan(Epsilon) {
			out = append(out, CustodyMismatch{AccountRef: a.AccountRef, CustodyTotal: a.TotalBalance, LedgerBalance: lb})
		}
	}
	for ref, lb := range balances {
		if seen[ref] || custody.IsExternal(ref) || lb.Abs().LessThan(Epsilon) {
			continue
		}
		out = append(out, CustodyMismatch{AccountRef: ref, CustodyTotal: decimal.Zero, LedgerBalance: lb})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountRef < out[j].AccountRef })
	return out, nil
}

// Err is nil when the ledger balances, every transaction is paired and custody agrees.
func (r *IntegrityReport) Err() error {
	var problems []error
	if !r.IsBalanced {
		problems = append(problems, fmt.Errorf("debits %s != credits %s", r.TotalDebits, r.TotalCredits))
	}
	if len(r.Unpaired) > 0 {
		problems = append(problems, fmt.Errorf("%d unpaired transactions", len(r.Unpaired)))
	}
	if len(r.CustodyMismatches) > 0 {
		problems = append(problems, fmt.Errorf("%d custody accounts disagree with the ledger", len(r.CustodyMismatches)))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ledger.ErrIntegrityViolation, errors.Join(problems...))
}

// RunAudit validates the whole ledger and halts settlement on any violation.
func (u *Usecase) RunAudit(ctx context.Context) (*IntegrityReport, error) {
	rep, err := u.ValidateIntegrity(ctx, ledger.Window{})
	if err != nil {
		return nil, err
	}
	if verr := rep.Err(); verr != nil {
		u.log.Error("ledger integrity violation",
			zap.String("total_debits", rep.TotalDebits.String()),
			zap.String("total_credits", rep.TotalCredits.String()),
			zap.Strings("unpaired", rep.Unpaired),
			zap.Int("custody_mismatches", len(rep.CustodyMismatches)),
			zap.Error(verr))
		if u.halt != nil {
			if herr := u.halt.Halt(ctx, verr.Error()); herr != nil {
				u.log.Error("failed to set settlement halt", zap.Error(herr))
			}
		}
		return rep, verr
	}
	u.log.Info("ledger integrity ok",
		zap.String("total_debits", rep.TotalDebits.String()),
		zap.Int("accounts", len(rep.Balances)))
	return rep, nil
}

func (u *Usecase) AuditReport(ctx context.Context, start, end time.Time) (*AuditReport, error) {
	aggs, err := u.entries.Aggregate(ctx, ledger.Window{Start: start, End: end})
	if err != nil {
		return nil, err
	}
	rep := &AuditReport{Start: start, End: end, Rows: []AuditRow{}, TotalAmount: decimal.Zero}
	for _, a := range aggs {
		rep.Rows = append(rep.Rows, AuditRow{Category: a.Category, Status: string(a.Status), Count: a.Count, Total: a.Total})
		rep.TotalCount += a.Count
		rep.TotalAmount = rep.TotalAmount.Add(a.Total)
	}
	return rep, nil
}

func (u *Usecase) FinancialReport(ctx context.Context, start, end time.Time) (*FinancialReport, error) {
	aggs, err := u.entries.Aggregate(ctx, ledger.Window{Start: start, End: end})
	if err != nil {
		return nil, err
	}
	rep := &FinancialReport{Start: start, End: end}
	for _, a := range aggs {
		if a.Status != ledger.StatusCompleted {
			continue
		}
		rep.TransactionCount += a.Count
		switch a.Category {
		case ledger.CategoryDeposit:
			rep.Deposits = rep.Deposits.Add(a.Total)
		case ledger.CategoryInvestment:
			rep.Investments = rep.Investments.Add(a.Total)
		case ledger.CategoryDisbursement:
			rep.Disbursements = rep.Disbursements.Add(a.Total)
		case ledger.CategoryPlatformFee:
			rep.PlatformFees = rep.PlatformFees.Add(a.Total)
		case ledger.CategoryFee:
			rep.OtherFees = rep.OtherFees.Add(a.Total)
		case ledger.CategoryTransfer:
			rep.Transfers = rep.Transfers.Add(a.Total)
		}
	}
	rep.PlatformRevenue = rep.PlatformFees.Add(rep.OtherFees)
	return rep, nil
}
