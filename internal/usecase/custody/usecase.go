package custody

import (
	"context"
	"fmt"
	"strings"

	"edufund-backend/internal/domain/custody"
	"edufund-backend/internal/domain/ledger"
	"edufund-backend/internal/domain/uow"
	"edufund-backend/internal/infrastructure/metrics"
	ledgeruc "edufund-backend/internal/usecase/ledger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Usecase owns every write to custody rows. Settlement borrows the *Tx helpers to move
// funds inside its own unit of work.
type Usecase struct {
	uow      uow.UnitOfWork
	accounts custody.Repository
	ledger   *ledgeruc.Usecase
	retries  int
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewUsecase(tx uow.UnitOfWork, accounts custody.Repository, l *ledgeruc.Usecase, retries int, m *metrics.Metrics, log *zap.Logger) *Usecase {
	if log == nil {
		log = zap.NewNop()
	}
	if retries < 1 {
		retries = 1
	}
	return &Usecase{uow: tx, accounts: accounts, ledger: l, retries: retries, metrics: m, log: log}
}

func (u *Usecase) GetOrCreate(ctx context.Context, ref string) (*custody.Account, error) {
	if !custody.ValidRef(ref) {
		return nil, custody.ErrInvalidRef
	}
	if err := u.accounts.Ensure(ctx, ref); err != nil {
		return nil, err
	}
	return u.accounts.GetByRef(ctx, ref)
}

func (u *Usecase) Get(ctx context.Context, ref string) (*custody.Account, error) {
	return u.accounts.GetByRef(ctx, ref)
}

func (u *Usecase) run(ctx context.Context, op string, fn func(r uow.Repos) error) error {
	err := uow.Retry(ctx, u.retries, func() error { return u.uow.WithinTx(ctx, fn) })
	u.metrics.ObserveCustody(op, err)
	return err
}

// Deposit brings money in from outside the platform.
func (u *Usecase) Deposit(ctx context.Context, ref string, amount decimal.Decimal, method string) (*custody.Account, error) {
	if !amount.IsPositive() {
		return nil, custody.ErrInvalidAmount
	}
	if !custody.ValidRef(ref) {
		return nil, custody.ErrInvalidRef
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = DefaultDepositMethod
	}

	var out *custody.Account
	err := u.run(ctx, "deposit", func(r uow.Repos) error {
		if err := r.Accounts.Ensure(ctx, ref); err != nil {
			return err
		}
		a, err := r.Accounts.GetByRefForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		if _, err := u.ledger.Post(ctx, r, ledgeruc.PostInput{
			From:        custody.ExternalRef(method),
			To:          ref,
			Amount:      amount,
			Category:    ledger.CategoryDeposit,
			Subcategory: strings.ToLower(method),
			Description: "deposit via " + method,
		}); err != nil {
			return err
		}
		a.AvailableBalance = a.AvailableBalance.Add(amount)
		a.TotalBalance = a.TotalBalance.Add(amount)
		if err := r.Accounts.Update(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info("custody deposit", zap.String("account_ref", ref), zap.String("amount", amount.String()), zap.String("method", method))
	return out, nil
}

// Block places a manual hold. Holds for matches go through BlockTx inside settlement.
func (u *Usecase) Block(ctx context.Context, ref string, amount decimal.Decimal, reason string) (*custody.Account, error) {
	var out *custody.Account
	err := u.run(ctx, "block", func(r uow.Repos) error {
		a, err := u.BlockTx(ctx, r, ref, amount, reason, "")
		out = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Unblock releases a manual hold. Funds held for match settlement are not releasable here.
func (u *Usecase) Unblock(ctx context.Context, ref string, amount decimal.Decimal, reason string) (*custody.Account, error) {
	var out *custody.Account
	err := u.run(ctx, "unblock", func(r uow.Repos) error {
		a, err := u.unblockTx(ctx, r, ref, amount, reason, "", true)
		out = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *Usecase) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	var out *TransferResult
	err := u.run(ctx, "transfer", func(r uow.Repos) error {
		res, err := u.TransferTx(ctx, r, in)
		out = res
		return err
	})
	if err != nil {
		return nil, err
	}
	u.log.Info("custody transfer",
		zap.String("from", in.From), zap.String("to", in.To),
		zap.String("amount", in.Amount.String()), zap.String("transaction_id", out.TransactionID))
	return out, nil
}

// BlockTx moves amount from available to blocked on ref within r's transaction.
func (u *Usecase) BlockTx(ctx context.Context, r uow.Repos, ref string, amount decimal.Decimal, reason, matchID string) (*custody.Account, error) {
	if !amount.IsPositive() {
		return nil, custody.ErrInvalidAmount
	}
	a, err := r.Accounts.GetByRefForUpdate(ctx, ref)
	if err != nil {
		return nil, err
	}
	if a.AvailableBalance.LessThan(amount) {
		return nil, fmt.Errorf("%w: %s has %s available, needs %s", custody.ErrInsufficientFunds, ref, a.AvailableBalance, amount)
	}
	a.AvailableBalance = a.AvailableBalance.Sub(amount)
	a.BlockedAmount = a.BlockedAmount.Add(amount)
	if err := r.Accounts.Update(ctx, a); err != nil {
		return nil, err
	}
	hold := &custody.Hold{AccountRef: ref, Kind: custody.HoldBlock, Amount: amount, Reason: reason, MatchID: matchID}
	if err := r.Accounts.CreateHold(ctx, hold); err != nil {
		return nil, err
	}
	return a, nil
}

// UnblockTx releases a previously blocked amount back to available.
func (u *Usecase) UnblockTx(ctx context.Context, r uow.Repos, ref string, amount decimal.Decimal, reason, matchID string) (*custody.Account, error) {
	return u.unblockTx(ctx, r, ref, amount, reason, matchID, false)
}

func (u *Usecase) unblockTx(ctx context.Context, r uow.Repos, ref string, amount decimal.Decimal, reason, matchID string, manual bool) (*custody.Account, error) {
	if !amount.IsPositive() {
		return nil, custody.ErrInvalidAmount
	}
	a, err := r.Accounts.GetByRefForUpdate(ctx, ref)
	if err != nil {
		return nil, err
	}
	if a.BlockedAmount.LessThan(amount) {
		return nil, fmt.Errorf("%w: %s has %s blocked, needs %s", custody.ErrInsufficientBlocked, ref, a.BlockedAmount, amount)
	}
	if manual {
		held, err := r.Accounts.MatchHeld(ctx, ref)
		if err != nil {
			return nil, err
		}
		if free := a.BlockedAmount.Sub(held); free.LessThan(amount) {
			return nil, fmt.Errorf("%w: %s has %s blocked outside match settlement, needs %s", custody.ErrInsufficientBlocked, ref, free, amount)
		}
	}
	a.BlockedAmount = a.BlockedAmount.Sub(amount)
	a.AvailableBalance = a.AvailableBalance.Add(amount)
	if err := r.Accounts.Update(ctx, a); err != nil {
		return nil, err
	}
	hold := &custody.Hold{AccountRef: ref, Kind: custody.HoldUnblock, Amount: amount, Reason: reason, MatchID: matchID}
	if err := r.Accounts.CreateHold(ctx, hold); err != nil {
		return nil, err
	}
	return a, nil
}

// TransferTx moves available funds between two custody accounts and posts the ledger pair.
// Rows are locked in ref order so two opposite transfers cannot deadlock.
func (u *Usecase) TransferTx(ctx context.Context, r uow.Repos, in TransferInput) (*TransferResult, error) {
	if !in.Amount.IsPositive() {
		return nil, custody.ErrInvalidAmount
	}
	if in.From == in.To {
		return nil, custody.ErrSameAccount
	}
	if !custody.ValidRef(in.From) || !custody.ValidRef(in.To) {
		return nil, custody.ErrInvalidRef
	}
	if in.Category == "" {
		in.Category = ledger.CategoryTransfer
	}
	if err := r.Accounts.Ensure(ctx, in.To); err != nil {
		return nil, err
	}

	first, second := in.From, in.To
	if second < first {
		first, second = second, first
	}
	locked := make(map[string]*custody.Account, 2)
	for _, ref := range []string{first, second} {
		a, err := r.Accounts.GetByRefForUpdate(ctx, ref)
		if err != nil {
			return nil, err
		}
		locked[ref] = a
	}
	from, to := locked[in.From], locked[in.To]

	if from.AvailableBalance.LessThan(in.Amount) {
		return nil, fmt.Errorf("%w: %s has %s available, needs %s", custody.ErrInsufficientFunds, in.From, from.AvailableBalance, in.Amount)
	}

	txID, err := u.ledger.Post(ctx, r, ledgeruc.PostInput{
		From:        in.From,
		To:          in.To,
		Amount:      in.Amount,
		Category:    in.Category,
		Subcategory: in.Subcategory,
		Description: in.Description,
		LoanID:      in.LoanID,
		MatchID:     in.MatchID,
	})
	if err != nil {
		return nil, err
	}

	from.AvailableBalance = from.AvailableBalance.Sub(in.Amount)
	from.TotalBalance = from.TotalBalance.Sub(in.Amount)
	to.AvailableBalance = to.AvailableBalance.Add(in.Amount)
	to.TotalBalance = to.TotalBalance.Add(in.Amount)
	for _, ref := range []string{first, second} {
		if err := r.Accounts.Update(ctx, locked[ref]); err != nil {
			return nil, err
		}
	}
	return &TransferResult{TransactionID: txID, From: *from, To: *to}, nil
}
