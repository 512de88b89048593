package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"edufund-backend/internal/adapter/repository/mysql"
	"edufund-backend/internal/domain/custody"
	"edufund-backend/internal/domain/ledger"
	"edufund-backend/internal/domain/uow"
	"edufund-backend/internal/testutil/dbtest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubHalter struct {
	reasons []string
	err     error
}

func (s *stubHalter) Halt(_ context.Context, reason string) error {
	s.reasons = append(s.reasons, reason)
	return s.err
}

type harness struct {
	db    *gorm.DB
	uc    *Usecase
	uow   *mysql.GormUoW
	halt  *stubHalter
	accts *mysql.AccountRepository
}

func newHarness(t *testing.T) harness {
	t.Helper()
	db := dbtest.Open(t)
	halt := &stubHalter{}
	accts := mysql.NewAccountRepository(db)
	return harness{
		db:    db,
		uc:    NewUsecase(mysql.NewEntryRepository(db), accts, halt, nil, nil),
		uow:   mysql.NewGormUoW(db),
		halt:  halt,
		accts: accts,
	}
}

// post writes a movement and mirrors it on custody rows, as the custody usecase would.
func (h harness) post(t *testing.T, in PostInput) string {
	t.Helper()
	var txID string
	err := h.uow.WithinTx(context.Background(), func(r uow.Repos) error {
		var err error
		txID, err = h.uc.Post(context.Background(), r, in)
		if err != nil {
			return err
		}
		for ref, delta := range map[string]decimal.Decimal{in.From: in.Amount.Neg(), in.To: in.Amount} {
			if custody.IsExternal(ref) {
				continue
			}
			if err := r.Accounts.Ensure(context.Background(), ref); err != nil {
				return err
			}
			a, err := r.Accounts.GetByRefForUpdate(context.Background(), ref)
			if err != nil {
				return err
			}
			a.AvailableBalance = a.AvailableBalance.Add(delta)
			a.TotalBalance = a.TotalBalance.Add(delta)
			if err := r.Accounts.Update(context.Background(), a); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return txID
}

func TestPost_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   PostInput
		want error
	}{
		{"zero amount", PostInput{From: "external_bank", To: "user_a", Amount: decimal.Zero}, ledger.ErrInvalidAmount},
		{"negative amount", PostInput{From: "external_bank", To: "user_a", Amount: dec("-1")}, ledger.ErrInvalidAmount},
		{"same account", PostInput{From: "user_a", To: "user_a", Amount: dec("1")}, ledger.ErrSameAccount},
		{"empty source", PostInput{From: "user_a", To: "user_b", Amount: dec("1")}, ledger.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.uow.WithinTx(ctx, func(r uow.Repos) error {
				_, err := h.uc.Post(ctx, r, tt.in)
				return err
			})
			require.ErrorIs(t, err, tt.want)
		})
	}

	page, err := h.uc.EntriesFor(ctx, "user_a", Page{})
	require.NoError(t, err)
	require.Empty(t, page.Entries)
}

func TestPost_WritesPairedLegs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.post(t, PostInput{From: "external_bank", To: "user_a", Amount: dec("100"), Category: ledger.CategoryDeposit})
	txID := h.post(t, PostInput{From: "user_a", To: "user_b", Amount: dec("40"), Category: ledger.CategoryTransfer})

	bal, err := h.uc.BalanceOf(ctx, "user_a")
	require.NoError(t, err)
	require.True(t, bal.Equal(dec("60")), bal.String())

	page, err := h.uc.EntriesFor(ctx, "user_b", Page{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	require.Equal(t, txID, page.Entries[0].TransactionID)
	require.Nil(t, page.NextOffset)

	rep, err := h.uc.ValidateIntegrity(ctx, ledger.Window{})
	require.NoError(t, err)
	require.True(t, rep.IsBalanced)
	require.NoError(t, rep.Err())
	require.True(t, rep.TotalDebits.Equal(dec("140")))
	require.True(t, rep.Balances["user_b"].Equal(dec("40")))
}

func TestEntriesPagination(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		h.post(t, PostInput{From: "external_bank", To: "user_a", Amount: dec("10"), Category: ledger.CategoryDeposit})
	}

	first, err := h.uc.EntriesFor(ctx, "user_a", Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Entries, 2)
	require.NotNil(t, first.NextOffset)
	require.Equal(t, 2, *first.NextOffset)

	last, err := h.uc.EntriesFor(ctx, "user_a", Page{Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, last.Entries, 1)
	require.Nil(t, last.NextOffset)

	huge, err := h.uc.EntriesByCategory(ctx, ledger.CategoryDeposit, Page{Limit: 10_000})
	require.NoError(t, err)
	require.Equal(t, MaxPageLimit, huge.Limit)
	require.Len(t, huge.Entries, 5)
}

func TestRunAudit_HaltsOnCustodyMismatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.post(t, PostInput{From: "external_bank", To: "user_a", Amount: dec("100"), Category: ledger.CategoryDeposit})

	rep, err := h.uc.RunAudit(ctx)
	require.NoError(t, err)
	require.Empty(t, rep.CustodyMismatches)
	require.Empty(t, h.halt.reasons)

	// tamper with the custody row outside the service
	require.NoError(t, h.db.Model(&custody.Account{}).
		Where("account_ref = ?", "user_a").
		Updates(map[string]any{"available_balance": "150", "total_balance": "150"}).Error)

	rep, err = h.uc.RunAudit(ctx)
	require.ErrorIs(t, err, ledger.ErrIntegrityViolation)
	require.Len(t, rep.CustodyMismatches, 1)
	require.Equal(t, "user_a", rep.CustodyMismatches[0].AccountRef)
	require.Len(t, h.halt.reasons, 1)
}

func TestRunAudit_HaltFailureStillReportsViolation(t *testing.T) {
	h := newHarness(t)
	h.halt.err = errors.New("redis down")
	ctx := context.Background()

	// orphan leg: a credit with no matching debit
	require.NoError(t, h.db.Create(&ledger.Entry{
		EntryID: "orphan", TransactionID: "tx-orphan", AccountRef: "user_z", Direction: ledger.Credit,
		FromAccount: "user_y", ToAccount: "user_z", Amount: dec("5"), Category: ledger.CategoryTransfer,
		Status: ledger.StatusCompleted, CreatedAt: time.Now().UTC(),
	}).Error)

	rep, err := h.uc.RunAudit(ctx)
	require.ErrorIs(t, err, ledger.ErrIntegrityViolation)
	require.False(t, rep.IsBalanced)
	require.Equal(t, []string{"tx-orphan"}, rep.Unpaired)
	require.Len(t, h.halt.reasons, 1)
}

func TestReports(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.post(t, PostInput{From: "external_bank", To: "user_inv", Amount: dec("1000"), Category: ledger.CategoryDeposit})
	h.post(t, PostInput{From: "user_inv", To: "escrow_loan_l1", Amount: dec("800"), Category: ledger.CategoryInvestment})
	h.post(t, PostInput{From: "escrow_loan_l1", To: "platform_fees", Amount: dec("16"), Category: ledger.CategoryPlatformFee})
	h.post(t, PostInput{From: "escrow_loan_l1", To: "institution_u1", Amount: dec("784"), Category: ledger.CategoryDisbursement})

	start := time.Now().UTC().Add(-time.Hour)
	end := time.Now().UTC().Add(time.Hour)

	fin, err := h.uc.FinancialReport(ctx, start, end)
	require.NoError(t, err)
	require.True(t, fin.Deposits.Equal(dec("1000")))
	require.True(t, fin.Investments.Equal(dec("800")))
	require.True(t, fin.Disbursements.Equal(dec("784")))
	require.True(t, fin.PlatformFees.Equal(dec("16")))
	require.True(t, fin.PlatformRevenue.Equal(dec("16")))
	require.EqualValues(t, 4, fin.TransactionCount)

	audit, err := h.uc.AuditReport(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, audit.Rows, 4)
	require.EqualValues(t, 4, audit.TotalCount)
	require.True(t, audit.TotalAmount.Equal(dec("2600")))

	empty, err := h.uc.AuditReport(ctx, end, end.Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, empty.Rows)
}
