package automation

import (
	"context"
	"errors"
	"testing"

	"edufund-backend/internal/domain/loan"
	"edufund-backend/internal/domain/match"
	"edufund-backend/internal/domain/offer"
	"edufund-backend/internal/testutil/offermock"
	"edufund-backend/internal/usecase/matching"
	"edufund-backend/internal/usecase/settlement"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeFinder struct {
	forOffer []matching.LoanCandidate
	forLoan  []matching.OfferCandidate
	err      error
}

func (f *fakeFinder) FindMatchesForOffer(context.Context, string) ([]matching.LoanCandidate, error) {
	return f.forOffer, f.err
}

func (f *fakeFinder) FindMatchesForLoan(context.Context, string) ([]matching.OfferCandidate, error) {
	return f.forLoan, f.err
}

type fakeExecutor struct {
	fn    func(in settlement.ExecuteInput) (*settlement.ExecuteResult, error)
	calls []settlement.ExecuteInput
}

func (f *fakeExecutor) ExecuteMatch(_ context.Context, in settlement.ExecuteInput) (*settlement.ExecuteResult, error) {
	f.calls = append(f.calls, in)
	return f.fn(in)
}

func offerRepo(available string) *offermock.Repo {
	return &offermock.Repo{
		GetByOfferIDFn: func(_ context.Context, offerID string) (*offer.Offer, error) {
			return &offer.Offer{OfferID: offerID, InvestorID: "inv1", AmountAvailable: dec(available), Status: offer.StatusActive}, nil
		},
	}
}

func TestOnOfferCreated_SpendsOfferAcrossCandidates(t *testing.T) {
	finder := &fakeFinder{forOffer: []matching.LoanCandidate{
		{LoanID: "l1", MaxInvestable: dec("600")},
		{LoanID: "l2", MaxInvestable: dec("1000")},
		{LoanID: "l3", MaxInvestable: dec("1000")},
	}}
	available := dec("1000")
	exec := &fakeExecutor{fn: func(in settlement.ExecuteInput) (*settlement.ExecuteResult, error) {
		available = available.Sub(in.Amount)
		return &settlement.ExecuteResult{
			Match:          &match.Match{MatchID: "m-" + in.LoanID, AmountMatched: in.Amount},
			LoanStatus:     loan.StatusPending,
			OfferAvailable: available,
		}, nil
	}}

	tr := NewTrigger(finder, exec, offerRepo("1000"), nil)
	sum, err := tr.OnOfferCreated(context.Background(), "o1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Executed != 2 || len(exec.calls) != 2 {
		t.Fatalf("executed=%d calls=%d, want 2", sum.Executed, len(exec.calls))
	}
	if !exec.calls[0].Amount.Equal(dec("600")) || !exec.calls[1].Amount.Equal(dec("400")) {
		t.Fatalf("amounts = %s, %s", exec.calls[0].Amount, exec.calls[1].Amount)
	}
	if exec.calls[0].InvestorID != "inv1" || exec.calls[0].OfferID != "o1" {
		t.Fatalf("bad input: %+v", exec.calls[0])
	}
	if len(sum.MatchIDs) != 2 || sum.MatchIDs[1] != "m-l2" {
		t.Fatalf("match ids = %v", sum.MatchIDs)
	}
}

func TestOnOfferCreated_SkipsStaleCandidates(t *testing.T) {
	finder := &fakeFinder{forOffer: []matching.LoanCandidate{
		{LoanID: "gone", MaxInvestable: dec("100")},
		{LoanID: "full", MaxInvestable: dec("100")},
		{LoanID: "ok", MaxInvestable: dec("100")},
	}}
	exec := &fakeExecutor{fn: func(in settlement.ExecuteInput) (*settlement.ExecuteResult, error) {
		switch in.LoanID {
		case "gone":
			return nil, loan.ErrNotPending
		case "full":
			return nil, settlement.ErrCapacityExceeded
		}
		return &settlement.ExecuteResult{Match: &match.Match{MatchID: "m1"}, OfferAvailable: dec("900")}, nil
	}}

	sum, err := NewTrigger(finder, exec, offerRepo("1000"), nil).OnOfferCreated(context.Background(), "o1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Executed != 1 || sum.Skipped != 2 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestOnOfferCreated_SettlementFailureStillCounts(t *testing.T) {
	finder := &fakeFinder{forOffer: []matching.LoanCandidate{{LoanID: "l1", MaxInvestable: dec("100")}}}
	exec := &fakeExecutor{fn: func(settlement.ExecuteInput) (*settlement.ExecuteResult, error) {
		return &settlement.ExecuteResult{Match: &match.Match{MatchID: "m1"}, OfferAvailable: dec("0")},
			&settlement.SettlementError{MatchID: "m1", Stage: "reserve", Err: errors.New("no funds")}
	}}

	sum, err := NewTrigger(finder, exec, offerRepo("100"), nil).OnOfferCreated(context.Background(), "o1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Executed != 1 || sum.SettlementFailures != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestOnOfferCreated_StopsOnStoreError(t *testing.T) {
	finder := &fakeFinder{forOffer: []matching.LoanCandidate{
		{LoanID: "l1", MaxInvestable: dec("100")},
		{LoanID: "l2", MaxInvestable: dec("100")},
	}}
	exec := &fakeExecutor{fn: func(settlement.ExecuteInput) (*settlement.ExecuteResult, error) {
		return nil, settlement.ErrStoreUnavailable
	}}

	_, err := NewTrigger(finder, exec, offerRepo("1000"), nil).OnOfferCreated(context.Background(), "o1")
	if !errors.Is(err, settlement.ErrStoreUnavailable) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(exec.calls))
	}
}

func TestOnOfferCreated_UnknownOffer(t *testing.T) {
	repo := &offermock.Repo{GetByOfferIDFn: func(context.Context, string) (*offer.Offer, error) {
		return nil, offer.ErrNotFound
	}}
	_, err := NewTrigger(&fakeFinder{}, &fakeExecutor{}, repo, nil).OnOfferCreated(context.Background(), "nope")
	if !errors.Is(err, offer.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOnLoanCreated_FillsUntilMatched(t *testing.T) {
	finder := &fakeFinder{forLoan: []matching.OfferCandidate{
		{OfferID: "o1", InvestorID: "a", MaxInvestable: dec("700")},
		{OfferID: "o2", InvestorID: "b", MaxInvestable: dec("1000")},
		{OfferID: "o3", InvestorID: "c", MaxInvestable: dec("1000")},
	}}
	remaining := dec("1000")
	exec := &fakeExecutor{fn: func(in settlement.ExecuteInput) (*settlement.ExecuteResult, error) {
		remaining = remaining.Sub(in.Amount)
		status := loan.StatusPending
		if remaining.IsZero() {
			status = loan.StatusMatched
		}
		return &settlement.ExecuteResult{
			Match:         &match.Match{MatchID: "m-" + in.OfferID},
			LoanRemaining: remaining,
			LoanStatus:    status,
		}, nil
	}}

	sum, err := NewTrigger(finder, exec, &offermock.Repo{}, nil).OnLoanCreated(context.Background(), "l1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Executed != 2 || len(exec.calls) != 2 {
		t.Fatalf("summary = %+v calls=%d", sum, len(exec.calls))
	}
	if exec.calls[1].InvestorID != "b" || !exec.calls[1].Amount.Equal(dec("300")) {
		t.Fatalf("second call = %+v", exec.calls[1])
	}
}

func TestOnLoanCreated_FinderError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewTrigger(&fakeFinder{err: boom}, &fakeExecutor{}, &offermock.Repo{}, nil).OnLoanCreated(context.Background(), "l1")
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestInline_DelegatesToTrigger(t *testing.T) {
	finder := &fakeFinder{forLoan: []matching.OfferCandidate{{OfferID: "o1", InvestorID: "a", MaxInvestable: dec("10")}}}
	exec := &fakeExecutor{fn: func(settlement.ExecuteInput) (*settlement.ExecuteResult, error) {
		return nil, settlement.ErrStoreUnavailable
	}}
	in := Inline{T: NewTrigger(finder, exec, &offermock.Repo{}, nil)}
	if err := in.LoanCreated(context.Background(), "l1"); !errors.Is(err, settlement.ErrStoreUnavailable) {
		t.Fatalf("expected store error, got %v", err)
	}
}
