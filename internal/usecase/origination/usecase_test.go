package origination

import (
	"context"
	"errors"
	"testing"

	"edufund-backend/internal/domain/loan"
	"edufund-backend/internal/domain/offer"
	"edufund-backend/internal/domain/scoring"
	"edufund-backend/internal/testutil/loanmock"
	"edufund-backend/internal/testutil/offermock"

	"github.com/shopspring/decimal"
)

type recordingAnnouncer struct {
	loans, offers []string
	err           error
}

func (a *recordingAnnouncer) LoanCreated(_ context.Context, loanID string) error {
	a.loans = append(a.loans, loanID)
	return a.err
}

func (a *recordingAnnouncer) OfferCreated(_ context.Context, offerID string) error {
	a.offers = append(a.offers, offerID)
	return a.err
}

func validLoan() CreateLoanInput {
	return CreateLoanInput{
		BorrowerID:     "b1",
		InstitutionID:  "uni",
		Amount:         decimal.NewFromInt(10000),
		TermMonths:     12,
		AnnualSpread:   decimal.RequireFromString("0.08"),
		MonthlyCustody: decimal.RequireFromString("0.001"),
		OriginationFee: decimal.RequireFromString("0.02"),
	}
}

func TestCreateLoan_Success(t *testing.T) {
	var stored *loan.Loan
	repo := &loanmock.Repo{CreateFn: func(_ context.Context, l *loan.Loan) error {
		stored = l
		return nil
	}}
	ann := &recordingAnnouncer{}
	uc := NewUsecase(repo, &offermock.Repo{}, ann, nil)

	l, err := uc.CreateLoan(context.Background(), validLoan())
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if stored == nil || stored.LoanID != l.LoanID || len(l.LoanID) != 32 {
		t.Fatalf("loan not stored: %+v", l)
	}
	if l.Status != loan.StatusPending || !l.AmountFunded.IsZero() {
		t.Fatalf("unexpected initial state: %+v", l)
	}
	if len(ann.loans) != 1 || ann.loans[0] != l.LoanID {
		t.Fatalf("announced = %v", ann.loans)
	}
}

func TestCreateLoan_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *CreateLoanInput)
	}{
		{"no borrower", func(in *CreateLoanInput) { in.BorrowerID = "" }},
		{"no institution", func(in *CreateLoanInput) { in.InstitutionID = "" }},
		{"zero amount", func(in *CreateLoanInput) { in.Amount = decimal.Zero }},
		{"zero term", func(in *CreateLoanInput) { in.TermMonths = 0 }},
		{"negative fee", func(in *CreateLoanInput) { in.OriginationFee = decimal.NewFromInt(-1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			repo := &loanmock.Repo{CreateFn: func(context.Context, *loan.Loan) error {
				called = true
				return nil
			}}
			in := validLoan()
			tt.mutate(&in)
			_, err := NewUsecase(repo, &offermock.Repo{}, nil, nil).CreateLoan(context.Background(), in)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if called {
				t.Fatal("repository must not be called on invalid input")
			}
		})
	}
}

func TestCreateLoan_AnnounceFailureIsNotFatal(t *testing.T) {
	ann := &recordingAnnouncer{err: errors.New("broker down")}
	uc := NewUsecase(&loanmock.Repo{}, &offermock.Repo{}, ann, nil)
	if _, err := uc.CreateLoan(context.Background(), validLoan()); err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
}

func TestCreateLoan_RepoError(t *testing.T) {
	boom := errors.New("db down")
	ann := &recordingAnnouncer{}
	repo := &loanmock.Repo{CreateFn: func(context.Context, *loan.Loan) error { return boom }}
	_, err := NewUsecase(repo, &offermock.Repo{}, ann, nil).CreateLoan(context.Background(), validLoan())
	if !errors.Is(err, boom) {
		t.Fatalf("expected db error, got %v", err)
	}
	if len(ann.loans) != 0 {
		t.Fatal("failed create must not be announced")
	}
}

func TestCreateOffer(t *testing.T) {
	ann := &recordingAnnouncer{}
	uc := NewUsecase(&loanmock.Repo{}, &offermock.Repo{}, ann, nil)

	o, err := uc.CreateOffer(context.Background(), CreateOfferInput{
		InvestorID: "inv1", AmountAvailable: decimal.NewFromInt(500), TermMonths: 24, MinRate: decimal.RequireFromString("0.1"),
	})
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if o.Status != offer.StatusActive || len(ann.offers) != 1 {
		t.Fatalf("offer=%+v announced=%v", o, ann.offers)
	}

	_, err = uc.CreateOffer(context.Background(), CreateOfferInput{InvestorID: "inv1", TermMonths: 24})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetLoan_NotFound(t *testing.T) {
	repo := &loanmock.Repo{GetByLoanIDFn: func(context.Context, string) (*loan.Loan, error) {
		return nil, loan.ErrNotFound
	}}
	_, err := NewUsecase(repo, &offermock.Repo{}, nil, nil).GetLoan(context.Background(), "x")
	if !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type scoreStore struct {
	stored []*scoring.Score
	err    error
}

func (s *scoreStore) Upsert(_ context.Context, sc *scoring.Score) error {
	s.stored = append(s.stored, sc)
	return s.err
}

type evictions struct {
	keys []string
	err  error
}

func (e *evictions) Invalidate(_ context.Context, borrowerID string) error {
	e.keys = append(e.keys, borrowerID)
	return e.err
}

func TestUpsertScore_StoresThenEvicts(t *testing.T) {
	store, cached := &scoreStore{}, &evictions{}
	uc := NewUsecase(&loanmock.Repo{}, &offermock.Repo{}, nil, nil).WithScores(store, cached)

	s, err := uc.UpsertScore(context.Background(), UpsertScoreInput{BorrowerID: "b1", Score: 710, RiskBand: scoring.BandC})
	if err != nil {
		t.Fatalf("UpsertScore: %v", err)
	}
	if len(store.stored) != 1 || store.stored[0].Value != 710 || store.stored[0].Band != scoring.BandC || s.UpdatedAt.IsZero() {
		t.Fatalf("stored = %+v", store.stored)
	}
	if len(cached.keys) != 1 || cached.keys[0] != "b1" {
		t.Fatalf("evicted = %v", cached.keys)
	}
}

func TestUpsertScore_Errors(t *testing.T) {
	boom := errors.New("db down")
	tests := []struct {
		name    string
		in      UpsertScoreInput
		store   *scoreStore
		cached  *evictions
		wantErr error
		evicted int
	}{
		{"missing borrower", UpsertScoreInput{Score: 700, RiskBand: scoring.BandA}, &scoreStore{}, &evictions{}, ErrInvalidInput, 0},
		{"score above scale", UpsertScoreInput{BorrowerID: "b1", Score: MaxScore + 1, RiskBand: scoring.BandA}, &scoreStore{}, &evictions{}, ErrInvalidInput, 0},
		{"unknown band", UpsertScoreInput{BorrowerID: "b1", Score: 700, RiskBand: "Z"}, &scoreStore{}, &evictions{}, ErrInvalidInput, 0},
		{"store failure skips eviction", UpsertScoreInput{BorrowerID: "b1", Score: 700, RiskBand: scoring.BandA}, &scoreStore{err: boom}, &evictions{}, boom, 0},
		{"eviction failure surfaces", UpsertScoreInput{BorrowerID: "b1", Score: 700, RiskBand: scoring.BandA}, &scoreStore{}, &evictions{err: boom}, boom, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := NewUsecase(&loanmock.Repo{}, &offermock.Repo{}, nil, nil).WithScores(tt.store, tt.cached)
			if _, err := uc.UpsertScore(context.Background(), tt.in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(tt.cached.keys) != tt.evicted {
				t.Fatalf("evictions = %v", tt.cached.keys)
			}
		})
	}
}

func TestUpsertScore_Unconfigured(t *testing.T) {
	uc := NewUsecase(&loanmock.Repo{}, &offermock.Repo{}, nil, nil)
	_, err := uc.UpsertScore(context.Background(), UpsertScoreInput{BorrowerID: "b1", Score: 700, RiskBand: scoring.BandA})
	if !errors.Is(err, ErrScoringUnavailable) {
		t.Fatalf("expected ErrScoringUnavailable, got %v", err)
	}
}
