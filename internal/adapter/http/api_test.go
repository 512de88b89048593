package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"edufund-backend/internal/adapter/cache"
	paymentsim "edufund-backend/internal/adapter/payment"
	"edufund-backend/internal/adapter/repository/mysql"
	"edufund-backend/internal/domain/custody"
	"edufund-backend/internal/domain/ledger"
	"edufund-backend/internal/domain/loan"
	"edufund-backend/internal/domain/scoring"
	"edufund-backend/internal/domain/uow"
	"edufund-backend/internal/infrastructure/metrics"
	"edufund-backend/internal/testutil/dbtest"
	custodyuc "edufund-backend/internal/usecase/custody"
	ledgeruc "edufund-backend/internal/usecase/ledger"
	"edufund-backend/internal/usecase/matching"
	"edufund-backend/internal/usecase/origination"
	"edufund-backend/internal/usecase/settlement"
	"edufund-backend/pkg/id"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type api struct {
	e    *echo.Echo
	halt *cache.HaltSwitch
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db := dbtest.Open(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m := metrics.New(prometheus.NewRegistry())
	guow := mysql.NewGormUoW(db)
	loans := mysql.NewLoanRepository(db)
	offers := mysql.NewOfferRepository(db)
	matches := mysql.NewMatchRepository(db)
	accounts := mysql.NewAccountRepository(db)
	scoreRepo := mysql.NewScoreRepository(db)
	scores := cache.NewScoreCache(rdb, scoreRepo, time.Hour, nil)
	halt := cache.NewHaltSwitch(rdb, "")

	l := ledgeruc.NewUsecase(mysql.NewEntryRepository(db), accounts, halt, m, nil)
	c := custodyuc.NewUsecase(guow, accounts, l, 3, m, nil)
	pay, err := paymentsim.NewSimulator(paymentsim.ModeConfirm)
	if err != nil {
		t.Fatalf("simulator: %v", err)
	}
	s := settlement.NewUsecase(settlement.Deps{
		UoW: guow, Matches: matches, Loans: loans, Custody: c,
		Gateway: pay, Halt: halt, Metrics: m,
	}, settlement.Config{})
	mt := matching.NewUsecase(loans, offers, matches, scores, matching.Config{}, nil)

	e := echo.New()
	Register(e, Routes{
		Health:      NewHandler(map[string]Check{"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() }}),
		Origination: NewOriginationHandler(origination.NewUsecase(loans, offers, nil, nil).WithScores(scoreRepo, scores)),
		Matches:     NewMatchHandler(mt, s),
		Accounts:    NewAccountHandler(c),
		Ledger:      NewLedgerHandler(l),
		Metrics:     m,
		Redis:       rdb,
		IdempTTL:    time.Hour,
	})
	return &api{e: e, halt: halt}
}

func (a *api) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if method == http.MethodPost {
		req.Header.Set("Ax-Request-Id", id.NewID32())
		req.Header.Set("Ax-Request-At", time.Now().UTC().Format(time.RFC3339))
		req.Header.Set("Ax-Actor-Id", "ops_1")
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func expectCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, want, rec.Body.String())
	}
}

func (a *api) createLoan(t *testing.T, borrower, amount string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/loans", fmt.Sprintf(`{
		"borrower_id":%q,"institution_id":"uni","amount":%s,"term_months":12,
		"annual_spread":0.08,"monthly_custody_fee":0.001,"origination_fee":0.02}`, borrower, amount))
	expectCode(t, rec, http.StatusCreated)
	var l struct {
		LoanID string `json:"loan_id"`
	}
	decodeInto(t, rec, &l)
	return l.LoanID
}

func (a *api) score(t *testing.T, borrower string, value int, band string) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/borrowers/"+borrower+"/score", fmt.Sprintf(`{"score":%d,"risk_band":%q}`, value, band))
	expectCode(t, rec, http.StatusOK)
}

func (a *api) createOffer(t *testing.T, investor, amount string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/offers", fmt.Sprintf(
		`{"investor_id":%q,"amount_available":%s,"term_months":12,"min_rate":0.10}`, investor, amount))
	expectCode(t, rec, http.StatusCreated)
	var o struct {
		OfferID string `json:"offer_id"`
	}
	decodeInto(t, rec, &o)
	return o.OfferID
}

func TestAPI_MatchSettleDisburse(t *testing.T) {
	a := newAPI(t)

	loanID := a.createLoan(t, "b1", "10000")
	a.score(t, "b1", 720, "B")
	offerID := a.createOffer(t, "inv1", "10000")

	rec := a.do(t, http.MethodGet, "/offers/"+offerID+"/eligible-loans", "")
	expectCode(t, rec, http.StatusOK)
	var cands []matching.LoanCandidate
	decodeInto(t, rec, &cands)
	if len(cands) != 1 || cands[0].LoanID != loanID || !cands[0].EffectiveRate.Equal(decimal.RequireFromString("0.112")) {
		t.Fatalf("candidates = %+v", cands)
	}

	rec = a.do(t, http.MethodPost, "/accounts/user_inv1/deposit", `{"amount":10000,"method":"pix"}`)
	expectCode(t, rec, http.StatusOK)

	rec = a.do(t, http.MethodPost, "/matches", fmt.Sprintf(
		`{"investor_id":"inv1","offer_id":%q,"loan_id":%q,"amount":10000}`, offerID, loanID))
	expectCode(t, rec, http.StatusCreated)
	var res settlement.ExecuteResult
	decodeInto(t, rec, &res)
	if res.LoanStatus != loan.StatusMatched || !res.LoanRemaining.IsZero() {
		t.Fatalf("result = %+v", res)
	}

	// the loan is no longer pending
	offer2 := a.createOffer(t, "inv2", "500")
	rec = a.do(t, http.MethodPost, "/matches", fmt.Sprintf(
		`{"investor_id":"inv2","offer_id":%q,"loan_id":%q,"amount":100}`, offer2, loanID))
	expectCode(t, rec, http.StatusConflict)

	rec = a.do(t, http.MethodPost, "/loans/"+loanID+"/disburse", "")
	expectCode(t, rec, http.StatusOK)
	var disb settlement.DisburseResult
	decodeInto(t, rec, &disb)
	if !disb.Fee.Equal(decimal.NewFromInt(200)) || !disb.Net.Equal(decimal.NewFromInt(9800)) {
		t.Fatalf("disburse = %+v", disb)
	}

	rec = a.do(t, http.MethodGet, "/accounts/"+custody.InstitutionRef("uni"), "")
	expectCode(t, rec, http.StatusOK)

	rec = a.do(t, http.MethodGet, "/ledger/accounts/"+custody.PlatformFeesRef+"/balance", "")
	expectCode(t, rec, http.StatusOK)
	var bal struct {
		Balance decimal.Decimal `json:"balance"`
	}
	decodeInto(t, rec, &bal)
	if !bal.Balance.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("platform fee balance = %s", bal.Balance)
	}

	rec = a.do(t, http.MethodGet, "/ledger/categories/"+ledger.CategoryPlatformFee+"/entries?limit=10", "")
	expectCode(t, rec, http.StatusOK)
	var page ledgeruc.EntriesPage
	decodeInto(t, rec, &page)
	if len(page.Entries) != 1 || page.Limit != 10 {
		t.Fatalf("fee entries = %+v", page)
	}

	rec = a.do(t, http.MethodGet, "/ledger/integrity", "")
	expectCode(t, rec, http.StatusOK)

	rec = a.do(t, http.MethodGet, "/reports/financial?start=2000-01-01", "")
	expectCode(t, rec, http.StatusOK)

	rec = a.do(t, http.MethodGet, "/matches/reconciliation", "")
	expectCode(t, rec, http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("reconciliation = %s", rec.Body.String())
	}
}

func TestAPI_RescoreEvictsCachedScore(t *testing.T) {
	a := newAPI(t)
	loanID := a.createLoan(t, "b2", "1000")
	a.score(t, "b2", 720, "B")
	offerID := a.createOffer(t, "inv1", "1000")

	var cands []matching.LoanCandidate
	rec := a.do(t, http.MethodGet, "/offers/"+offerID+"/eligible-loans", "")
	expectCode(t, rec, http.StatusOK)
	decodeInto(t, rec, &cands)
	if len(cands) != 1 || cands[0].LoanID != loanID || cands[0].RiskBand != scoring.BandB {
		t.Fatalf("candidates = %+v", cands)
	}

	// the first scan cached band B; the new band must win immediately
	a.score(t, "b2", 720, "E")
	rec = a.do(t, http.MethodGet, "/offers/"+offerID+"/eligible-loans", "")
	expectCode(t, rec, http.StatusOK)
	cands = nil
	decodeInto(t, rec, &cands)
	if len(cands) != 0 {
		t.Fatalf("rescored borrower still eligible: %+v", cands)
	}

	rec = a.do(t, http.MethodPost, "/borrowers/b2/score", `{"score":720,"risk_band":"Z"}`)
	expectCode(t, rec, http.StatusBadRequest)
}

func TestAPI_RequestErrors(t *testing.T) {
	a := newAPI(t)
	hex := id.NewID32()

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed body", http.MethodPost, "/matches", `{"amount":`, http.StatusBadRequest},
		{"missing investor", http.MethodPost, "/matches", fmt.Sprintf(`{"offer_id":%q,"loan_id":%q,"amount":1}`, hex, hex), http.StatusBadRequest},
		{"too many decimals", http.MethodPost, "/matches", fmt.Sprintf(`{"investor_id":"i","offer_id":%q,"loan_id":%q,"amount":1.005}`, hex, hex), http.StatusBadRequest},
		{"unknown offer", http.MethodPost, "/matches", fmt.Sprintf(`{"investor_id":"i","offer_id":%q,"loan_id":%q,"amount":1}`, hex, hex), http.StatusNotFound},
		{"unknown loan", http.MethodGet, "/loans/" + hex, "", http.StatusNotFound},
		{"unknown match", http.MethodPost, "/matches/" + hex + "/settlement/confirm", `{}`, http.StatusNotFound},
		{"external transfer", http.MethodPost, "/transfers", `{"from":"external_pix","to":"user_a","amount":5}`, http.StatusBadRequest},
		{"unknown source account", http.MethodPost, "/transfers", `{"from":"user_a","to":"user_b","amount":5}`, http.StatusNotFound},
		{"bad window", http.MethodGet, "/reports/audit?start=yesterday", "", http.StatusBadRequest},
		{"inverted window", http.MethodGet, "/reports/audit?start=2024-02-01&end=2024-01-01", "", http.StatusBadRequest},
		{"bad loan", http.MethodPost, "/loans", `{"borrower_id":"b","institution_id":"u","amount":100,"term_months":0}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expectCode(t, a.do(t, tc.method, tc.path, tc.body), tc.want)
		})
	}
}

func TestAPI_MissingIdempotencyHeaders(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/offers", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	expectCode(t, rec, http.StatusBadRequest)
}

func TestAPI_HaltedSettlement(t *testing.T) {
	a := newAPI(t)
	ctx := context.Background()
	loanID := a.createLoan(t, "b1", "1000")

	if err := a.halt.Halt(ctx, "ledger drift"); err != nil {
		t.Fatalf("halt: %v", err)
	}
	rec := a.do(t, http.MethodPost, "/loans/"+loanID+"/disburse", "")
	expectCode(t, rec, http.StatusServiceUnavailable)

	rec = a.do(t, http.MethodPost, "/admin/settlement/resume", "")
	expectCode(t, rec, http.StatusOK)

	// resumed: the loan is simply not matched yet
	rec = a.do(t, http.MethodPost, "/loans/"+loanID+"/disburse", "")
	expectCode(t, rec, http.StatusConflict)
}

func TestAPI_Metrics(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/metrics", "")
	expectCode(t, rec, http.StatusOK)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", loan.ErrNotFound), http.StatusNotFound},
		{loan.ErrNotPending, http.StatusConflict},
		{settlement.ErrCapacityExceeded, http.StatusUnprocessableEntity},
		{custody.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: %w", settlement.ErrStoreUnavailable, uow.ErrConflict), http.StatusServiceUnavailable},
		{settlement.ErrSettlementHalted, http.StatusServiceUnavailable},
		{ledger.ErrIntegrityViolation, http.StatusInternalServerError},
		{origination.ErrInvalidInput, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if err := writeError(c, errors.New("dsn user:secret@tcp")); err != nil {
		t.Fatalf("writeError: %v", err)
	}
	var body ErrorResponse
	decodeInto(t, rec, &body)
	if rec.Code != http.StatusInternalServerError || body.Error != "internal error" {
		t.Fatalf("got %d %+v", rec.Code, body)
	}
}
