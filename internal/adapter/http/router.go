package http

import (
	"time"

	"edufund-backend/internal/adapter/middleware"
	"edufund-backend/internal/infrastructure/metrics"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Routes struct {
	Health      *Handler
	Origination *OriginationHandler
	Matches     *MatchHandler
	Accounts    *AccountHandler
	Ledger      *LedgerHandler
	Metrics     *metrics.Metrics
	// Redis backs the idempotency keys on mutating routes; nil disables them.
	Redis    *redis.Client
	IdempTTL time.Duration
	Log      *zap.Logger
}

func Register(e *echo.Echo, r Routes) {
	e.Validator = NewValidator()

	idem := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	if r.Redis != nil {
		idem = middleware.IdempotencyMiddleware(r.Redis, r.IdempTTL, r.Log)
	}

	e.GET("/health", r.Health.Health)
	if r.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(r.Metrics.Handler()))
	}

	e.POST("/loans", r.Origination.CreateLoan, idem)
	e.GET("/loans/:loan_id", r.Origination.GetLoan)
	e.GET("/loans/:loan_id/matches", r.Matches.MatchesForLoan)
	e.POST("/loans/:loan_id/disburse", r.Matches.Disburse, idem)

	e.POST("/offers", r.Origination.CreateOffer, idem)
	e.GET("/offers/:offer_id", r.Origination.GetOffer)
	e.GET("/offers/:offer_id/eligible-loans", r.Matches.EligibleLoans)
	e.GET("/offers/:offer_id/matches", r.Matches.MatchesForOffer)

	e.POST("/borrowers/:borrower_id/score", r.Origination.UpsertScore, idem)

	e.POST("/matches", r.Matches.Execute, idem)
	e.GET("/matches/reconciliation", r.Matches.Reconciliation)
	e.POST("/matches/:match_id/settlement/confirm", r.Matches.ConfirmSettlement, idem)
	e.POST("/matches/:match_id/settlement/fail", r.Matches.FailSettlement, idem)
	e.POST("/matches/:match_id/settlement/retry", r.Matches.RetrySettlement, idem)

	e.GET("/accounts/:ref", r.Accounts.Get)
	e.POST("/accounts/:ref/deposit", r.Accounts.Deposit, idem)
	e.POST("/accounts/:ref/block", r.Accounts.Block, idem)
	e.POST("/accounts/:ref/unblock", r.Accounts.Unblock, idem)
	e.POST("/transfers", r.Accounts.Transfer, idem)

	e.GET("/ledger/accounts/:ref/balance", r.Ledger.Balance)
	e.GET("/ledger/accounts/:ref/entries", r.Ledger.Entries)
	e.GET("/ledger/categories/:category/entries", r.Ledger.CategoryEntries)
	e.GET("/ledger/integrity", r.Ledger.Integrity)
	e.GET("/reports/audit", r.Ledger.AuditReport)
	e.GET("/reports/financial", r.Ledger.FinancialReport)

	e.POST("/admin/settlement/resume", r.Matches.ResumeSettlement, idem)
}
