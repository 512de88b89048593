package http

import (
	"context"
	"errors"
	"net/http"

	"edufund-backend/internal/domain/custody"
	"edufund-backend/internal/domain/ledger"
	"edufund-backend/internal/domain/loan"
	"edufund-backend/internal/domain/match"
	"edufund-backend/internal/domain/offer"
	"edufund-backend/internal/domain/uow"
	"edufund-backend/internal/usecase/origination"
	"edufund-backend/internal/usecase/settlement"

	"github.com/labstack/echo/v4"
)

var statusTable = []struct {
	status int
	errs   []error
}{
	{http.StatusInternalServerError, []error{ledger.ErrIntegrityViolation, custody.ErrIntegrityViolation}},
	{http.StatusServiceUnavailable, []error{settlement.ErrStoreUnavailable, settlement.ErrSettlementHalted, origination.ErrScoringUnavailable, uow.ErrConflict, context.DeadlineExceeded}},
	{http.StatusNotFound, []error{loan.ErrNotFound, offer.ErrNotFound, match.ErrNotFound, custody.ErrNotFound}},
	{http.StatusConflict, []error{loan.ErrNotPending, match.ErrDuplicate, loan.ErrInvalidTransition, settlement.ErrInvalidSettlementState}},
	{http.StatusUnprocessableEntity, []error{
		settlement.ErrCapacityExceeded, settlement.ErrRateMismatch, settlement.ErrTermMismatch,
		settlement.ErrInvalidAmount, settlement.ErrNotSettled,
		custody.ErrInsufficientFunds, custody.ErrInsufficientBlocked, custody.ErrInvalidAmount,
		custody.ErrSameAccount, custody.ErrInvalidRef,
		ledger.ErrInsufficientFunds, ledger.ErrInvalidAmount, ledger.ErrSameAccount,
	}},
	{http.StatusBadRequest, []error{origination.ErrInvalidInput}},
}

// StatusFor maps a usecase error onto its HTTP status.
func StatusFor(err error) int {
	for _, row := range statusTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return row.status
			}
		}
	}
	return http.StatusInternalServerError
}

func writeError(c echo.Context, err error) error {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError && !errors.Is(err, ledger.ErrIntegrityViolation) && !errors.Is(err, custody.ErrIntegrityViolation) {
		msg = "internal error"
	}
	return c.JSON(status, ErrorResponse{Error: msg})
}

// bind writes the 400 itself; callers return err when ok is false.
func bind(c echo.Context, req any) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}
	return true, nil
}
