package http

import (
	"net/http"
	"time"

	"edufund-backend/internal/domain/ledger"
	ledgeruc "edufund-backend/internal/usecase/ledger"

	"github.com/labstack/echo/v4"
)

type LedgerHandler struct {
	ledger *ledgeruc.Usecase
}

func NewLedgerHandler(u *ledgeruc.Usecase) *LedgerHandler {
	return &LedgerHandler{ledger: u}
}

type windowQuery struct {
	Start string `query:"start"`
	End   string `query:"end"`
}

// parseTime accepts RFC3339 or a bare date; empty means unbounded.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func bindWindow(c echo.Context) (ledger.Window, bool) {
	var q windowQuery
	if err := c.Bind(&q); err != nil {
		return ledger.Window{}, false
	}
	start, err := parseTime(q.Start)
	if err != nil {
		return ledger.Window{}, false
	}
	end, err := parseTime(q.End)
	if err != nil {
		return ledger.Window{}, false
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return ledger.Window{}, false
	}
	return ledger.Window{Start: start, End: end}, true
}

func (h *LedgerHandler) Balance(c echo.Context) error {
	ref := c.Param("ref")
	bal, err := h.ledger.BalanceOf(c.Request().Context(), ref)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"account_ref": ref, "balance": bal})
}

func (h *LedgerHandler) Entries(c echo.Context) error {
	var p ledgeruc.Page
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query"})
	}
	out, err := h.ledger.EntriesFor(c.Request().Context(), c.Param("ref"), p)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LedgerHandler) CategoryEntries(c echo.Context) error {
	var p ledgeruc.Page
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query"})
	}
	out, err := h.ledger.EntriesByCategory(c.Request().Context(), c.Param("category"), p)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LedgerHandler) Integrity(c echo.Context) error {
	w, ok := bindWindow(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid window"})
	}
	rep, err := h.ledger.ValidateIntegrity(c.Request().Context(), w)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *LedgerHandler) AuditReport(c echo.Context) error {
	w, ok := bindWindow(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid window"})
	}
	rep, err := h.ledger.AuditReport(c.Request().Context(), w.Start, w.End)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *LedgerHandler) FinancialReport(c echo.Context) error {
	w, ok := bindWindow(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid window"})
	}
	rep, err := h.ledger.FinancialReport(c.Request().Context(), w.Start, w.End)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rep)
}
