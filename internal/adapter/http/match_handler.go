package http

import (
	"errors"
	"net/http"

	"edufund-backend/internal/usecase/matching"
	"edufund-backend/internal/usecase/settlement"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type MatchHandler struct {
	matching   *matching.Usecase
	settlement *settlement.Usecase
}

func NewMatchHandler(m *matching.Usecase, s *settlement.Usecase) *MatchHandler {
	return &MatchHandler{matching: m, settlement: s}
}

type executeMatchReq struct {
	InvestorID string           `json:"investor_id" validate:"required,max=32"`
	OfferID    string           `json:"offer_id" validate:"required,hex32"`
	LoanID     string           `json:"loan_id" validate:"required,hex32"`
	Amount     decimal.Decimal  `json:"amount" validate:"gt=0,dec2"`
	Rate       *decimal.Decimal `json:"rate,omitempty" validate:"omitempty,gte=0,lte=1"`
}

type settlementEventReq struct {
	Reference string `json:"reference" validate:"max=64"`
	Reason    string `json:"reason" validate:"max=255"`
}

type acceptedResp struct {
	Match           *settlement.ExecuteResult `json:"match"`
	SettlementError string                    `json:"settlement_error"`
	Stage           string                    `json:"stage,omitempty"`
}

func (h *MatchHandler) EligibleLoans(c echo.Context) error {
	out, err := h.matching.FindEligibleLoansForOffer(c.Request().Context(), c.Param("offer_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *MatchHandler) MatchesForOffer(c echo.Context) error {
	out, err := h.matching.FindMatchesForOffer(c.Request().Context(), c.Param("offer_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *MatchHandler) MatchesForLoan(c echo.Context) error {
	out, err := h.matching.FindMatchesForLoan(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Execute commits a match. A committed match whose settlement failed is a 202.
func (h *MatchHandler) Execute(c echo.Context) error {
	var req executeMatchReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	res, err := h.settlement.ExecuteMatch(c.Request().Context(), settlement.ExecuteInput(req))
	var serr *settlement.SettlementError
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, res)
	case res != nil && errors.As(err, &serr):
		return c.JSON(http.StatusAccepted, acceptedResp{Match: res, SettlementError: serr.Err.Error(), Stage: serr.Stage})
	}
	return writeError(c, err)
}

func (h *MatchHandler) ConfirmSettlement(c echo.Context) error {
	var req settlementEventReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	m, err := h.settlement.ConfirmSettlement(c.Request().Context(), c.Param("match_id"), req.Reference)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *MatchHandler) FailSettlement(c echo.Context) error {
	var req settlementEventReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	m, err := h.settlement.FailSettlement(c.Request().Context(), c.Param("match_id"), req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *MatchHandler) RetrySettlement(c echo.Context) error {
	m, err := h.settlement.RetrySettlement(c.Request().Context(), c.Param("match_id"))
	var serr *settlement.SettlementError
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, m)
	case m != nil && errors.As(err, &serr):
		return c.JSON(http.StatusAccepted, map[string]any{"match": m, "settlement_error": serr.Err.Error(), "stage": serr.Stage})
	}
	return writeError(c, err)
}

func (h *MatchHandler) Reconciliation(c echo.Context) error {
	var q struct {
		Limit int `query:"limit"`
	}
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query"})
	}
	out, err := h.settlement.ListPendingReconciliation(c.Request().Context(), q.Limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *MatchHandler) Disburse(c echo.Context) error {
	res, err := h.settlement.DisburseLoan(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *MatchHandler) ResumeSettlement(c echo.Context) error {
	if err := h.settlement.ResumeSettlement(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "resumed"})
}
