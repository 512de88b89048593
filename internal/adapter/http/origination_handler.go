package http

import (
	"net/http"

	"edufund-backend/internal/domain/scoring"
	"edufund-backend/internal/usecase/origination"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type OriginationHandler struct{ uc *origination.Usecase }

func NewOriginationHandler(uc *origination.Usecase) *OriginationHandler {
	return &OriginationHandler{uc: uc}
}

type createLoanReq struct {
	BorrowerID     string          `json:"borrower_id" validate:"required,max=32"`
	InstitutionID  string          `json:"institution_id" validate:"required,max=32"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0,dec2"`
	TermMonths     int             `json:"term_months" validate:"gte=1,lte=360"`
	AnnualSpread   decimal.Decimal `json:"annual_spread" validate:"gte=0,lte=1"`
	MonthlyCustody decimal.Decimal `json:"monthly_custody_fee" validate:"gte=0,lte=1"`
	OriginationFee decimal.Decimal `json:"origination_fee" validate:"gte=0,lte=1"`
}

type createOfferReq struct {
	InvestorID      string          `json:"investor_id" validate:"required,max=32"`
	AmountAvailable decimal.Decimal `json:"amount_available" validate:"gt=0,dec2"`
	TermMonths      int             `json:"term_months" validate:"gte=1,lte=360"`
	MinRate         decimal.Decimal `json:"min_rate" validate:"gte=0,lte=1"`
}

type upsertScoreReq struct {
	Score    int    `json:"score" validate:"gte=0,lte=1000"`
	RiskBand string `json:"risk_band" validate:"required,oneof=A B C D E"`
}

func (h *OriginationHandler) CreateLoan(c echo.Context) error {
	var req createLoanReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	l, err := h.uc.CreateLoan(c.Request().Context(), origination.CreateLoanInput(req))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *OriginationHandler) GetLoan(c echo.Context) error {
	l, err := h.uc.GetLoan(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *OriginationHandler) CreateOffer(c echo.Context) error {
	var req createOfferReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	o, err := h.uc.CreateOffer(c.Request().Context(), origination.CreateOfferInput(req))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *OriginationHandler) GetOffer(c echo.Context) error {
	o, err := h.uc.GetOffer(c.Request().Context(), c.Param("offer_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OriginationHandler) UpsertScore(c echo.Context) error {
	var req upsertScoreReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	s, err := h.uc.UpsertScore(c.Request().Context(), origination.UpsertScoreInput{
		BorrowerID: c.Param("borrower_id"),
		Score:      req.Score,
		RiskBand:   scoring.RiskBand(req.RiskBand),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}
