package http

import (
	"net/http"

	custodyuc "edufund-backend/internal/usecase/custody"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type AccountHandler struct {
	custody *custodyuc.Usecase
}

func NewAccountHandler(u *custodyuc.Usecase) *AccountHandler {
	return &AccountHandler{custody: u}
}

type depositReq struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0,dec2"`
	Method string          `json:"method" validate:"max=32"`
}

type holdReq struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0,dec2"`
	Reason string          `json:"reason" validate:"max=255"`
}

type transferReq struct {
	From        string          `json:"from" validate:"required,acctref"`
	To          string          `json:"to" validate:"required,acctref"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0,dec2"`
	Description string          `json:"description" validate:"max=255"`
}

func (h *AccountHandler) Get(c echo.Context) error {
	acc, err := h.custody.Get(c.Request().Context(), c.Param("ref"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, acc)
}

func (h *AccountHandler) Deposit(c echo.Context) error {
	var req depositReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	acc, err := h.custody.Deposit(c.Request().Context(), c.Param("ref"), req.Amount, req.Method)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, acc)
}

func (h *AccountHandler) Block(c echo.Context) error {
	var req holdReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	acc, err := h.custody.Block(c.Request().Context(), c.Param("ref"), req.Amount, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, acc)
}

func (h *AccountHandler) Unblock(c echo.Context) error {
	var req holdReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	acc, err := h.custody.Unblock(c.Request().Context(), c.Param("ref"), req.Amount, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, acc)
}

func (h *AccountHandler) Transfer(c echo.Context) error {
	var req transferReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	res, err := h.custody.Transfer(c.Request().Context(), custodyuc.TransferInput{
		From:        req.From,
		To:          req.To,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
