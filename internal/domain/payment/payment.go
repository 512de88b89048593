package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

var ErrInvalidMode = errors.New("unknown payment mode")

// Instruction asks the payment rail to move Amount between two custody refs.
type Instruction struct {
	Amount      decimal.Decimal
	From        string
	To          string
	Description string
	Reference   string
}

type Receipt struct {
	Reference string
	Status    Status
	Message   string
}

type Gateway interface {
	Submit(ctx context.Context, in Instruction) (Receipt, error)
}
