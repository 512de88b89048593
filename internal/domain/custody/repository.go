package custody

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	// Ensure inserts a zero-balance account if ref is unknown; safe under concurrency.
	Ensure(ctx context.Context, ref string) error
	GetByRef(ctx context.Context, ref string) (*Account, error)
	GetByRefForUpdate(ctx context.Context, ref string) (*Account, error)
	// Update persists balances guarded by the version the caller read.
	// Returns uow.ErrConflict when the row moved underneath.
	Update(ctx context.Context, a *Account) error
	List(ctx context.Context) ([]Account, error)
	CreateHold(ctx context.Context, h *Hold) error
	// MatchHeld nets the block and unblock holds tagged with a match id on ref: the part of
	// blocked_amount that belongs to match settlement.
	MatchHeld(ctx context.Context, ref string) (decimal.Decimal, error)
}
