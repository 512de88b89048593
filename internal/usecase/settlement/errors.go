package settlement

import (
	"context"
	"errors"
	"fmt"

	"edufund-backend/internal/domain/uow"
)

var (
	ErrInvalidAmount          = errors.New("match amount must be positive")
	ErrCapacityExceeded       = errors.New("amount exceeds loan or offer capacity")
	ErrRateMismatch           = errors.New("rate is below the offer's minimum")
	ErrTermMismatch           = errors.New("loan term exceeds the offer's maximum")
	ErrNotSettled             = errors.New("loan has matches that are not settled")
	ErrSettlementFailed       = errors.New("settlement failed")
	ErrSettlementHalted       = errors.New("settlement is halted")
	ErrPaymentRejected        = errors.New("payment rejected")
	ErrInvalidSettlementState = errors.New("match is not in a settleable state")
	ErrStoreUnavailable       = errors.New("store unavailable, retry later")
)

// SettlementError reports a failure after the match itself committed.
// It matches ErrSettlementFailed and its cause with errors.Is.
type SettlementError struct {
	MatchID string
	Stage   string
	Err     error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement of match %s failed at %s: %v", e.MatchID, e.Stage, e.Err)
}

func (e *SettlementError) Unwrap() []error { return []error{ErrSettlementFailed, e.Err} }

// storeErr turns exhausted optimistic retries and store deadlines into ErrStoreUnavailable.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, uow.ErrConflict) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
