package uow

import (
	"context"
	"errors"
	"testing"
)

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		attempts  int
		failures  int
		failWith  error
		wantCalls int
		wantErr   error
	}{
		{name: "succeeds first try", attempts: 3, wantCalls: 1},
		{name: "retries conflicts then succeeds", attempts: 3, failures: 2, failWith: ErrConflict, wantCalls: 3},
		{name: "gives up after attempts", attempts: 2, failures: 5, failWith: ErrConflict, wantCalls: 2, wantErr: ErrConflict},
		{name: "other errors are not retried", attempts: 3, failures: 5, failWith: errors.New("boom"), wantCalls: 1},
		{name: "zero attempts still runs once", attempts: 0, wantCalls: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), tt.attempts, func() error {
				calls++
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("want err %v, got %v", tt.wantErr, err)
			}
			if tt.failWith != nil && tt.failures >= tt.wantCalls && err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}

func TestRetry_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, 5, func() error {
		calls++
		return ErrConflict
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
