package loan

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEffectiveRate(t *testing.T) {
	tests := []struct {
		name                 string
		spread, custody, fee string
		term                 int
		want                 string
	}{
		{"twelve months", "0.08", "0.001", "0.02", 12, "0.112"},
		{"six months", "0.08", "0.001", "0.02", 6, "0.132"},
		{"no fees", "0.1", "0", "0", 24, "0.1"},
		{"repeating fraction rounds", "0", "0", "0.01", 7, "0.017143"},
		{"zero term skips the fee", "0.05", "0.001", "0.02", 0, "0.062"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveRate(d(tt.spread), d(tt.custody), d(tt.fee), tt.term)
			if !got.Equal(d(tt.want)) {
				t.Fatalf("EffectiveRate = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRemainingAndFullyFunded(t *testing.T) {
	l := &Loan{Amount: d("1000"), AmountFunded: d("400")}
	if !l.Remaining().Equal(d("600")) || l.FullyFunded() {
		t.Fatalf("partial loan: remaining=%s", l.Remaining())
	}
	l.AmountFunded = d("1200")
	if !l.Remaining().IsZero() || !l.FullyFunded() {
		t.Fatalf("over-funded loan should report zero remaining")
	}
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusMatched}:     true,
		{StatusPending, StatusRejected}:    true,
		{StatusMatched, StatusDisbursed}:   true,
		{StatusDisbursed, StatusDefaulted}: true,
	}
	all := []Status{StatusPending, StatusMatched, StatusDisbursed, StatusRejected, StatusDefaulted}
	for _, from := range all {
		for _, to := range all {
			if got := CanTransition(from, to); got != allowed[[2]Status{from, to}] {
				t.Errorf("CanTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
}
