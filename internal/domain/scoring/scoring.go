package scoring

import (
	"context"
	"errors"
	"time"
)

// RiskBand runs from A (lowest risk) to E (highest risk tier).
type RiskBand string

const (
	BandA RiskBand = "A"
	BandB RiskBand = "B"
	BandC RiskBand = "C"
	BandD RiskBand = "D"
	BandE RiskBand = "E"

	HighestRisk = BandE
)

var ErrNotFound = errors.New("borrower score not found")

// Rank orders bands by risk; unknown bands rank after every known one.
func (b RiskBand) Rank() int {
	switch b {
	case BandA:
		return 0
	case BandB:
		return 1
	case BandC:
		return 2
	case BandD:
		return 3
	case BandE:
		return 4
	}
	return 5
}

func (b RiskBand) Known() bool { return b.Rank() < 5 }

// Score is the read-only output of the external scoring engine.
type Score struct {
	BorrowerID string    `gorm:"primaryKey;size:32;column:borrower_id" json:"borrower_id"`
	Value      int       `gorm:"column:score;not null" json:"score"`
	Band       RiskBand  `gorm:"column:risk_band;size:1;not null" json:"risk_band"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Score) TableName() string { return "borrower_scores" }

// Eligible applies the capital-safety filter: score strictly above minScore and
// band below the highest-risk tier. A nil score never qualifies.
func (s *Score) Eligible(minScore int) bool {
	if s == nil {
		return false
	}
	return s.Value > minScore && s.Band.Known() && s.Band != HighestRisk
}

type Provider interface {
	// GetScore returns ErrNotFound when the borrower has not been scored.
	GetScore(ctx context.Context, borrowerID string) (*Score, error)
}
