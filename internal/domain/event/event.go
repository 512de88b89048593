package event

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeLoanCreated   = "loan.created"
	TypeOfferCreated  = "offer.created"
	TypeMatchExecuted = "match.executed"
)

var (
	ErrMissingType    = errors.New("event_type is required")
	ErrBadVersion     = errors.New("event_version must be positive")
	ErrMissingID      = errors.New("event_id is required")
	ErrMissingTime    = errors.New("timestamp is required")
	ErrMissingPayload = errors.New("event payload is incomplete")
)

type Envelope struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	EventVersion  int       `json:"event_version"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

func NewEnvelope(eventType string, version int, correlationID string) (Envelope, error) {
	if eventType == "" {
		return Envelope{}, ErrMissingType
	}
	if version <= 0 {
		return Envelope{}, ErrBadVersion
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  version,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}, nil
}

func (e Envelope) Validate() error {
	switch {
	case e.EventID == "":
		return ErrMissingID
	case e.EventType == "":
		return ErrMissingType
	case e.EventVersion <= 0:
		return ErrBadVersion
	case e.Timestamp.IsZero():
		return ErrMissingTime
	}
	return nil
}

// LoanCreated is emitted by origination once a loan is open for funding.
type LoanCreated struct {
	Envelope
	LoanID string `json:"loan_id"`
}

func (e LoanCreated) Validate() error {
	if err := e.Envelope.Validate(); err != nil {
		return err
	}
	if e.LoanID == "" {
		return ErrMissingPayload
	}
	return nil
}

// OfferCreated is emitted by origination once an investor commits capital.
type OfferCreated struct {
	Envelope
	OfferID string `json:"offer_id"`
}

func (e OfferCreated) Validate() error {
	if err := e.Envelope.Validate(); err != nil {
		return err
	}
	if e.OfferID == "" {
		return ErrMissingPayload
	}
	return nil
}

type MatchExecuted struct {
	Envelope
	MatchID          string          `json:"match_id"`
	LoanID           string          `json:"loan_id"`
	OfferID          string          `json:"offer_id"`
	InvestorID       string          `json:"investor_id"`
	Amount           decimal.Decimal `json:"amount"`
	Rate             decimal.Decimal `json:"rate"`
	LoanStatus       string          `json:"loan_status"`
	OfferStatus      string          `json:"offer_status"`
	SettlementStatus string          `json:"settlement_status"`
}
