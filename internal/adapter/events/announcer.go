package events

import (
	"context"

	"edufund-backend/internal/domain/event"
)

type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, value any) (int32, int64, error)
}

// Announcer publishes origination events for the automation consumer.
type Announcer struct {
	pub         Publisher
	loansTopic  string
	offersTopic string
}

func NewAnnouncer(pub Publisher, loansTopic, offersTopic string) *Announcer {
	return &Announcer{pub: pub, loansTopic: loansTopic, offersTopic: offersTopic}
}

func (a *Announcer) LoanCreated(ctx context.Context, loanID string) error {
	env, err := event.NewEnvelope(event.TypeLoanCreated, 1, loanID)
	if err != nil {
		return err
	}
	_, _, err = a.pub.PublishJSON(ctx, a.loansTopic, loanID, event.LoanCreated{Envelope: env, LoanID: loanID})
	return err
}

func (a *Announcer) OfferCreated(ctx context.Context, offerID string) error {
	env, err := event.NewEnvelope(event.TypeOfferCreated, 1, offerID)
	if err != nil {
		return err
	}
	_, _, err = a.pub.PublishJSON(ctx, a.offersTopic, offerID, event.OfferCreated{Envelope: env, OfferID: offerID})
	return err
}
