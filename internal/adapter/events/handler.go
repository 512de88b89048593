package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"edufund-backend/internal/domain/event"
	"edufund-backend/internal/domain/loan"
	"edufund-backend/internal/domain/offer"
	"edufund-backend/internal/usecase/automation"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type Automation interface {
	OnLoanCreated(ctx context.Context, loanID string) (automation.Summary, error)
	OnOfferCreated(ctx context.Context, offerID string) (automation.Summary, error)
}

// AutomationHandler routes origination events to the automation trigger.
type AutomationHandler struct {
	trigger     Automation
	loansTopic  string
	offersTopic string
	log         *zap.Logger
}

func NewAutomationHandler(trigger Automation, loansTopic, offersTopic string, log *zap.Logger) *AutomationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AutomationHandler{trigger: trigger, loansTopic: loansTopic, offersTopic: offersTopic, log: log}
}

func (h *AutomationHandler) Topics() []string { return []string{h.loansTopic, h.offersTopic} }

func (h *AutomationHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil || len(msg.Value) == 0 {
		return fmt.Errorf("%w: empty kafka message", ErrPoison)
	}

	var (
		sum automation.Summary
		err error
	)
	switch msg.Topic {
	case h.loansTopic:
		var ev event.LoanCreated
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrPoison, msg.Topic, err)
		}
		if err := ev.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrPoison, err)
		}
		sum, err = h.trigger.OnLoanCreated(ctx, ev.LoanID)
	case h.offersTopic:
		var ev event.OfferCreated
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrPoison, msg.Topic, err)
		}
		if err := ev.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrPoison, err)
		}
		sum, err = h.trigger.OnOfferCreated(ctx, ev.OfferID)
	default:
		return fmt.Errorf("%w: unexpected topic %s", ErrPoison, msg.Topic)
	}
	if errors.Is(err, loan.ErrNotFound) || errors.Is(err, offer.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrPoison, err)
	}
	if err != nil {
		return err
	}
	h.log.Info("automation event handled", zap.String("topic", msg.Topic),
		zap.Int("executed", sum.Executed), zap.Int("skipped", sum.Skipped))
	return nil
}
