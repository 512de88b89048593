package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// ErrPoison marks a message that can never be processed; it is committed past.
var ErrPoison = errors.New("unprocessable message")

const (
	handleAttempts = 5
	handleBackoff  = 250 * time.Millisecond
)

type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error
}

type Consumer struct {
	group sarama.ConsumerGroup
	log   *zap.Logger
}

func NewConsumer(brokers []string, groupID string, log *zap.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka consumer group required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_7_0_0
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Group.Session.Timeout = 30 * time.Second
	cfg.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}
	return &Consumer{group: group, log: log}, nil
}

// Consume blocks until ctx is done, rejoining the group after rebalances and errors.
func (c *Consumer) Consume(ctx context.Context, topics []string, handler MessageHandler) error {
	if handler == nil {
		return fmt.Errorf("message handler required")
	}
	h := &groupHandler{handler: handler, log: c.log, attempts: handleAttempts, backoff: handleBackoff}
	go func() {
		for err := range c.group.Errors() {
			c.log.Warn("kafka group error", zap.Error(err))
		}
	}()
	for {
		if err := c.group.Consume(ctx, topics, h); err != nil {
			c.log.Error("kafka consume error", zap.Error(err))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(2 * time.Second)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	if c.group == nil {
		return nil
	}
	return c.group.Close()
}

type groupHandler struct {
	handler  MessageHandler
	log      *zap.Logger
	attempts int
	backoff  time.Duration
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks a message only once it is handled or poison. A message that keeps
// failing ends the claim unmarked so the group rebalances and redelivers it.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.handle(session.Context(), msg); err != nil {
			return err
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

func (h *groupHandler) handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	attempts := max(h.attempts, 1)
	wait := h.backoff
	for attempt := 1; ; attempt++ {
		err := h.handler.HandleMessage(ctx, msg)
		if err == nil {
			return nil
		}
		fields := []zap.Field{
			zap.String("topic", msg.Topic), zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset), zap.Int("attempt", attempt), zap.Error(err),
		}
		if errors.Is(err, ErrPoison) {
			h.log.Error("kafka message dropped", fields...)
			return nil
		}
		if attempt >= attempts {
			h.log.Error("kafka message handler gave up", fields...)
			return fmt.Errorf("handle %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
		}
		h.log.Warn("kafka message handler error, retrying", fields...)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}
