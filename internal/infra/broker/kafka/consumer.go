package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	logger  *slog.Logger
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: create consumer group: %w", err)
	}
	return &Consumer{group: g, handler: handler, logger: logger}, nil
}

func (c *Consumer) Run(ctx context.Context, topics []string) error {
	for {
		err := c.group.Consume(ctx, topics, consumerGroupHandler{handler: c.handler, logger: c.logger})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type consumerGroupHandler struct {
	handler MessageHandler
	logger  *slog.Logger
}

func (h consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks every message once handled. A failed message is logged
// and skipped; the handler owns redelivery through its inbox.
func (h consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := h.handler.Handle(sess.Context(), message); err != nil && h.logger != nil {
			h.logger.Error("kafka message handling failed",
				"topic", message.Topic,
				"partition", message.Partition,
				"offset", message.Offset,
				"error", err,
			)
		}
		sess.MarkMessage(message, "")
	}
	return nil
}
