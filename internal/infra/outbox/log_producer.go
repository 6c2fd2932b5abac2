package outbox

import (
	"context"
	"log/slog"
)

// LogProducer stands in for Kafka when no brokers are configured; events are
// logged and counted as delivered.
type LogProducer struct {
	Logger *slog.Logger
}

func (p LogProducer) Publish(ctx context.Context, topic string, key string, payload []byte, _ map[string]string) error {
	if p.Logger != nil {
		p.Logger.InfoContext(ctx, "event published", "topic", topic, "key", key, "bytes", len(payload))
	}
	return nil
}
