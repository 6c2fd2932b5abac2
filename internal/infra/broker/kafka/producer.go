package kafka

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/IBM/sarama"
)

type Producer struct {
	sync sarama.SyncProducer
}

func NewProducer(brokers []string, cfg *sarama.Config) (*Producer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Timeout = 10 * time.Second
	cfg.Net.MaxOpenRequests = 1
	sync, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}
	return &Producer{sync: sync}, nil
}

func (p *Producer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := p.sync.SendMessage(newMessage(topic, key, payload, headers))
	return err
}

func newMessage(topic, key string, payload []byte, headers map[string]string) *sarama.ProducerMessage {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	hs := make([]sarama.RecordHeader, 0, len(keys))
	for _, k := range keys {
		hs = append(hs, sarama.RecordHeader{Key: []byte(k), Value: []byte(headers[k])})
	}
	return &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(payload),
		Headers: hs,
	}
}

func (p *Producer) Close() error {
	if p.sync == nil {
		return nil
	}
	return p.sync.Close()
}
