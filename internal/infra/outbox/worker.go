package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	appoutbox "storefront/internal/app/outbox"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Observer receives one call per relay attempt.
type Observer interface {
	OutboxRelayed(event string, err error)
}

// Worker relays stored records to the broker as CloudEvents. It polls every
// Interval and drains immediately when Wake fires.
type Worker struct {
	Source      appoutbox.Source
	Producer    Producer
	Wake        <-chan struct{}
	Interval    time.Duration
	TopicPrefix string
	EventSource string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger
	Observer    Observer
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Source == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.Wake:
		}
		w.drain(ctx)
	}
}

func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		processed, err := w.processOnce(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.logger().Error("outbox claim failed", "worker", w.ID, "error", err)
			}
			return
		}
		if !processed {
			return
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	rec, err := w.Source.Claim(ctx, w.ID)
	if err != nil || rec == nil {
		return false, err
	}
	payload, headers, err := w.formatPayload(rec)
	if err == nil {
		err = w.Producer.Publish(ctx, w.topicFor(rec.Name), rec.Aggregate, payload, headers)
	}
	if w.Observer != nil {
		w.Observer.OutboxRelayed(rec.Name, err)
	}
	if err != nil {
		w.logger().Warn("outbox publish failed", "event", rec.Name, "id", rec.ID, "attempts", rec.Attempts+1, "error", err)
		if markErr := w.Source.MarkFailed(ctx, rec.ID, w.nextRetry(rec.Attempts), err.Error()); markErr != nil {
			return false, markErr
		}
		return true, nil
	}
	return true, w.Source.MarkSent(ctx, rec.ID)
}

func (w *Worker) formatPayload(rec *appoutbox.Pending) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(rec.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              rec.ID,
		"type":            rec.Name + ".v1",
		"source":          w.source(),
		"subject":         rec.Aggregate,
		"time":            rec.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := rec.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce_id":        rec.ID,
		"ce_type":      rec.Name + ".v1",
	}
	for k, v := range rec.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	topic := base + ".events.v1"
	if w.TopicPrefix != "" {
		topic = w.TopicPrefix + topic
	}
	return topic
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.EventSource != "" {
		return w.EventSource
	}
	return "app://storefront/chat"
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
