package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain/shared/events"
)

// EventRecord is a serialized domain event waiting to be relayed.
type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// Outbox stages records. Add joins the ambient transaction when the
// implementation supports it; Flush runs after commit.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt().UTC(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{},
	}, nil
}

// RecordDomainEvents encodes evs and adds them to box in order.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	headers := headersFromContext(ctx)
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		for k, v := range headers {
			if _, exists := rec.Headers[k]; !exists {
				rec.Headers[k] = v
			}
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

type headersKey struct{}

// WithHeaders attaches propagation headers (request id, caller) copied onto
// every record recorded under ctx.
func WithHeaders(ctx context.Context, headers map[string]string) context.Context {
	merged := map[string]string{}
	for k, v := range headersFromContext(ctx) {
		merged[k] = v
	}
	for k, v := range headers {
		merged[k] = v
	}
	return context.WithValue(ctx, headersKey{}, merged)
}

func headersFromContext(ctx context.Context) map[string]string {
	h, _ := ctx.Value(headersKey{}).(map[string]string)
	return h
}
