package events

import "time"

// DomainEvent is relayed to other services through the outbox. EventName is
// the CloudEvents type, AggregateID becomes the partition key.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder is embedded by aggregates. Handlers drain it once the
// command's writes succeeded.
type EventRecorder struct {
	recorded []DomainEvent
}

func (r *EventRecorder) Record(ev DomainEvent) {
	if ev != nil {
		r.recorded = append(r.recorded, ev)
	}
}

// PendingEvents returns a copy of what has been recorded so far.
func (r *EventRecorder) PendingEvents() []DomainEvent {
	return append([]DomainEvent{}, r.recorded...)
}

func (r *EventRecorder) DrainEvents() []DomainEvent {
	drained := r.recorded
	r.recorded = nil
	if drained == nil {
		return []DomainEvent{}
	}
	return drained
}
