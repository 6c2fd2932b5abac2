package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "storefront/internal/app/outbox"
)

const defaultOutboxCapacity = 10000

type outboxEntry struct {
	record      appoutbox.EventRecord
	attempts    int
	nextAttempt time.Time
	claimed     bool
	lastError   string
}

// Outbox buffers event records for the relay worker. Records added inside a
// write unit are only visible after that unit commits. When full, the oldest
// undelivered record is dropped.
type Outbox struct {
	mu       sync.Mutex
	entries  []*outboxEntry
	capacity int
	dropped  int
	wake     chan struct{}
}

func NewOutbox(capacity int) *Outbox {
	if capacity <= 0 {
		capacity = defaultOutboxCapacity
	}
	return &Outbox{capacity: capacity, wake: make(chan struct{}, 1)}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if u, ok := unitFromContext(ctx); ok {
		if u.readOnly {
			return ErrReadOnly
		}
		u.staged = append(u.staged, record)
		return nil
	}
	o.enqueue(record)
	return nil
}

// Flush wakes the relay worker without blocking.
func (o *Outbox) Flush(context.Context) error {
	select {
	case o.wake <- struct{}{}:
	default:
	}
	return nil
}

// Wake signals that new records may be available.
func (o *Outbox) Wake() <-chan struct{} {
	return o.wake
}

func (o *Outbox) enqueue(records ...appoutbox.EventRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	for _, rec := range records {
		if len(o.entries) >= o.capacity {
			o.entries = o.entries[1:]
			o.dropped++
		}
		o.entries = append(o.entries, &outboxEntry{record: rec, nextAttempt: now})
	}
}

func (o *Outbox) Claim(_ context.Context, _ string) (*appoutbox.Pending, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	for _, e := range o.entries {
		if e.claimed || e.nextAttempt.After(now) {
			continue
		}
		e.claimed = true
		return &appoutbox.Pending{EventRecord: e.record, Attempts: e.attempts}, nil
	}
	return nil, nil
}

func (o *Outbox) MarkSent(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, e := range o.entries {
		if e.record.ID == id {
			o.entries = append(o.entries[:i], o.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (o *Outbox) MarkFailed(_ context.Context, id string, next time.Time, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.entries {
		if e.record.ID == id {
			e.claimed = false
			e.attempts++
			e.nextAttempt = next
			e.lastError = reason
			return nil
		}
	}
	return nil
}

// Pending returns a copy of undelivered records in insertion order.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, e.record)
	}
	return out
}

// Dropped reports how many records were evicted because the buffer was full.
func (o *Outbox) Dropped() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

var (
	_ appoutbox.Outbox = (*Outbox)(nil)
	_ appoutbox.Source = (*Outbox)(nil)
)
