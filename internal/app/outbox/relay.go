package outbox

import (
	"context"
	"time"
)

// Pending is a stored record claimed by a relay worker.
type Pending struct {
	EventRecord
	Attempts int
}

// Source is the durable side of the outbox as seen by the relay worker.
// Claim returns nil when nothing is due.
type Source interface {
	Claim(ctx context.Context, workerID string) (*Pending, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, reason string) error
}
