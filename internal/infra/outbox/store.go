package outbox

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "storefront/internal/app/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"

	defaultClaimTimeout = time.Minute
)

// Store is the Mongo-backed outbox. Add joins the caller's session, so
// records commit or roll back with the command's transaction.
type Store struct {
	col          *mongo.Collection
	claimTimeout time.Duration
	wake         chan struct{}
	now          func() time.Time
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		col:          db.Collection("app_outbox"),
		claimTimeout: defaultClaimTimeout,
		wake:         make(chan struct{}, 1),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Add(ctx context.Context, record appoutbox.EventRecord) error {
	now := s.now()
	doc := EventDocument{
		ID:          record.ID,
		Name:        record.Name,
		Payload:     record.Payload,
		OccurredAt:  record.OccurredAt,
		Aggregate:   record.Aggregate,
		Headers:     record.Headers,
		State:       stateNew,
		NextAttempt: now,
		CreatedAt:   now,
	}
	_, err := s.col.InsertOne(ctx, doc)
	return err
}

// Flush wakes the relay worker without blocking.
func (s *Store) Flush(context.Context) error {
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *Store) Wake() <-chan struct{} {
	return s.wake
}

type EventDocument struct {
	ID          string            `bson:"_id"`
	Name        string            `bson:"name"`
	Payload     []byte            `bson:"payload"`
	OccurredAt  time.Time         `bson:"occurred_at"`
	Aggregate   string            `bson:"aggregate"`
	Headers     map[string]string `bson:"headers"`
	State       string            `bson:"state"`
	Attempts    int               `bson:"attempts"`
	NextAttempt time.Time         `bson:"next_attempt_at"`
	CreatedAt   time.Time         `bson:"created_at"`
	ClaimedBy   string            `bson:"claimed_by,omitempty"`
	ClaimedAt   time.Time         `bson:"claimed_at,omitempty"`
	SentAt      time.Time         `bson:"sent_at,omitempty"`
	LastError   string            `bson:"last_error,omitempty"`
}

// Claim takes the oldest due record. Records claimed by a worker that died
// before reporting back become claimable again after claimTimeout.
func (s *Store) Claim(ctx context.Context, workerID string) (*appoutbox.Pending, error) {
	now := s.now()
	filter := bson.M{"$or": bson.A{
		bson.M{"state": bson.M{"$in": bson.A{stateNew, stateFailed}}, "next_attempt_at": bson.M{"$lte": now}},
		bson.M{"state": stateClaimed, "claimed_at": bson.M{"$lte": now.Add(-s.claimTimeout)}},
	}}
	update := bson.M{"$set": bson.M{"state": stateClaimed, "claimed_by": workerID, "claimed_at": now}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "next_attempt_at", Value: 1}, {Key: "created_at", Value: 1}})
	var doc EventDocument
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &appoutbox.Pending{
		EventRecord: appoutbox.EventRecord{
			ID:         doc.ID,
			Name:       doc.Name,
			Payload:    doc.Payload,
			OccurredAt: doc.OccurredAt,
			Aggregate:  doc.Aggregate,
			Headers:    doc.Headers,
		},
		Attempts: doc.Attempts,
	}, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"state": stateSent, "sent_at": s.now()}})
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	update := bson.M{
		"$set": bson.M{
			"state":           stateFailed,
			"next_attempt_at": next,
			"last_error":      errMsg,
		},
		"$inc": bson.M{"attempts": 1},
	}
	_, err := s.col.UpdateByID(ctx, id, update)
	return err
}

var (
	_ appoutbox.Outbox = (*Store)(nil)
	_ appoutbox.Source = (*Store)(nil)
)
