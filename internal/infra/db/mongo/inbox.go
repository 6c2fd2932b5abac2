package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Inbox records consumed event ids per consumer; the unique index on
// (event_id, consumer) turns a redelivery into a duplicate key.
type Inbox struct {
	col      *mongo.Collection
	consumer string
}

func NewInbox(db *mongo.Database, consumer string) *Inbox {
	return &Inbox{col: db.Collection(inboxCollection), consumer: consumer}
}

func (s *Inbox) Seen(ctx context.Context, eventID string) (bool, error) {
	doc := bson.M{"event_id": eventID, "consumer": s.consumer, "received_at": time.Now().UTC()}
	_, err := s.col.InsertOne(ctx, doc)
	if err == nil {
		return false, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return true, nil
	}
	return false, err
}

// Forget removes a record so a failed event can be processed again.
func (s *Inbox) Forget(ctx context.Context, eventID string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"event_id": eventID, "consumer": s.consumer})
	return err
}
