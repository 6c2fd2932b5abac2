package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/app/middleware"
)

// IdempotencyStore keeps command outcomes; a TTL index on created_at expires
// them (see Client.EnsureIndexes). Reads also skip records older than ttl so
// behaviour does not depend on the TTL monitor's schedule.
type IdempotencyStore struct {
	col *mongo.Collection
	ttl time.Duration
}

func NewIdempotencyStore(db *mongo.Database, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{col: db.Collection(idempotencyCollection), ttl: ttl}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	filter := bson.M{"_id": key}
	if s.ttl > 0 {
		filter["created_at"] = bson.M{"$gte": time.Now().UTC().Add(-s.ttl)}
	}
	var doc idempotencyDocument
	if err := s.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	return doc.toRecord(), true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	doc := idempotencyDocument{
		Key:        rec.Key,
		Payload:    rec.Payload,
		Error:      rec.Error,
		ErrorKind:  rec.ErrorKind,
		ErrorField: rec.ErrorField,
		OccurredAt: rec.OccurredAt,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": rec.Key}, doc, options.Replace().SetUpsert(true))
	return err
}

type idempotencyDocument struct {
	Key        string    `bson:"_id"`
	Payload    []byte    `bson:"payload"`
	Error      string    `bson:"error,omitempty"`
	ErrorKind  string    `bson:"error_kind,omitempty"`
	ErrorField string    `bson:"error_field,omitempty"`
	OccurredAt time.Time `bson:"occurred_at"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (d idempotencyDocument) toRecord() middleware.IdempotencyRecord {
	return middleware.IdempotencyRecord{
		Key:        d.Key,
		Payload:    d.Payload,
		Error:      d.Error,
		ErrorKind:  d.ErrorKind,
		ErrorField: d.ErrorField,
		OccurredAt: d.OccurredAt,
	}
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
