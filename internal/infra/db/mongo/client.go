package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	chatsCollection       = "chats"
	messagesCollection    = "chat_messages"
	idempotencyCollection = "app_idempotency"
	outboxCollection      = "app_outbox"
	inboxCollection       = "app_inbox"
	productsCollection    = "catalog_products"
	usersCollection       = "users"
)

type Client struct {
	DB *mongo.Database
}

func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates every index the repositories rely on, including the
// unique partial index that keeps one active chat per pair and product.
func (c *Client) EnsureIndexes(ctx context.Context, idempotencyTTL time.Duration) error {
	for name, models := range indexModels(idempotencyTTL) {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func indexModels(idempotencyTTL time.Duration) map[string][]mongo.IndexModel {
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}
	return map[string][]mongo.IndexModel{
		chatsCollection: {
			{
				Keys: bson.D{{Key: "participant_key", Value: 1}, {Key: "product_id", Value: 1}},
				Options: options.Index().
					SetName("uniq_active_pair_product").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": "active"}),
			},
			{Keys: bson.D{{Key: "participants.user_id", Value: 1}, {Key: "status", Value: 1}, {Key: "last_message_at", Value: -1}, {Key: "seq", Value: -1}}},
		},
		messagesCollection: {
			{Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "seq", Value: 1}}},
		},
		idempotencyCollection: {
			{Keys: bson.D{{Key: "created_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32(idempotencyTTL.Seconds()))},
		},
		outboxCollection: {
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
		},
		inboxCollection: {
			{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
}
