package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "storefront/internal/domain/chat"
)

type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection(messagesCollection)}
}

func (r *MessageRepository) Append(ctx context.Context, msg *domainchat.Message) error {
	msg.Seq = nextSeq()
	_, err := r.col.InsertOne(ctx, newMessageDocument(msg))
	return translateError(err)
}

func (r *MessageRepository) ListForChat(ctx context.Context, chatID domainchat.ID, page domainchat.Page) ([]*domainchat.Message, int64, error) {
	filter := bson.M{"chat_id": string(chatID), "deleted": bson.M{"$ne": true}}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, translateError(err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Size))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, translateError(err)
	}
	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, translateError(err)
	}
	out := make([]*domainchat.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toMessage())
	}
	return out, total, nil
}

// MarkReadFor pushes one receipt per unread message; the filter on
// read_by.user_id keeps repeated calls from adding duplicates.
func (r *MessageRepository) MarkReadFor(ctx context.Context, chatID domainchat.ID, readerID string, at time.Time) (int, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{
			"chat_id":         string(chatID),
			"sender_id":       bson.M{"$ne": readerID},
			"read_by.user_id": bson.M{"$ne": readerID},
		},
		bson.M{"$push": bson.M{"read_by": receiptDocument{UserID: readerID, ReadAt: at.UTC()}}},
	)
	if err != nil {
		return 0, translateError(err)
	}
	return int(res.ModifiedCount), nil
}

var _ domainchat.MessageRepository = (*MessageRepository)(nil)

type receiptDocument struct {
	UserID string    `bson:"user_id"`
	ReadAt time.Time `bson:"read_at"`
}

type messageDocument struct {
	ID        string            `bson:"_id"`
	ChatID    string            `bson:"chat_id"`
	SenderID  string            `bson:"sender_id"`
	Content   string            `bson:"content"`
	Type      string            `bson:"type"`
	ReadBy    []receiptDocument `bson:"read_by"`
	Deleted   bool              `bson:"deleted"`
	CreatedAt time.Time         `bson:"created_at"`
	Seq       int64             `bson:"seq"`
}

func newMessageDocument(m *domainchat.Message) messageDocument {
	receipts := make([]receiptDocument, 0, len(m.ReadBy))
	for _, r := range m.ReadBy {
		receipts = append(receipts, receiptDocument{UserID: r.UserID, ReadAt: r.ReadAt.UTC()})
	}
	return messageDocument{
		ID:        string(m.ID),
		ChatID:    string(m.ChatID),
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      string(m.Type),
		ReadBy:    receipts,
		Deleted:   m.Deleted,
		CreatedAt: m.CreatedAt.UTC(),
		Seq:       m.Seq,
	}
}

func (d messageDocument) toMessage() *domainchat.Message {
	receipts := make([]domainchat.ReadReceipt, 0, len(d.ReadBy))
	for _, r := range d.ReadBy {
		receipts = append(receipts, domainchat.ReadReceipt{UserID: r.UserID, ReadAt: r.ReadAt.UTC()})
	}
	return &domainchat.Message{
		ID:        domainchat.MessageID(d.ID),
		ChatID:    domainchat.ID(d.ChatID),
		SenderID:  d.SenderID,
		Content:   d.Content,
		Type:      domainchat.MessageType(d.Type),
		ReadBy:    receipts,
		Deleted:   d.Deleted,
		CreatedAt: d.CreatedAt.UTC(),
		Seq:       d.Seq,
	}
}
