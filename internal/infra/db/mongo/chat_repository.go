package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "storefront/internal/domain/chat"
)

type ChatRepository struct {
	col *mongo.Collection
}

func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{col: db.Collection(chatsCollection)}
}

func (r *ChatRepository) ByID(ctx context.Context, id domainchat.ID) (*domainchat.Chat, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *ChatRepository) FindActive(ctx context.Context, userA, userB, productID string) (*domainchat.Chat, error) {
	return r.findOne(ctx, bson.M{
		"participant_key": domainchat.PairKey(userA, userB),
		"product_id":      productID,
		"status":          string(domainchat.StatusActive),
	})
}

func (r *ChatRepository) findOne(ctx context.Context, filter bson.M) (*domainchat.Chat, error) {
	var doc chatDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrChatNotFound
		}
		return nil, translateError(err)
	}
	return doc.toAggregate(), nil
}

func (r *ChatRepository) Create(ctx context.Context, c *domainchat.Chat) error {
	c.Seq = nextSeq()
	if _, err := r.col.InsertOne(ctx, newChatDocument(c)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainchat.ErrDuplicateChat
		}
		return translateError(err)
	}
	return nil
}

func (r *ChatRepository) ListForParticipant(ctx context.Context, userID string, page domainchat.Page) ([]*domainchat.Chat, int64, error) {
	filter := bson.M{"participants.user_id": userID, "status": string(domainchat.StatusActive)}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, translateError(err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "last_message_at", Value: -1}, {Key: "seq", Value: -1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Size))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, translateError(err)
	}
	var docs []chatDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, translateError(err)
	}
	out := make([]*domainchat.Chat, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, total, nil
}

// TouchOnNewMessage bumps the chat's recency and applies the preview only
// when at is not older than the stored last_message_at.
func (r *ChatRepository) TouchOnNewMessage(ctx context.Context, id domainchat.ID, content, senderID string, at time.Time) error {
	at = at.UTC()
	res, err := r.col.UpdateByID(ctx, string(id), bson.M{
		"$set": bson.M{"seq": nextSeq()},
		"$max": bson.M{"updated_at": at},
	})
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return domainchat.ErrChatNotFound
	}
	_, err = r.col.UpdateOne(ctx,
		bson.M{"_id": string(id), "last_message_at": bson.M{"$lte": at}},
		bson.M{"$set": bson.M{"last_message": content, "last_message_at": at, "last_message_by": senderID}},
	)
	return translateError(err)
}

func (r *ChatRepository) IncrementUnreadForOthers(ctx context.Context, id domainchat.ID, senderID string) error {
	var doc struct {
		Participants []participantDocument `bson:"participants"`
	}
	err := r.col.FindOne(ctx, bson.M{"_id": string(id)}, options.FindOne().SetProjection(bson.M{"participants": 1})).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domainchat.ErrChatNotFound
		}
		return translateError(err)
	}
	inc := bson.M{}
	for _, p := range doc.Participants {
		if p.UserID != senderID {
			inc[unreadField(p.UserID)] = 1
		}
	}
	if len(inc) == 0 {
		return nil
	}
	_, err = r.col.UpdateByID(ctx, string(id), bson.M{"$inc": inc})
	return translateError(err)
}

func (r *ChatRepository) ResetUnread(ctx context.Context, id domainchat.ID, userID string) error {
	res, err := r.col.UpdateByID(ctx, string(id), bson.M{"$set": bson.M{unreadField(userID): 0}})
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return domainchat.ErrChatNotFound
	}
	return nil
}

func (r *ChatRepository) Deactivate(ctx context.Context, id domainchat.ID, userID string, at time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": string(id), "status": string(domainchat.StatusActive), "participants.user_id": userID},
		bson.M{"$set": bson.M{"status": string(domainchat.StatusInactive), "updated_at": at.UTC()}},
	)
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return domainchat.ErrChatNotFound
	}
	return nil
}

func (r *ChatRepository) UnreadSummary(ctx context.Context, userID string) (domainchat.UnreadSummary, error) {
	count := bson.M{"$max": bson.A{bson.M{"$ifNull": bson.A{"$" + unreadField(userID), 0}}, 0}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"participants.user_id": userID, "status": string(domainchat.StatusActive)}}},
		{{Key: "$project", Value: bson.M{"n": count}}},
		{{Key: "$group", Value: bson.M{
			"_id":          nil,
			"chats":        bson.M{"$sum": 1},
			"unread_chats": bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$gt": bson.A{"$n", 0}}, 1, 0}}},
			"unread":       bson.M{"$sum": "$n"},
		}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return domainchat.UnreadSummary{}, translateError(err)
	}
	var rows []struct {
		Chats       int `bson:"chats"`
		UnreadChats int `bson:"unread_chats"`
		Unread      int `bson:"unread"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return domainchat.UnreadSummary{}, translateError(err)
	}
	if len(rows) == 0 {
		return domainchat.UnreadSummary{}, nil
	}
	return domainchat.UnreadSummary{Chats: rows[0].Chats, UnreadChats: rows[0].UnreadChats, Unread: rows[0].Unread}, nil
}

var _ domainchat.Repository = (*ChatRepository)(nil)

type participantDocument struct {
	UserID string `bson:"user_id"`
	Role   string `bson:"role"`
}

type chatDocument struct {
	ID             string                `bson:"_id"`
	ParticipantKey string                `bson:"participant_key"`
	Participants   []participantDocument `bson:"participants"`
	ProductID      string                `bson:"product_id"`
	LastMessage    string                `bson:"last_message"`
	LastMessageAt  time.Time             `bson:"last_message_at"`
	LastMessageBy  string                `bson:"last_message_by,omitempty"`
	Status         string                `bson:"status"`
	UnreadCount    map[string]int        `bson:"unread_count"`
	CreatedAt      time.Time             `bson:"created_at"`
	UpdatedAt      time.Time             `bson:"updated_at"`
	Seq            int64                 `bson:"seq"`
}

func newChatDocument(c *domainchat.Chat) chatDocument {
	unread := make(map[string]int, len(c.Unread))
	for userID, n := range c.Unread {
		unread[encodeKey(userID)] = n
	}
	return chatDocument{
		ID:             string(c.ID),
		ParticipantKey: c.Participants.Key(),
		Participants: []participantDocument{
			{UserID: c.Participants.Buyer.UserID, Role: string(domainchat.RoleBuyer)},
			{UserID: c.Participants.Seller.UserID, Role: string(domainchat.RoleSeller)},
		},
		ProductID:     c.ProductID,
		LastMessage:   c.LastMessage,
		LastMessageAt: c.LastMessageAt.UTC(),
		LastMessageBy: c.LastMessageBy,
		Status:        string(c.Status),
		UnreadCount:   unread,
		CreatedAt:     c.CreatedAt.UTC(),
		UpdatedAt:     c.UpdatedAt.UTC(),
		Seq:           c.Seq,
	}
}

func (d chatDocument) toAggregate() *domainchat.Chat {
	c := &domainchat.Chat{
		ID:            domainchat.ID(d.ID),
		ProductID:     d.ProductID,
		LastMessage:   d.LastMessage,
		LastMessageAt: d.LastMessageAt.UTC(),
		LastMessageBy: d.LastMessageBy,
		Status:        domainchat.Status(d.Status),
		Unread:        domainchat.UnreadCounts{},
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
		Seq:           d.Seq,
	}
	for _, p := range d.Participants {
		switch domainchat.Role(p.Role) {
		case domainchat.RoleBuyer:
			c.Participants.Buyer = domainchat.Participant{UserID: p.UserID, Role: domainchat.RoleBuyer}
		case domainchat.RoleSeller:
			c.Participants.Seller = domainchat.Participant{UserID: p.UserID, Role: domainchat.RoleSeller}
		}
	}
	for key, n := range d.UnreadCount {
		if n > 0 {
			c.Unread[decodeKey(key)] = n
		}
	}
	return c
}

// User ids become field names under unread_count, where "." and a leading
// "$" are not allowed; they are percent-encoded.
var (
	keyEncoder = strings.NewReplacer("%", "%25", ".", "%2E", "$", "%24")
	keyDecoder = strings.NewReplacer("%2E", ".", "%24", "$", "%25", "%")
)

func encodeKey(userID string) string {
	return keyEncoder.Replace(userID)
}

func decodeKey(key string) string {
	return keyDecoder.Replace(key)
}

func unreadField(userID string) string {
	return fmt.Sprintf("unread_count.%s", encodeKey(userID))
}
