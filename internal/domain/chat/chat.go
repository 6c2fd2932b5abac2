package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/domain/shared/events"
)

var (
	ErrChatNotFound        = errors.New("chat: not found")
	ErrDuplicateChat       = errors.New("chat: active chat already exists for participants and product")
	ErrNotParticipant      = errors.New("chat: user is not a participant")
	ErrChatInactive        = errors.New("chat: chat is inactive")
	ErrParticipantRequired = errors.New("chat: buyer and seller ids are required")
	ErrSameParticipant     = errors.New("chat: buyer and seller must be different users")
	ErrProductRequired     = errors.New("chat: product id is required")
	ErrIDRequired          = errors.New("chat: id is required")
)

type ID string

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Chat is a two-party conversation scoped to one product.
type Chat struct {
	ID            ID
	Participants  Participants
	ProductID     string
	LastMessage   string
	LastMessageAt time.Time
	LastMessageBy string
	Status        Status
	Unread        UnreadCounts
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// Seq breaks ties between chats with equal LastMessageAt; higher is more recent.
	Seq int64
	events.EventRecorder
}

// Repository is the chat registry. Implementations must make the counter
// operations atomic so concurrent senders never lose increments.
type Repository interface {
	ByID(ctx context.Context, id ID) (*Chat, error)
	FindActive(ctx context.Context, userA, userB, productID string) (*Chat, error)
	Create(ctx context.Context, chat *Chat) error
	ListForParticipant(ctx context.Context, userID string, page Page) ([]*Chat, int64, error)
	TouchOnNewMessage(ctx context.Context, id ID, content, senderID string, at time.Time) error
	IncrementUnreadForOthers(ctx context.Context, id ID, senderID string) error
	ResetUnread(ctx context.Context, id ID, userID string) error
	Deactivate(ctx context.Context, id ID, userID string, at time.Time) error
	UnreadSummary(ctx context.Context, userID string) (UnreadSummary, error)
}

// UnreadSummary aggregates unread counters over a user's active chats.
type UnreadSummary struct {
	Chats       int
	UnreadChats int
	Unread      int
}

type CreateParams struct {
	ID        ID
	BuyerID   string
	SellerID  string
	ProductID string
	Now       time.Time
}

func NewChat(params CreateParams) (*Chat, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	productID := strings.TrimSpace(params.ProductID)
	if productID == "" {
		return nil, ErrProductRequired
	}
	participants, err := NewParticipants(params.BuyerID, params.SellerID)
	if err != nil {
		return nil, err
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	c := &Chat{
		ID:            params.ID,
		Participants:  participants,
		ProductID:     productID,
		LastMessageAt: now,
		Status:        StatusActive,
		Unread:        UnreadCounts{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	c.Record(ChatStarted{
		ChatID:    c.ID,
		ProductID: c.ProductID,
		BuyerID:   participants.Buyer.UserID,
		SellerID:  participants.Seller.UserID,
		At:        now,
	})
	return c, nil
}

func (c *Chat) IsActive() bool {
	return c.Status == StatusActive
}

// EnsureAccess reports whether userID may read or mutate the chat.
func (c *Chat) EnsureAccess(userID string) error {
	if !c.Participants.Contains(userID) {
		return ErrNotParticipant
	}
	if !c.IsActive() {
		return ErrChatInactive
	}
	return nil
}

// ApplyMessage mirrors what the registry persists for a new message so the
// in-memory copy can be returned without a reload.
func (c *Chat) ApplyMessage(msg *Message) {
	if msg.CreatedAt.After(c.LastMessageAt) || msg.CreatedAt.Equal(c.LastMessageAt) {
		c.LastMessage = msg.Content
		c.LastMessageAt = msg.CreatedAt
		c.LastMessageBy = msg.SenderID
	}
	if c.Unread == nil {
		c.Unread = UnreadCounts{}
	}
	c.Unread.IncrementOthers(c.Participants, msg.SenderID)
	c.UpdatedAt = msg.CreatedAt
	recipient, _ := c.Participants.Other(msg.SenderID)
	c.Record(MessagePosted{
		ChatID:      c.ID,
		MessageID:   msg.ID,
		ProductID:   c.ProductID,
		SenderID:    msg.SenderID,
		RecipientID: recipient.UserID,
		Type:        msg.Type,
		Preview:     preview(msg.Content),
		At:          msg.CreatedAt,
	})
}

// MarkRead resets userID's counter and records the read when anything changed.
func (c *Chat) MarkRead(userID string, receipts int, now time.Time) {
	had := c.Unread.Get(userID)
	c.Unread.Reset(userID)
	if had == 0 && receipts == 0 {
		return
	}
	c.Record(ChatRead{ChatID: c.ID, ReaderID: userID, Receipts: receipts, At: now.UTC()})
}

func (c *Chat) Deactivate(userID string, now time.Time) error {
	if err := c.EnsureAccess(userID); err != nil {
		return err
	}
	now = now.UTC()
	c.Status = StatusInactive
	c.UpdatedAt = now
	c.Record(ChatDeactivated{ChatID: c.ID, By: userID, At: now})
	return nil
}

// Clone returns a deep copy without pending events.
func (c *Chat) Clone() *Chat {
	if c == nil {
		return nil
	}
	out := *c
	out.Unread = c.Unread.Clone()
	out.EventRecorder = events.EventRecorder{}
	return &out
}

const previewLength = 120

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength])
}
