package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrContentEmpty       = errors.New("chat: message content is required")
	ErrContentTooLong     = errors.New("chat: message content exceeds 1000 characters")
	ErrInvalidMessageType = errors.New("chat: message type must be text, image or product_inquiry")
	ErrSenderRequired     = errors.New("chat: sender id is required")
)

// MaxContentLength is measured in characters (code points) after trimming.
const MaxContentLength = 1000

type MessageID string

type MessageType string

const (
	MessageText           MessageType = "text"
	MessageImage          MessageType = "image"
	MessageProductInquiry MessageType = "product_inquiry"
)

// ParseMessageType normalizes raw input; an empty value means text.
func ParseMessageType(raw string) (MessageType, error) {
	switch MessageType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", MessageText:
		return MessageText, nil
	case MessageImage:
		return MessageImage, nil
	case MessageProductInquiry:
		return MessageProductInquiry, nil
	default:
		return "", ErrInvalidMessageType
	}
}

// ReadReceipt records that a participant acknowledged a message.
type ReadReceipt struct {
	UserID string
	ReadAt time.Time
}

type Message struct {
	ID        MessageID
	ChatID    ID
	SenderID  string
	Content   string
	Type      MessageType
	ReadBy    []ReadReceipt
	Deleted   bool
	CreatedAt time.Time
	// Seq orders messages that share a CreatedAt; assigned by the store on append.
	Seq int64
}

// MessageRepository is the append-only message store.
type MessageRepository interface {
	Append(ctx context.Context, msg *Message) error
	ListForChat(ctx context.Context, chatID ID, page Page) ([]*Message, int64, error)
	// MarkReadFor adds a receipt for readerID to every message in the chat that
	// someone else sent and readerID has not acknowledged yet. Returns the
	// number of messages that gained a receipt.
	MarkReadFor(ctx context.Context, chatID ID, readerID string, at time.Time) (int, error)
}

type MessageParams struct {
	ID       MessageID
	ChatID   ID
	SenderID string
	Content  string
	Type     string
	Now      time.Time
}

func NewMessage(params MessageParams) (*Message, error) {
	if strings.TrimSpace(string(params.ID)) == "" || strings.TrimSpace(string(params.ChatID)) == "" {
		return nil, ErrIDRequired
	}
	sender := strings.TrimSpace(params.SenderID)
	if sender == "" {
		return nil, ErrSenderRequired
	}
	content, err := NormalizeContent(params.Content)
	if err != nil {
		return nil, err
	}
	kind, err := ParseMessageType(params.Type)
	if err != nil {
		return nil, err
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Message{
		ID:        params.ID,
		ChatID:    params.ChatID,
		SenderID:  sender,
		Content:   content,
		Type:      kind,
		ReadBy:    []ReadReceipt{},
		CreatedAt: now.UTC(),
	}, nil
}

// NormalizeContent trims and length-checks a message body.
func NormalizeContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", ErrContentEmpty
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", ErrContentTooLong
	}
	return content, nil
}

func (m *Message) ReadByUser(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// MarkReadBy appends a receipt unless userID sent the message or already read it.
func (m *Message) MarkReadBy(userID string, at time.Time) bool {
	if userID == "" || userID == m.SenderID || m.ReadByUser(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, ReadReceipt{UserID: userID, ReadAt: at.UTC()})
	return true
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	out.ReadBy = append([]ReadReceipt(nil), m.ReadBy...)
	return &out
}
