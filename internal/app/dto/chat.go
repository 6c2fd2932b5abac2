package dto

import (
	"time"

	domaincatalog "storefront/internal/domain/catalog"
	domainchat "storefront/internal/domain/chat"
	domainuser "storefront/internal/domain/user"
)

type Participant struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
}

// ProductSummary carries only the id when the product is no longer in the catalog.
type ProductSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Thumbnail  string `json:"thumbnail,omitempty"`
	PriceCents int64  `json:"price_cents,omitempty"`
	Currency   string `json:"currency,omitempty"`
	SellerID   string `json:"seller_id,omitempty"`
}

type Chat struct {
	ID            string         `json:"id"`
	Participants  []Participant  `json:"participants"`
	Product       ProductSummary `json:"product"`
	LastMessage   string         `json:"last_message"`
	LastMessageAt time.Time      `json:"last_message_at"`
	LastMessageBy string         `json:"last_message_by,omitempty"`
	UnreadCount   int            `json:"unread_count"`
	Status        string         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
}

type ReadReceipt struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

type ChatMessage struct {
	ID        string        `json:"id"`
	ChatID    string        `json:"chat_id"`
	SenderID  string        `json:"sender_id"`
	Content   string        `json:"content"`
	Type      string        `json:"type"`
	ReadBy    []ReadReceipt `json:"read_by"`
	CreatedAt time.Time     `json:"created_at"`
}

type ChatList struct {
	Items []Chat `json:"items"`
	Pagination
}

type MessageList struct {
	Items []ChatMessage `json:"items"`
	Pagination
}

// ChatThread is a chat together with one page of its messages.
type ChatThread struct {
	Chat     Chat        `json:"chat"`
	Messages MessageList `json:"messages"`
}

type StartChatResult struct {
	Chat    Chat `json:"chat"`
	Created bool `json:"created"`
}

type MarkReadResult struct {
	ChatID   string `json:"chat_id"`
	Receipts int    `json:"receipts"`
	Unread   int    `json:"unread_count"`
}

type DeactivateResult struct {
	ChatID string `json:"chat_id"`
	Status string `json:"status"`
}

type UnreadSummary struct {
	Chats       int `json:"chats"`
	UnreadChats int `json:"unread_chats"`
	Unread      int `json:"unread"`
}

type Membership struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Attachment is an uploaded image ready to be posted as an image message.
type Attachment struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// MapChat renders c for viewer. Missing profiles fall back to the user id.
func MapChat(c *domainchat.Chat, viewer string, users map[string]domainuser.Profile, product *domaincatalog.Product) Chat {
	participants := make([]Participant, 0, 2)
	for _, p := range c.Participants.List() {
		name := p.UserID
		if profile, ok := users[p.UserID]; ok {
			name = profile.DisplayName()
		}
		participants = append(participants, Participant{UserID: p.UserID, Role: string(p.Role), Name: name})
	}
	return Chat{
		ID:            string(c.ID),
		Participants:  participants,
		Product:       MapProductSummary(c.ProductID, product),
		LastMessage:   c.LastMessage,
		LastMessageAt: c.LastMessageAt,
		LastMessageBy: c.LastMessageBy,
		UnreadCount:   c.Unread.Get(viewer),
		Status:        string(c.Status),
		CreatedAt:     c.CreatedAt,
	}
}

func MapProductSummary(id string, product *domaincatalog.Product) ProductSummary {
	if product == nil {
		return ProductSummary{ID: id}
	}
	return ProductSummary{
		ID:         id,
		Name:       product.Name,
		Thumbnail:  product.Thumbnail(),
		PriceCents: product.PriceCents,
		Currency:   product.Currency,
		SellerID:   product.SellerID,
	}
}

func MapMessage(m *domainchat.Message) ChatMessage {
	receipts := make([]ReadReceipt, 0, len(m.ReadBy))
	for _, r := range m.ReadBy {
		receipts = append(receipts, ReadReceipt{UserID: r.UserID, ReadAt: r.ReadAt})
	}
	return ChatMessage{
		ID:        string(m.ID),
		ChatID:    string(m.ChatID),
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      string(m.Type),
		ReadBy:    receipts,
		CreatedAt: m.CreatedAt,
	}
}

func MapMessages(msgs []*domainchat.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MapMessage(m))
	}
	return out
}

func MapUnreadSummary(s domainchat.UnreadSummary) UnreadSummary {
	return UnreadSummary{Chats: s.Chats, UnreadChats: s.UnreadChats, Unread: s.Unread}
}
