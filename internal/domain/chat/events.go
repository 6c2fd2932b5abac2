package chat

import "time"

const (
	EventChatStarted     = "chat.started"
	EventMessagePosted   = "chat.message_posted"
	EventChatRead        = "chat.read"
	EventChatDeactivated = "chat.deactivated"
)

type ChatStarted struct {
	ChatID    ID        `json:"chat_id"`
	ProductID string    `json:"product_id"`
	BuyerID   string    `json:"buyer_id"`
	SellerID  string    `json:"seller_id"`
	At        time.Time `json:"at"`
}

func (e ChatStarted) EventName() string     { return EventChatStarted }
func (e ChatStarted) AggregateID() string   { return string(e.ChatID) }
func (e ChatStarted) OccurredAt() time.Time { return e.At }

// MessagePosted feeds downstream notifications (e-mail digests, seller dashboard).
type MessagePosted struct {
	ChatID      ID          `json:"chat_id"`
	MessageID   MessageID   `json:"message_id"`
	ProductID   string      `json:"product_id"`
	SenderID    string      `json:"sender_id"`
	RecipientID string      `json:"recipient_id"`
	Type        MessageType `json:"type"`
	Preview     string      `json:"preview"`
	At          time.Time   `json:"at"`
}

func (e MessagePosted) EventName() string     { return EventMessagePosted }
func (e MessagePosted) AggregateID() string   { return string(e.ChatID) }
func (e MessagePosted) OccurredAt() time.Time { return e.At }

type ChatRead struct {
	ChatID   ID        `json:"chat_id"`
	ReaderID string    `json:"reader_id"`
	Receipts int       `json:"receipts"`
	At       time.Time `json:"at"`
}

func (e ChatRead) EventName() string     { return EventChatRead }
func (e ChatRead) AggregateID() string   { return string(e.ChatID) }
func (e ChatRead) OccurredAt() time.Time { return e.At }

type ChatDeactivated struct {
	ChatID ID        `json:"chat_id"`
	By     string    `json:"by"`
	At     time.Time `json:"at"`
}

func (e ChatDeactivated) EventName() string     { return EventChatDeactivated }
func (e ChatDeactivated) AggregateID() string   { return string(e.ChatID) }
func (e ChatDeactivated) OccurredAt() time.Time { return e.At }
