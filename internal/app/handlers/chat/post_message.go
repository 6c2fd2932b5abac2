package chat

import (
	"context"

	"storefront/internal/app/apperr"
	"storefront/internal/app/commands"
	"storefront/internal/app/dto"
	"storefront/internal/app/handlers/support"
	"storefront/internal/app/middleware"
	"storefront/internal/app/uow"
	domainchat "storefront/internal/domain/chat"
)

const PostMessageKey = "chat.post_message"

type PostMessageCommand struct {
	CallerID        string `validate:"required" field:"caller_id"`
	ChatID          string `validate:"required" field:"chat_id"`
	Content         string `field:"content"`
	Type            string `field:"type"`
	IdempotencyKeyV string
}

func (c PostMessageCommand) Key() string     { return PostMessageKey }
func (c PostMessageCommand) ActorID() string { return c.CallerID }

// IdempotencyKey is scoped to caller and chat so clients cannot collide.
func (c PostMessageCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return PostMessageKey + ":" + c.CallerID + ":" + c.ChatID + ":" + c.IdempotencyKeyV
}

func (c PostMessageCommand) ResultPrototype() any { return &dto.ChatMessage{} }

type PostMessageHandler struct {
	Dependencies
}

// Handle appends the message and updates the chat summary and the
// recipient's unread counter in the same unit of work.
func (h *PostMessageHandler) Handle(ctx context.Context, cmd PostMessageCommand) (*dto.ChatMessage, error) {
	scope, err := support.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer scope.Release()
	ctx = scope.Ctx

	c, err := loadMember(ctx, scope.Unit.Chats(), cmd.ChatID, cmd.CallerID)
	if err != nil {
		return nil, err
	}
	msg, err := domainchat.NewMessage(domainchat.MessageParams{
		ID:       domainchat.MessageID(h.newID()),
		ChatID:   c.ID,
		SenderID: cmd.CallerID,
		Content:  cmd.Content,
		Type:     cmd.Type,
		Now:      h.now(),
	})
	if err != nil {
		return nil, translate(err)
	}
	if err := scope.Unit.Messages().Append(ctx, msg); err != nil {
		return nil, translate(err)
	}
	if err := scope.Unit.Chats().TouchOnNewMessage(ctx, c.ID, msg.Content, msg.SenderID, msg.CreatedAt); err != nil {
		return nil, translate(err)
	}
	if err := scope.Unit.Chats().IncrementUnreadForOthers(ctx, c.ID, msg.SenderID); err != nil {
		return nil, translate(err)
	}
	c.ApplyMessage(msg)
	if err := h.record(ctx, c.DrainEvents()); err != nil {
		return nil, err
	}
	if err := scope.Commit(); err != nil {
		return nil, apperr.Storage(err)
	}
	out := dto.MapMessage(msg)
	return &out, nil
}

var _ commands.Handler[PostMessageCommand, *dto.ChatMessage] = (*PostMessageHandler)(nil)
var _ middleware.IdempotentCommand = PostMessageCommand{}
