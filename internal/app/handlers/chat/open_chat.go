package chat

import (
	"context"

	"storefront/internal/app/apperr"
	"storefront/internal/app/commands"
	"storefront/internal/app/dto"
	"storefront/internal/app/handlers/support"
	"storefront/internal/app/uow"
	domainchat "storefront/internal/domain/chat"
)

const (
	OpenChatKey         = "chat.open"
	DefaultMessagesPage = 50
)

// OpenChatCommand loads a chat with one page of messages. Opening a chat
// marks it read for the caller, which is why it is a command.
type OpenChatCommand struct {
	CallerID string `validate:"required" field:"caller_id"`
	ChatID   string `validate:"required" field:"chat_id"`
	Page     int    `validate:"gte=0" field:"page"`
	PageSize int    `validate:"gte=0,lte=100" field:"page_size"`
}

func (c OpenChatCommand) Key() string     { return OpenChatKey }
func (c OpenChatCommand) ActorID() string { return c.CallerID }

type OpenChatHandler struct {
	Dependencies
}

func (h *OpenChatHandler) Handle(ctx context.Context, cmd OpenChatCommand) (*dto.ChatThread, error) {
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
	if _, err := h.markRead(ctx, scope.Unit, c, cmd.CallerID); err != nil {
		return nil, err
	}
	page := domainchat.Page{Number: cmd.Page, Size: cmd.PageSize}.Normalized(DefaultMessagesPage)
	msgs, total, err := scope.Unit.Messages().ListForChat(ctx, c.ID, page)
	if err != nil {
		return nil, translate(err)
	}
	thread := &dto.ChatThread{
		Chat: h.enricher().chat(ctx, c, cmd.CallerID),
		Messages: dto.MessageList{
			Items:      dto.MapMessages(msgs),
			Pagination: dto.NewPagination(page, total),
		},
	}
	if err := scope.Commit(); err != nil {
		return nil, apperr.Storage(err)
	}
	return thread, nil
}

var _ commands.Handler[OpenChatCommand, *dto.ChatThread] = (*OpenChatHandler)(nil)
