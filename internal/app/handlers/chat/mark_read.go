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

const MarkReadKey = "chat.mark_read"

type MarkReadCommand struct {
	CallerID string `validate:"required" field:"caller_id"`
	ChatID   string `validate:"required" field:"chat_id"`
}

func (c MarkReadCommand) Key() string     { return MarkReadKey }
func (c MarkReadCommand) ActorID() string { return c.CallerID }

type MarkReadHandler struct {
	Dependencies
}

func (h *MarkReadHandler) Handle(ctx context.Context, cmd MarkReadCommand) (*dto.MarkReadResult, error) {
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
	receipts, err := h.markRead(ctx, scope.Unit, c, cmd.CallerID)
	if err != nil {
		return nil, err
	}
	if err := scope.Commit(); err != nil {
		return nil, apperr.Storage(err)
	}
	return &dto.MarkReadResult{ChatID: string(c.ID), Receipts: receipts, Unread: c.Unread.Get(cmd.CallerID)}, nil
}

// markRead adds receipts for everything the other party sent and resets the
// reader's counter. Repeating it changes nothing.
func (d Dependencies) markRead(ctx context.Context, unit uow.UnitOfWork, c *domainchat.Chat, readerID string) (int, error) {
	now := d.now()
	receipts, err := unit.Messages().MarkReadFor(ctx, c.ID, readerID, now)
	if err != nil {
		return 0, translate(err)
	}
	if err := unit.Chats().ResetUnread(ctx, c.ID, readerID); err != nil {
		return 0, translate(err)
	}
	c.MarkRead(readerID, receipts, now)
	if err := d.record(ctx, c.DrainEvents()); err != nil {
		return 0, err
	}
	return receipts, nil
}

var _ commands.Handler[MarkReadCommand, *dto.MarkReadResult] = (*MarkReadHandler)(nil)
