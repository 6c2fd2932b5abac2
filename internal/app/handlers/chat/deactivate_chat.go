package chat

import (
	"context"

	"storefront/internal/app/apperr"
	"storefront/internal/app/commands"
	"storefront/internal/app/dto"
	"storefront/internal/app/handlers/support"
	"storefront/internal/app/uow"
)

const DeactivateChatKey = "chat.deactivate"

// DeactivateChatCommand soft-deletes a chat for both participants.
type DeactivateChatCommand struct {
	CallerID string `validate:"required" field:"caller_id"`
	ChatID   string `validate:"required" field:"chat_id"`
}

func (c DeactivateChatCommand) Key() string     { return DeactivateChatKey }
func (c DeactivateChatCommand) ActorID() string { return c.CallerID }

type DeactivateChatHandler struct {
	Dependencies
}

func (h *DeactivateChatHandler) Handle(ctx context.Context, cmd DeactivateChatCommand) (*dto.DeactivateResult, error) {
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
	now := h.now()
	if err := c.Deactivate(cmd.CallerID, now); err != nil {
		return nil, translate(err)
	}
	if err := scope.Unit.Chats().Deactivate(ctx, c.ID, cmd.CallerID, now); err != nil {
		return nil, translate(err)
	}
	if err := h.record(ctx, c.DrainEvents()); err != nil {
		return nil, err
	}
	if err := scope.Commit(); err != nil {
		return nil, apperr.Storage(err)
	}
	return &dto.DeactivateResult{ChatID: string(c.ID), Status: string(c.Status)}, nil
}

var _ commands.Handler[DeactivateChatCommand, *dto.DeactivateResult] = (*DeactivateChatHandler)(nil)
