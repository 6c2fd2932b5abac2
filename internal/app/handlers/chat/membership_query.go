package chat

import (
	"context"

	"storefront/internal/app/apperr"
	"storefront/internal/app/dto"
	"storefront/internal/app/handlers/support"
	"storefront/internal/app/queries"
)

const MembershipKey = "chat.membership"

// MembershipQuery checks that the caller may act on an active chat without
// touching its read state. Attachment uploads use it before storing files.
type MembershipQuery struct {
	CallerID string `validate:"required" field:"caller_id"`
	ChatID   string `validate:"required" field:"chat_id"`
}

func (q MembershipQuery) Key() string     { return MembershipKey }
func (q MembershipQuery) ActorID() string { return q.CallerID }

type MembershipHandler struct {
	Dependencies
}

func (h *MembershipHandler) Handle(ctx context.Context, q MembershipQuery) (dto.Membership, error) {
	scope, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Membership{}, apperr.Storage(err)
	}
	defer scope.Release()

	c, err := loadMember(scope.Ctx, scope.Unit.Chats(), q.ChatID, q.CallerID)
	if err != nil {
		return dto.Membership{}, err
	}
	role, _ := c.Participants.RoleOf(q.CallerID)
	return dto.Membership{ChatID: string(c.ID), UserID: q.CallerID, Role: string(role)}, nil
}

var _ queries.Handler[MembershipQuery, dto.Membership] = (*MembershipHandler)(nil)
