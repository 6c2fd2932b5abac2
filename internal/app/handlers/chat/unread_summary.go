package chat

import (
	"context"

	"storefront/internal/app/apperr"
	"storefront/internal/app/dto"
	"storefront/internal/app/handlers/support"
	"storefront/internal/app/queries"
)

const UnreadSummaryKey = "chat.unread_summary"

type UnreadSummaryQuery struct {
	CallerID string `validate:"required" field:"caller_id"`
}

func (q UnreadSummaryQuery) Key() string     { return UnreadSummaryKey }
func (q UnreadSummaryQuery) ActorID() string { return q.CallerID }

type UnreadSummaryHandler struct {
	Dependencies
}

func (h *UnreadSummaryHandler) Handle(ctx context.Context, q UnreadSummaryQuery) (dto.UnreadSummary, error) {
	scope, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.UnreadSummary{}, apperr.Storage(err)
	}
	defer scope.Release()

	summary, err := scope.Unit.Chats().UnreadSummary(scope.Ctx, q.CallerID)
	if err != nil {
		return dto.UnreadSummary{}, translate(err)
	}
	return dto.MapUnreadSummary(summary), nil
}

var _ queries.Handler[UnreadSummaryQuery, dto.UnreadSummary] = (*UnreadSummaryHandler)(nil)
