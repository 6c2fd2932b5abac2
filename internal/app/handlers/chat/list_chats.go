package chat

import (
	"context"

	"storefront/internal/app/apperr"
	"storefront/internal/app/dto"
	"storefront/internal/app/handlers/support"
	"storefront/internal/app/queries"
	domainchat "storefront/internal/domain/chat"
)

const (
	ListChatsKey     = "chat.list"
	DefaultChatsPage = 20
)

// ListChatsQuery lists the caller's active chats, most recent first.
type ListChatsQuery struct {
	CallerID string `validate:"required" field:"caller_id"`
	Page     int    `validate:"gte=0" field:"page"`
	PageSize int    `validate:"gte=0,lte=100" field:"page_size"`
}

func (q ListChatsQuery) Key() string     { return ListChatsKey }
func (q ListChatsQuery) ActorID() string { return q.CallerID }

type ListChatsHandler struct {
	Dependencies
}

func (h *ListChatsHandler) Handle(ctx context.Context, q ListChatsQuery) (dto.ChatList, error) {
	scope, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ChatList{}, apperr.Storage(err)
	}
	defer scope.Release()
	ctx = scope.Ctx

	page := domainchat.Page{Number: q.Page, Size: q.PageSize}.Normalized(DefaultChatsPage)
	chats, total, err := scope.Unit.Chats().ListForParticipant(ctx, q.CallerID, page)
	if err != nil {
		return dto.ChatList{}, translate(err)
	}
	return dto.ChatList{
		Items:      h.enricher().chats(ctx, chats, q.CallerID),
		Pagination: dto.NewPagination(page, total),
	}, nil
}

var _ queries.Handler[ListChatsQuery, dto.ChatList] = (*ListChatsHandler)(nil)
