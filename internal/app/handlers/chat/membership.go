package chat

import (
	"context"
	"strings"

	"storefront/internal/app/apperr"
	domainchat "storefront/internal/domain/chat"
)

// loadMember returns the chat when callerID may act on it. Unknown ids are
// not found; existing chats the caller is not part of, or inactive ones, are
// forbidden.
func loadMember(ctx context.Context, chats domainchat.Repository, chatID, callerID string) (*domainchat.Chat, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, apperr.Validation("chat_id", "chat_id is required", domainchat.ErrIDRequired)
	}
	c, err := chats.ByID(ctx, domainchat.ID(chatID))
	if err != nil {
		return nil, translate(err)
	}
	if err := c.EnsureAccess(callerID); err != nil {
		return nil, translate(err)
	}
	return c, nil
}
