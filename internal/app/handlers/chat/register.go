package chat

import (
	"storefront/internal/app/commands"
	"storefront/internal/app/dto"
	"storefront/internal/app/queries"
)

// Register binds every chat handler to the buses.
func Register(cmdBus *commands.InMemoryBus, queryBus *queries.InMemoryBus, deps Dependencies) {
	commands.RegisterHandler[StartChatCommand, *dto.StartChatResult](cmdBus, StartChatKey, &StartChatHandler{Dependencies: deps})
	commands.RegisterHandler[PostMessageCommand, *dto.ChatMessage](cmdBus, PostMessageKey, &PostMessageHandler{Dependencies: deps})
	commands.RegisterHandler[MarkReadCommand, *dto.MarkReadResult](cmdBus, MarkReadKey, &MarkReadHandler{Dependencies: deps})
	commands.RegisterHandler[OpenChatCommand, *dto.ChatThread](cmdBus, OpenChatKey, &OpenChatHandler{Dependencies: deps})
	commands.RegisterHandler[DeactivateChatCommand, *dto.DeactivateResult](cmdBus, DeactivateChatKey, &DeactivateChatHandler{Dependencies: deps})

	queries.RegisterHandler[ListChatsQuery, dto.ChatList](queryBus, ListChatsKey, &ListChatsHandler{Dependencies: deps})
	queries.RegisterHandler[UnreadSummaryQuery, dto.UnreadSummary](queryBus, UnreadSummaryKey, &UnreadSummaryHandler{Dependencies: deps})
	queries.RegisterHandler[MembershipQuery, dto.Membership](queryBus, MembershipKey, &MembershipHandler{Dependencies: deps})
}
