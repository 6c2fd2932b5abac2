package chat

import (
	"context"
	"log/slog"

	"storefront/internal/app/dto"
	"storefront/internal/app/policies"
	domaincatalog "storefront/internal/domain/catalog"
	domainchat "storefront/internal/domain/chat"
	domainuser "storefront/internal/domain/user"
)

// enricher resolves display data in two batch calls. Lookup failures degrade
// to bare ids instead of failing the request.
type enricher struct {
	directory policies.ParticipantDirectory
	catalog   policies.ProductCatalog
	logger    *slog.Logger
}

func (e enricher) chats(ctx context.Context, chats []*domainchat.Chat, viewer string) []dto.Chat {
	userIDs := make([]string, 0, len(chats)*2)
	productIDs := make([]string, 0, len(chats))
	seenUsers := map[string]struct{}{}
	seenProducts := map[string]struct{}{}
	for _, c := range chats {
		for _, id := range c.Participants.UserIDs() {
			if _, ok := seenUsers[id]; !ok {
				seenUsers[id] = struct{}{}
				userIDs = append(userIDs, id)
			}
		}
		if _, ok := seenProducts[c.ProductID]; !ok {
			seenProducts[c.ProductID] = struct{}{}
			productIDs = append(productIDs, c.ProductID)
		}
	}
	users := e.users(ctx, userIDs)
	products := e.products(ctx, productIDs)

	out := make([]dto.Chat, 0, len(chats))
	for _, c := range chats {
		var product *domaincatalog.Product
		if p, ok := products[c.ProductID]; ok {
			product = &p
		}
		out = append(out, dto.MapChat(c, viewer, users, product))
	}
	return out
}

func (e enricher) chat(ctx context.Context, c *domainchat.Chat, viewer string) dto.Chat {
	return e.chats(ctx, []*domainchat.Chat{c}, viewer)[0]
}

func (e enricher) users(ctx context.Context, ids []string) map[string]domainuser.Profile {
	if e.directory == nil || len(ids) == 0 {
		return nil
	}
	users, err := e.directory.ResolveUsers(ctx, ids)
	if err != nil {
		e.logger.WarnContext(ctx, "participant directory unavailable", "error", err)
		return nil
	}
	return users
}

func (e enricher) products(ctx context.Context, ids []string) map[string]domaincatalog.Product {
	if e.catalog == nil || len(ids) == 0 {
		return nil
	}
	products, err := e.catalog.ResolveProducts(ctx, ids)
	if err != nil {
		e.logger.WarnContext(ctx, "product catalog unavailable", "error", err)
		return nil
	}
	return products
}
