package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/app/apperr"
	"storefront/internal/app/commands"
	"storefront/internal/app/dto"
	"storefront/internal/app/handlers/support"
	"storefront/internal/app/uow"
	domaincatalog "storefront/internal/domain/catalog"
	domainchat "storefront/internal/domain/chat"
)

const StartChatKey = "chat.start"

// StartChatCommand opens (or returns) the active chat between the caller and
// the other party about a product. OtherPartyID may be omitted by a buyer, in
// which case the product's seller is used.
type StartChatCommand struct {
	CallerID     string `validate:"required" field:"caller_id"`
	ProductID    string `validate:"required" field:"product_id"`
	OtherPartyID string `field:"other_party_id"`
}

func (c StartChatCommand) Key() string     { return StartChatKey }
func (c StartChatCommand) ActorID() string { return c.CallerID }

type StartChatHandler struct {
	Dependencies
}

func (h *StartChatHandler) Handle(ctx context.Context, cmd StartChatCommand) (*dto.StartChatResult, error) {
	caller := strings.TrimSpace(cmd.CallerID)
	other := strings.TrimSpace(cmd.OtherPartyID)
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return nil, apperr.Validation("product_id", "product_id is required", domainchat.ErrProductRequired)
	}
	if other == caller {
		return nil, apperr.Validation("other_party_id", "cannot start a chat with yourself", domainchat.ErrSameParticipant)
	}

	scope, err := support.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer scope.Release()
	ctx = scope.Ctx
	chats := scope.Unit.Chats()

	if other != "" {
		existing, found, err := findActive(ctx, chats, caller, other, productID)
		if err != nil {
			return nil, err
		}
		if found {
			return h.existing(ctx, scope, existing, caller)
		}
	}

	product, err := h.resolveProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	buyerID, sellerID, err := assignRoles(caller, other, product)
	if err != nil {
		return nil, err
	}
	if other == "" {
		other = sellerID
		existing, found, err := findActive(ctx, chats, caller, other, productID)
		if err != nil {
			return nil, err
		}
		if found {
			return h.existing(ctx, scope, existing, caller)
		}
	}
	if err := h.checkUser(ctx, other); err != nil {
		return nil, err
	}

	c, err := domainchat.NewChat(domainchat.CreateParams{
		ID:        domainchat.ID(h.newID()),
		BuyerID:   buyerID,
		SellerID:  sellerID,
		ProductID: productID,
		Now:       h.now(),
	})
	if err != nil {
		return nil, translate(err)
	}
	if err := chats.Create(ctx, c); err != nil {
		if errors.Is(err, domainchat.ErrDuplicateChat) {
			// Lost a creation race; the retry finds the winner.
			return nil, apperr.Conflict("chat was created concurrently", fmt.Errorf("%w: %w", uow.ErrConflict, err))
		}
		return nil, translate(err)
	}
	if err := h.record(ctx, c.DrainEvents()); err != nil {
		return nil, err
	}
	result := &dto.StartChatResult{Chat: h.enricher().chat(ctx, c, caller), Created: true}
	if err := scope.Commit(); err != nil {
		return nil, apperr.Storage(err)
	}
	return result, nil
}

func (h *StartChatHandler) existing(ctx context.Context, scope *support.Scope, c *domainchat.Chat, caller string) (*dto.StartChatResult, error) {
	result := &dto.StartChatResult{Chat: h.enricher().chat(ctx, c, caller), Created: false}
	if err := scope.Commit(); err != nil {
		return nil, apperr.Storage(err)
	}
	return result, nil
}

func (h *StartChatHandler) resolveProduct(ctx context.Context, productID string) (domaincatalog.Product, error) {
	if h.Catalog == nil {
		return domaincatalog.Product{}, apperr.InvalidReference("product_id", "product not found", domaincatalog.ErrProductNotFound)
	}
	product, err := h.Catalog.ResolveProduct(ctx, productID)
	if err != nil {
		return domaincatalog.Product{}, translate(err)
	}
	return product, nil
}

// checkUser rejects ids the directory does not know. A directory outage is
// tolerated so chats can still be opened.
func (h *StartChatHandler) checkUser(ctx context.Context, userID string) error {
	if h.Directory == nil {
		return nil
	}
	users, err := h.Directory.ResolveUsers(ctx, []string{userID})
	if err != nil {
		h.logger().WarnContext(ctx, "participant directory unavailable", "error", err)
		return nil
	}
	if _, ok := users[userID]; !ok {
		return apperr.InvalidReference("other_party_id", "user not found", nil)
	}
	return nil
}

// assignRoles decides who is buyer and seller. The product's seller is always
// the seller side of the chat.
func assignRoles(caller, other string, product domaincatalog.Product) (string, string, error) {
	if caller == product.SellerID {
		if other == "" {
			return "", "", apperr.Validation("other_party_id", "other_party_id is required when the seller starts a chat", domainchat.ErrParticipantRequired)
		}
		return other, caller, nil
	}
	if other != "" && other != product.SellerID {
		return "", "", apperr.Validation("other_party_id", "other_party_id must be the product's seller", nil)
	}
	return caller, product.SellerID, nil
}

func findActive(ctx context.Context, chats domainchat.Repository, a, b, productID string) (*domainchat.Chat, bool, error) {
	c, err := chats.FindActive(ctx, a, b, productID)
	if err != nil {
		if errors.Is(err, domainchat.ErrChatNotFound) {
			return nil, false, nil
		}
		return nil, false, translate(err)
	}
	return c, true, nil
}

var _ commands.Handler[StartChatCommand, *dto.StartChatResult] = (*StartChatHandler)(nil)
