package chat

import (
	"errors"

	"storefront/internal/app/apperr"
	domaincatalog "storefront/internal/domain/catalog"
	domainchat "storefront/internal/domain/chat"
)

// translate maps domain and storage errors onto the client-facing taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, domainchat.ErrChatNotFound):
		return apperr.NotFound("chat not found", err)
	case errors.Is(err, domainchat.ErrNotParticipant):
		return apperr.Forbidden("you are not a participant of this chat", err)
	case errors.Is(err, domainchat.ErrChatInactive):
		return apperr.Forbidden("chat is no longer active", err)
	case errors.Is(err, domainchat.ErrContentEmpty):
		return apperr.Validation("content", "content must not be empty", err)
	case errors.Is(err, domainchat.ErrContentTooLong):
		return apperr.Validation("content", "content must be at most 1000 characters", err)
	case errors.Is(err, domainchat.ErrInvalidMessageType):
		return apperr.Validation("type", "type must be one of text, image, product_inquiry", err)
	case errors.Is(err, domainchat.ErrSameParticipant):
		return apperr.Validation("other_party_id", "buyer and seller must be different users", err)
	case errors.Is(err, domainchat.ErrParticipantRequired):
		return apperr.Validation("other_party_id", "other_party_id is required", err)
	case errors.Is(err, domainchat.ErrProductRequired):
		return apperr.Validation("product_id", "product_id is required", err)
	case errors.Is(err, domaincatalog.ErrProductNotFound):
		return apperr.InvalidReference("product_id", "product not found", err)
	default:
		return apperr.Storage(err)
	}
}
