package catalogsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"storefront/internal/app/policies"
	domaincatalog "storefront/internal/domain/catalog"
)

const (
	EventProductUpserted = "catalog.product.upserted"
	EventProductRemoved  = "catalog.product.removed"
)

var ErrMalformedEvent = errors.New("catalogsync: malformed event")

// Inbox deduplicates events by id. Forget re-arms an id after a failure.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Observer interface {
	CatalogEvent(eventType string, err error)
}

// Handler applies catalog CloudEvents to the product projection.
type Handler struct {
	Projection policies.ProductProjection
	Inbox      Inbox
	Logger     *slog.Logger
	Observer   Observer
}

type cloudEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data"`
}

type productData struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	SellerID   string    `json:"seller_id"`
	Name       string    `json:"name"`
	Images     []string  `json:"images"`
	PriceCents int64     `json:"price_cents"`
	Currency   string    `json:"currency"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (d productData) productID() string {
	if d.ProductID != "" {
		return d.ProductID
	}
	return d.ID
}

func (h Handler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt cloudEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.ID == "" || evt.Type == "" {
		return fmt.Errorf("%w: id and type are required", ErrMalformedEvent)
	}
	eventType := normalizeType(evt.Type)
	if eventType != EventProductUpserted && eventType != EventProductRemoved {
		return nil
	}
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return fmt.Errorf("catalogsync: inbox: %w", err)
		}
		if seen {
			if h.Logger != nil {
				h.Logger.Debug("catalog event already applied", "id", evt.ID)
			}
			return nil
		}
	}
	err := h.apply(ctx, eventType, evt)
	if h.Observer != nil {
		h.Observer.CatalogEvent(eventType, err)
	}
	if err != nil && h.Inbox != nil {
		if forgetErr := h.Inbox.Forget(ctx, evt.ID); forgetErr != nil && h.Logger != nil {
			h.Logger.Error("catalog inbox rollback failed", "id", evt.ID, "error", forgetErr)
		}
	}
	return err
}

func (h Handler) apply(ctx context.Context, eventType string, evt cloudEvent) error {
	var data productData
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	id := data.productID()
	if id == "" {
		return fmt.Errorf("%w: product id is required", ErrMalformedEvent)
	}
	if eventType == EventProductRemoved {
		return h.Projection.RemoveProduct(ctx, id)
	}
	updatedAt := data.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = evt.Time
	}
	product := domaincatalog.Product{
		ID:         id,
		SellerID:   data.SellerID,
		Name:       data.Name,
		Images:     data.Images,
		PriceCents: data.PriceCents,
		Currency:   data.Currency,
		UpdatedAt:  updatedAt.UTC(),
	}
	if err := product.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return h.Projection.UpsertProduct(ctx, product)
}

// normalizeType strips a trailing version suffix such as ".v1".
func normalizeType(t string) string {
	for _, known := range []string{EventProductUpserted, EventProductRemoved} {
		if t == known || t == known+".v1" {
			return known
		}
	}
	return t
}
