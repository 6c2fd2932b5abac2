package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"storefront/internal/app/outbox"
	"storefront/internal/app/policies"
	"storefront/internal/app/uow"
	"storefront/internal/domain/shared/events"
)

// Dependencies are the collaborators shared by every chat handler.
type Dependencies struct {
	UoWFactory uow.UoWFactory
	Directory  policies.ParticipantDirectory
	Catalog    policies.ProductCatalog
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string
}

func (d Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Dependencies) newID() string {
	if d.NewID != nil {
		return d.NewID()
	}
	return uuid.NewString()
}

func (d Dependencies) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Dependencies) encoder() outbox.EventEncoder {
	if d.Encoder != nil {
		return d.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (d Dependencies) record(ctx context.Context, evs []events.DomainEvent) error {
	if err := outbox.RecordDomainEvents(ctx, d.Outbox, d.encoder(), evs); err != nil {
		return translate(err)
	}
	return nil
}

func (d Dependencies) enricher() enricher {
	return enricher{directory: d.Directory, catalog: d.Catalog, logger: d.logger()}
}
