package support

import (
	"context"

	"storefront/internal/app/uow"
)

// Scope is a unit of work borrowed from the context or owned by the caller.
// Owned units are committed by Commit and rolled back by Release.
type Scope struct {
	Unit uow.UnitOfWork
	Ctx  context.Context

	owned     bool
	committed bool
}

// Begin joins the ambient unit of work or starts a new one with opts.
func Begin(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions) (*Scope, error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return &Scope{Unit: unit, Ctx: ctx}, nil
	}
	if factory == nil {
		return nil, uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Scope{Unit: unit, Ctx: uow.Attach(ctx, unit), owned: true}, nil
}

// BeginReadOnlyUnit is Begin for queries.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (*Scope, error) {
	return Begin(ctx, factory, uow.TxOptions{ReadOnly: true})
}

func (s *Scope) Commit() error {
	if !s.owned || s.committed {
		return nil
	}
	if err := s.Unit.Commit(s.Ctx); err != nil {
		return err
	}
	s.committed = true
	return nil
}

// Release rolls back an owned unit that was not committed.
func (s *Scope) Release() {
	if s.owned && !s.committed {
		_ = s.Unit.Rollback(s.Ctx)
	}
}
