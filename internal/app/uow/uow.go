package uow

import (
	"context"
	"errors"

	domainchat "storefront/internal/domain/chat"
)

var (
	ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")
	// ErrConflict marks a write that lost a race and may succeed if the
	// whole command is retried in a fresh unit.
	ErrConflict = errors.New("uow: conflicting concurrent write")
)

// UnitOfWork groups repository access inside one transaction boundary.
type UnitOfWork interface {
	Chats() domainchat.Repository
	Messages() domainchat.MessageRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry driver state (sessions,
// lock ownership) which repositories read back from the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}

type ctxKey struct{}

func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(ctxKey{}).(UnitOfWork)
	return unit, ok && unit != nil
}

// Attach injects driver state and stores unit in ctx.
func Attach(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(ContextInjector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}
