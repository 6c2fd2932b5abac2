package queries

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrHandlerNotFound = errors.New("queries: no handler registered")
	ErrInvalidQuery    = errors.New("queries: query does not match handler")
	ErrResultType      = errors.New("queries: unexpected result type")
	ErrNilBus          = errors.New("queries: bus is nil")
)

// Query reads chat state without recording events.
type Query interface {
	Key() string
}

type Bus interface {
	Ask(ctx context.Context, query Query) (any, error)
}

type Handler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

type HandlerFunc[Q Query, R any] func(ctx context.Context, query Q) (R, error)

func (fn HandlerFunc[Q, R]) Handle(ctx context.Context, query Q) (R, error) {
	return fn(ctx, query)
}

func Ask[Q Query, R any](ctx context.Context, bus Bus, query Q) (R, error) {
	var out R
	if bus == nil {
		return out, ErrNilBus
	}
	raw, err := bus.Ask(ctx, query)
	if err != nil || raw == nil {
		return out, err
	}
	typed, ok := raw.(R)
	if !ok {
		return out, fmt.Errorf("%w: %s returned %T", ErrResultType, query.Key(), raw)
	}
	return typed, nil
}
