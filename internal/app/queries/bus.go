package queries

import (
	"context"
	"fmt"
)

type rawHandler func(ctx context.Context, q Query) (any, error)

type InMemoryBus struct {
	handlers map[string]rawHandler
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[string]rawHandler)}
}

func (b *InMemoryBus) register(key string, handler rawHandler) {
	if key == "" {
		panic("queries: empty key registration")
	}
	if _, exists := b.handlers[key]; exists {
		panic(fmt.Sprintf("queries: handler for %q already registered", key))
	}
	b.handlers[key] = handler
}

func (b *InMemoryBus) Ask(ctx context.Context, query Query) (any, error) {
	h, ok := b.handlers[query.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, query.Key())
	}
	return h(ctx, query)
}

func RegisterHandler[Q Query, R any](bus *InMemoryBus, key string, handler Handler[Q, R]) {
	if bus == nil {
		panic("queries: nil bus")
	}
	bus.register(key, func(ctx context.Context, raw Query) (any, error) {
		q, ok := raw.(Q)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuery, key)
		}
		return handler.Handle(ctx, q)
	})
}
