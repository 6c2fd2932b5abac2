package commands

import (
	"context"
	"fmt"
	"sort"
)

type rawHandler func(ctx context.Context, cmd Command) (any, error)

// InMemoryBus routes commands to handlers registered by key.
type InMemoryBus struct {
	handlers map[string]rawHandler
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[string]rawHandler)}
}

func (b *InMemoryBus) register(key string, handler rawHandler) {
	if key == "" {
		panic("commands: empty key registration")
	}
	if _, exists := b.handlers[key]; exists {
		panic(fmt.Sprintf("commands: handler for %q already registered", key))
	}
	b.handlers[key] = handler
}

func (b *InMemoryBus) Dispatch(ctx context.Context, cmd Command) (any, error) {
	h, ok := b.handlers[cmd.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, cmd.Key())
	}
	return h(ctx, cmd)
}

// Keys lists registered command keys in sorted order.
func (b *InMemoryBus) Keys() []string {
	keys := make([]string, 0, len(b.handlers))
	for k := range b.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RegisterHandler binds a typed handler to key.
func RegisterHandler[C Command, R any](bus *InMemoryBus, key string, handler Handler[C, R]) {
	if bus == nil {
		panic("commands: nil bus")
	}
	bus.register(key, func(ctx context.Context, raw Command) (any, error) {
		cmd, ok := raw.(C)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCommand, key)
		}
		return handler.Handle(ctx, cmd)
	})
}
