package commands

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrHandlerNotFound = errors.New("commands: no handler registered")
	ErrInvalidCommand  = errors.New("commands: command does not match handler")
	ErrResultType      = errors.New("commands: unexpected result type")
	ErrNilBus          = errors.New("commands: bus is nil")
)

// Command is a state change requested by a chat participant. Key selects
// the handler, e.g. "chat.post_message".
type Command interface {
	Key() string
}

// Bus is implemented by InMemoryBus and by every middleware wrapping it.
type Bus interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}

type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

type HandlerFunc[C Command, R any] func(ctx context.Context, cmd C) (R, error)

func (fn HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	return fn(ctx, cmd)
}

// Dispatch is the typed entry point used by transports. A nil result from
// the chain, as produced by idempotent replays of empty results, yields the
// zero R.
func Dispatch[C Command, R any](ctx context.Context, bus Bus, cmd C) (R, error) {
	var out R
	if bus == nil {
		return out, ErrNilBus
	}
	raw, err := bus.Dispatch(ctx, cmd)
	if err != nil || raw == nil {
		return out, err
	}
	typed, ok := raw.(R)
	if !ok {
		return out, fmt.Errorf("%w: %s returned %T", ErrResultType, cmd.Key(), raw)
	}
	return typed, nil
}
