package middleware

import (
	"context"

	"storefront/internal/app/commands"
	"storefront/internal/app/queries"
)

// CommandMiddleware wraps a command bus with cross-cutting behavior.
type CommandMiddleware func(next commands.Bus) commands.Bus

type QueryMiddleware func(next queries.Bus) queries.Bus

// ChainCommands applies mws around base; the first middleware is outermost.
func ChainCommands(base commands.Bus, mws ...CommandMiddleware) commands.Bus {
	wrapped := base
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

func ChainQueries(base queries.Bus, mws ...QueryMiddleware) queries.Bus {
	wrapped := base
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

type commandFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f commandFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	return f(ctx, cmd)
}

type queryFunc func(ctx context.Context, q queries.Query) (any, error)

func (f queryFunc) Ask(ctx context.Context, q queries.Query) (any, error) {
	return f(ctx, q)
}

// messageFilter lets one check run on both buses.
type messageFilter func(ctx context.Context, message any) error

func (f messageFilter) commands() CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := f(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func (f messageFilter) queries() QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := f(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}
