package middleware

import (
	"context"
	"errors"

	"storefront/internal/app/commands"
	"storefront/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// Transaction runs each command in its own unit of work. A command failing
// with uow.ErrConflict is retried in a fresh unit up to attempts times in total.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider, attempts int) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	if attempts < 1 {
		attempts = 1
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if _, ok := uow.FromContext(ctx); ok {
				return next.Dispatch(ctx, cmd)
			}
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			var lastErr error
			for i := 0; i < attempts; i++ {
				res, err := runInUnit(ctx, factory, opts, next, cmd)
				if err == nil {
					return res, nil
				}
				lastErr = err
				if !errors.Is(err, uow.ErrConflict) || ctx.Err() != nil {
					break
				}
			}
			return nil, lastErr
		})
	}
}

func runInUnit(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions, next commands.Bus, cmd commands.Command) (any, error) {
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	execCtx := uow.Attach(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	res, err := next.Dispatch(execCtx, cmd)
	if err != nil {
		return nil, err
	}
	if err := unit.Commit(execCtx); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}
