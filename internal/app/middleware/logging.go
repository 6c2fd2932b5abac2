package middleware

import (
	"context"
	"log/slog"
	"time"

	"storefront/internal/app/apperr"
	"storefront/internal/app/commands"
	"storefront/internal/app/queries"
)

// Observer receives per-message timings; the metrics registry implements it.
type Observer interface {
	ObserveMessage(bus, key string, elapsed time.Duration, kind string)
}

// Logging logs every command with its duration and, on failure, the error kind.
func Logging(logger *slog.Logger, observer Observer) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := next.Dispatch(ctx, cmd)
			report(ctx, logger, observer, "command", cmd.Key(), time.Since(start), err)
			return res, err
		})
	}
}

func QueryLogging(logger *slog.Logger, observer Observer) QueryMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			start := time.Now()
			res, err := next.Ask(ctx, q)
			report(ctx, logger, observer, "query", q.Key(), time.Since(start), err)
			return res, err
		})
	}
}

func report(ctx context.Context, logger *slog.Logger, observer Observer, bus, key string, elapsed time.Duration, err error) {
	kind := string(apperr.KindOf(err))
	if observer != nil {
		observer.ObserveMessage(bus, key, elapsed, kind)
	}
	attrs := []any{"bus", bus, "key", key, "duration", elapsed}
	switch {
	case err == nil:
		logger.DebugContext(ctx, "message handled", attrs...)
	case kind == string(apperr.KindStorage):
		logger.ErrorContext(ctx, "message failed", append(attrs, "kind", kind, "error", err)...)
	default:
		logger.InfoContext(ctx, "message rejected", append(attrs, "kind", kind, "error", err)...)
	}
}
