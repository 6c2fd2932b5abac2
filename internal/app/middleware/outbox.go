package middleware

import (
	"context"
	"log/slog"

	"storefront/internal/app/commands"
	"storefront/internal/app/outbox"
)

// OutboxFlush notifies the outbox after a successful command. It must wrap
// Transaction so the relay is woken only once the records are committed. A
// flush failure is logged and the command still succeeds; the relay picks
// the records up on its next poll.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				logger.WarnContext(ctx, "outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
