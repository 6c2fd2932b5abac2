package middleware

import (
	"context"

	"storefront/internal/app/apperr"
)

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// Actor is implemented by commands and queries issued on behalf of a caller.
type Actor interface {
	ActorID() string
}

// CallerRequired rejects actor messages that carry no caller id.
type CallerRequired struct{}

func (CallerRequired) Authorize(_ context.Context, message any) error {
	actor, ok := message.(Actor)
	if !ok {
		return nil
	}
	if actor.ActorID() == "" {
		return apperr.Unauthorized("authentication required")
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return messageFilter(a.Authorize).commands()
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return messageFilter(a.Authorize).queries()
}
