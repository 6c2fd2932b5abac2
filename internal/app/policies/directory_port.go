package policies

import (
	"context"

	domainuser "storefront/internal/domain/user"
)

// ParticipantDirectory resolves user profiles for display. Unknown ids are
// simply absent from the returned map.
type ParticipantDirectory interface {
	ResolveUsers(ctx context.Context, ids []string) (map[string]domainuser.Profile, error)
}
