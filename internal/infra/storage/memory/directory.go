package memory

import (
	"context"
	"strings"
	"sync"

	"storefront/internal/app/policies"
	domainuser "storefront/internal/domain/user"
)

// Directory is an in-memory participant directory.
type Directory struct {
	mu    sync.RWMutex
	users map[string]domainuser.Profile
}

func NewDirectory(profiles ...domainuser.Profile) *Directory {
	d := &Directory{users: make(map[string]domainuser.Profile)}
	for _, p := range profiles {
		d.Put(p)
	}
	return d
}

func (d *Directory) Put(p domainuser.Profile) {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p.ID = id
	d.users[id] = p
}

func (d *Directory) ResolveUsers(_ context.Context, ids []string) (map[string]domainuser.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]domainuser.Profile, len(ids))
	for _, id := range ids {
		if p, ok := d.users[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

var _ policies.ParticipantDirectory = (*Directory)(nil)
