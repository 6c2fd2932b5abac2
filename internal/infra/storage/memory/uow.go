package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "storefront/internal/app/outbox"
	"storefront/internal/app/uow"
	domainchat "storefront/internal/domain/chat"
)

var (
	ErrUnitClosed = errors.New("memory: unit of work already finished")
	ErrReadOnly   = errors.New("memory: write attempted in read-only unit of work")
)

// Store keeps chats and messages in process memory. A write unit holds the
// store lock until it finishes, so commands are serialized and a rollback
// replays the undo journal in reverse.
type Store struct {
	mu       sync.RWMutex
	chats    map[domainchat.ID]*domainchat.Chat
	active   map[string]domainchat.ID
	messages map[domainchat.ID][]*domainchat.Message
	seq      int64
	outbox   *Outbox
}

// NewStore builds an empty store. Events staged by write units are handed
// to box on commit; box may be nil.
func NewStore(box *Outbox) *Store {
	return &Store{
		chats:    make(map[domainchat.ID]*domainchat.Chat),
		active:   make(map[string]domainchat.ID),
		messages: make(map[domainchat.ID][]*domainchat.Message),
		outbox:   box,
	}
}

func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.ReadOnly {
		s.mu.RLock()
	} else {
		s.mu.Lock()
	}
	return &Unit{store: s, readOnly: opts.ReadOnly}, nil
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

// Unit is a uow.UnitOfWork over Store.
type Unit struct {
	store    *Store
	readOnly bool
	done     bool
	undo     []func()
	staged   []appoutbox.EventRecord
}

func (u *Unit) Chats() domainchat.Repository {
	return &ChatRepository{unit: u}
}

func (u *Unit) Messages() domainchat.MessageRepository {
	return &MessageRepository{unit: u}
}

func (u *Unit) Commit(context.Context) error {
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	u.undo = nil
	staged := u.staged
	u.staged = nil
	u.unlock()
	if u.store.outbox != nil && len(staged) > 0 {
		u.store.outbox.enqueue(staged...)
	}
	return nil
}

func (u *Unit) Rollback(context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
	u.staged = nil
	u.unlock()
	return nil
}

func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, unitKey{}, u)
}

func (u *Unit) unlock() {
	if u.readOnly {
		u.store.mu.RUnlock()
		return
	}
	u.store.mu.Unlock()
}

// write registers an undo step; it fails for finished or read-only units.
func (u *Unit) write(undo func()) error {
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnly
	}
	u.undo = append(u.undo, undo)
	return nil
}

func (u *Unit) readable() error {
	if u.done {
		return ErrUnitClosed
	}
	return nil
}

type unitKey struct{}

func unitFromContext(ctx context.Context) (*Unit, bool) {
	u, ok := ctx.Value(unitKey{}).(*Unit)
	return u, ok && u != nil && !u.done
}

var (
	_ uow.UoWFactory      = (*Store)(nil)
	_ uow.ContextInjector = (*Unit)(nil)
)
