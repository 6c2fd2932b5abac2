package middleware

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/app/apperr"
	"storefront/internal/app/commands"
	appoutbox "storefront/internal/app/outbox"
	"storefront/internal/app/uow"
	domainchat "storefront/internal/domain/chat"
)

type postCommand struct {
	CallerID string `validate:"required" field:"caller_id"`
	Content  string `validate:"required,max=5" field:"content"`
	IdemKey  string
}

func (postCommand) Key() string              { return "test.post" }
func (c postCommand) ActorID() string        { return c.CallerID }
func (c postCommand) IdempotencyKey() string { return c.IdemKey }
func (postCommand) ResultPrototype() any     { return &postResult{} }

type postResult struct {
	N int `json:"n"`
}

type fakeUnit struct {
	committed  bool
	rolledBack bool
}

func (u *fakeUnit) Chats() domainchat.Repository           { return nil }
func (u *fakeUnit) Messages() domainchat.MessageRepository { return nil }

func (u *fakeUnit) Commit(context.Context) error {
	u.committed = true
	return nil
}

func (u *fakeUnit) Rollback(context.Context) error {
	u.rolledBack = true
	return nil
}

type fakeFactory struct {
	units []*fakeUnit
}

func (f *fakeFactory) Begin(context.Context, uow.TxOptions) (uow.UnitOfWork, error) {
	u := &fakeUnit{}
	f.units = append(f.units, u)
	return u, nil
}

type memIdempotency struct {
	mu   sync.Mutex
	recs map[string]IdempotencyRecord
}

func (m *memIdempotency) Get(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[key]
	return rec, ok, nil
}

func (m *memIdempotency) Save(_ context.Context, rec IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.Key] = rec
	return nil
}

func busWith(handler func(ctx context.Context, cmd postCommand) (*postResult, error)) *commands.InMemoryBus {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[postCommand, *postResult](bus, "test.post", commands.HandlerFunc[postCommand, *postResult](handler))
	return bus
}

func TestTransactionCommitsAndRollsBack(t *testing.T) {
	factory := &fakeFactory{}
	ok := ChainCommands(busWith(func(ctx context.Context, _ postCommand) (*postResult, error) {
		_, inUnit := uow.FromContext(ctx)
		assert.True(t, inUnit)
		return &postResult{N: 1}, nil
	}), Transaction(factory, nil, 1))

	_, err := ok.Dispatch(context.Background(), postCommand{})
	require.NoError(t, err)
	require.Len(t, factory.units, 1)
	assert.True(t, factory.units[0].committed)
	assert.False(t, factory.units[0].rolledBack)

	failing := ChainCommands(busWith(func(context.Context, postCommand) (*postResult, error) {
		return nil, apperr.Forbidden("no", nil)
	}), Transaction(factory, nil, 3))
	_, err = failing.Dispatch(context.Background(), postCommand{})
	require.Error(t, err)
	require.Len(t, factory.units, 2)
	assert.True(t, factory.units[1].rolledBack)
}

func TestTransactionRetriesConflicts(t *testing.T) {
	factory := &fakeFactory{}
	calls := 0
	bus := ChainCommands(busWith(func(context.Context, postCommand) (*postResult, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("insert: %w", uow.ErrConflict)
		}
		return &postResult{N: calls}, nil
	}), Transaction(factory, nil, 2))

	res, err := commands.Dispatch[postCommand, *postResult](context.Background(), bus, postCommand{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.N)
	require.Len(t, factory.units, 2)
	assert.True(t, factory.units[0].rolledBack)
	assert.True(t, factory.units[1].committed)
}

func TestValidationReportsField(t *testing.T) {
	called := false
	bus := ChainCommands(busWith(func(context.Context, postCommand) (*postResult, error) {
		called = true
		return &postResult{}, nil
	}), Validation(NewStructValidator()))

	_, err := bus.Dispatch(context.Background(), postCommand{CallerID: "u1", Content: "toolong"})
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, "content", appErr.Field)
	assert.False(t, called)
}

func TestAuthorizationRequiresCaller(t *testing.T) {
	bus := ChainCommands(busWith(func(context.Context, postCommand) (*postResult, error) {
		return &postResult{}, nil
	}), Authorization(CallerRequired{}))

	_, err := bus.Dispatch(context.Background(), postCommand{})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = bus.Dispatch(context.Background(), postCommand{CallerID: "u1"})
	assert.NoError(t, err)
}

func TestIdempotencyReplaysResultAndClientErrors(t *testing.T) {
	store := &memIdempotency{recs: map[string]IdempotencyRecord{}}
	var calls int32
	bus := ChainCommands(busWith(func(_ context.Context, cmd postCommand) (*postResult, error) {
		n := atomic.AddInt32(&calls, 1)
		if cmd.Content == "bad" {
			return nil, apperr.Validation("content", "bad content", nil)
		}
		return &postResult{N: int(n)}, nil
	}), Idempotency(store, nil))

	first, err := commands.Dispatch[postCommand, *postResult](context.Background(), bus, postCommand{Content: "hi", IdemKey: "k1"})
	require.NoError(t, err)
	second, err := commands.Dispatch[postCommand, *postResult](context.Background(), bus, postCommand{Content: "hi", IdemKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, first.N, second.N)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	_, err = bus.Dispatch(context.Background(), postCommand{Content: "bad", IdemKey: "k2"})
	require.Error(t, err)
	_, err = bus.Dispatch(context.Background(), postCommand{Content: "bad", IdemKey: "k2"})
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, "content", appErr.Field)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestIdempotencyDoesNotStoreStorageFailures(t *testing.T) {
	store := &memIdempotency{recs: map[string]IdempotencyRecord{}}
	bus := ChainCommands(busWith(func(context.Context, postCommand) (*postResult, error) {
		return nil, apperr.Storage(fmt.Errorf("disk"))
	}), Idempotency(store, nil))

	_, err := bus.Dispatch(context.Background(), postCommand{IdemKey: "k"})
	require.Error(t, err)
	_, found, _ := store.Get(context.Background(), "k")
	assert.False(t, found)
}

type flushSpy struct {
	factory          *fakeFactory
	committedAtFlush []bool
}

func (s *flushSpy) Add(context.Context, appoutbox.EventRecord) error { return nil }

func (s *flushSpy) Flush(context.Context) error {
	last := s.factory.units[len(s.factory.units)-1]
	s.committedAtFlush = append(s.committedAtFlush, last.committed)
	return nil
}

func TestOutboxFlushRunsAfterCommit(t *testing.T) {
	factory := &fakeFactory{}
	spy := &flushSpy{factory: factory}
	bus := ChainCommands(busWith(func(context.Context, postCommand) (*postResult, error) {
		return &postResult{N: 1}, nil
	}), OutboxFlush(spy, nil), Transaction(factory, nil, 1))

	_, err := bus.Dispatch(context.Background(), postCommand{})
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, spy.committedAtFlush)
}

func TestOutboxFlushSkippedOnFailure(t *testing.T) {
	factory := &fakeFactory{}
	spy := &flushSpy{factory: factory}
	bus := ChainCommands(busWith(func(context.Context, postCommand) (*postResult, error) {
		return nil, apperr.Forbidden("no", nil)
	}), OutboxFlush(spy, nil), Transaction(factory, nil, 1))

	_, err := bus.Dispatch(context.Background(), postCommand{})
	require.Error(t, err)
	assert.Empty(t, spy.committedAtFlush)
}
