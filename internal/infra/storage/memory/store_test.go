package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "storefront/internal/app/outbox"
	"storefront/internal/app/uow"
	domainchat "storefront/internal/domain/chat"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func begin(t *testing.T, s *Store, readOnly bool) (uow.UnitOfWork, context.Context) {
	t.Helper()
	unit, err := s.Begin(context.Background(), uow.TxOptions{ReadOnly: readOnly})
	require.NoError(t, err)
	return unit, uow.Attach(context.Background(), unit)
}

func seedChat(t *testing.T, s *Store, id, buyer, seller, product string, at time.Time) *domainchat.Chat {
	t.Helper()
	c, err := domainchat.NewChat(domainchat.CreateParams{ID: domainchat.ID(id), BuyerID: buyer, SellerID: seller, ProductID: product, Now: at})
	require.NoError(t, err)
	unit, ctx := begin(t, s, false)
	require.NoError(t, unit.Chats().Create(ctx, c))
	require.NoError(t, unit.Commit(ctx))
	return c
}

func TestCreateRejectsSecondActiveChat(t *testing.T) {
	s := NewStore(nil)
	seedChat(t, s, "c1", "u1", "u2", "p1", base)

	dup, err := domainchat.NewChat(domainchat.CreateParams{ID: "c2", BuyerID: "u1", SellerID: "u2", ProductID: "p1", Now: base})
	require.NoError(t, err)
	unit, ctx := begin(t, s, false)
	defer unit.Rollback(ctx)

	assert.ErrorIs(t, unit.Chats().Create(ctx, dup), domainchat.ErrDuplicateChat)

	found, err := unit.Chats().FindActive(ctx, "u2", "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, domainchat.ID("c1"), found.ID)
}

func TestDeactivatedChatFreesTheKey(t *testing.T) {
	s := NewStore(nil)
	seedChat(t, s, "c1", "u1", "u2", "p1", base)

	unit, ctx := begin(t, s, false)
	require.NoError(t, unit.Chats().Deactivate(ctx, "c1", "u1", base))
	_, err := unit.Chats().FindActive(ctx, "u1", "u2", "p1")
	assert.ErrorIs(t, err, domainchat.ErrChatNotFound)
	require.NoError(t, unit.Commit(ctx))

	seedChat(t, s, "c2", "u1", "u2", "p1", base.Add(time.Minute))

	unit, ctx = begin(t, s, true)
	defer unit.Rollback(ctx)
	chats, total, err := unit.Chats().ListForParticipant(ctx, "u1", domainchat.Page{Number: 1, Size: 20})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, domainchat.ID("c2"), chats[0].ID)
}

func TestDeactivateRequiresParticipant(t *testing.T) {
	s := NewStore(nil)
	seedChat(t, s, "c1", "u1", "u2", "p1", base)

	unit, ctx := begin(t, s, false)
	defer unit.Rollback(ctx)
	assert.ErrorIs(t, unit.Chats().Deactivate(ctx, "c1", "u3", base), domainchat.ErrChatNotFound)
	assert.ErrorIs(t, unit.Chats().Deactivate(ctx, "missing", "u1", base), domainchat.ErrChatNotFound)
}

func TestRollbackRestoresEveryWrite(t *testing.T) {
	s := NewStore(nil)
	seedChat(t, s, "c1", "u1", "u2", "p1", base)

	unit, ctx := begin(t, s, false)
	msg, err := domainchat.NewMessage(domainchat.MessageParams{ID: "m1", ChatID: "c1", SenderID: "u1", Content: "hello", Now: base.Add(time.Second)})
	require.NoError(t, err)
	require.NoError(t, unit.Messages().Append(ctx, msg))
	require.NoError(t, unit.Chats().TouchOnNewMessage(ctx, "c1", msg.Content, msg.SenderID, msg.CreatedAt))
	require.NoError(t, unit.Chats().IncrementUnreadForOthers(ctx, "c1", "u1"))
	require.NoError(t, unit.Rollback(ctx))

	unit, ctx = begin(t, s, true)
	defer unit.Rollback(ctx)
	c, err := unit.Chats().ByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "", c.LastMessage)
	assert.Equal(t, 0, c.Unread.Get("u2"))
	msgs, total, err := unit.Messages().ListForChat(ctx, "c1", domainchat.Page{Number: 1, Size: 50})
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Zero(t, total)
}

func TestReadOnlyUnitRejectsWrites(t *testing.T) {
	s := NewStore(nil)
	seedChat(t, s, "c1", "u1", "u2", "p1", base)

	unit, ctx := begin(t, s, true)
	defer unit.Rollback(ctx)
	assert.ErrorIs(t, unit.Chats().ResetUnread(ctx, "c1", "u1"), ErrReadOnly)
}

func TestListForParticipantOrdersByRecency(t *testing.T) {
	s := NewStore(nil)
	seedChat(t, s, "old", "u1", "u2", "p1", base)
	seedChat(t, s, "new", "u1", "u3", "p2", base.Add(time.Hour))
	seedChat(t, s, "tie", "u1", "u4", "p3", base.Add(time.Hour))
	seedChat(t, s, "other", "u5", "u6", "p4", base.Add(2*time.Hour))

	unit, ctx := begin(t, s, false)
	require.NoError(t, unit.Chats().TouchOnNewMessage(ctx, "old", "bump", "u2", base.Add(3*time.Hour)))
	require.NoError(t, unit.Commit(ctx))

	unit, ctx = begin(t, s, true)
	defer unit.Rollback(ctx)
	chats, total, err := unit.Chats().ListForParticipant(ctx, "u1", domainchat.Page{Number: 1, Size: 20})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	ids := []domainchat.ID{chats[0].ID, chats[1].ID, chats[2].ID}
	assert.Equal(t, []domainchat.ID{"old", "tie", "new"}, ids)

	page2, _, err := unit.Chats().ListForParticipant(ctx, "u1", domainchat.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, domainchat.ID("new"), page2[0].ID)
}

func TestTouchNeverMovesLastMessageBackwards(t *testing.T) {
	s := NewStore(nil)
	seedChat(t, s, "c1", "u1", "u2", "p1", base)

	unit, ctx := begin(t, s, false)
	require.NoError(t, unit.Chats().TouchOnNewMessage(ctx, "c1", "later", "u1", base.Add(2*time.Second)))
	require.NoError(t, unit.Chats().TouchOnNewMessage(ctx, "c1", "earlier", "u2", base.Add(time.Second)))
	c, err := unit.Chats().ByID(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, unit.Commit(ctx))

	assert.Equal(t, "later", c.LastMessage)
	assert.Equal(t, base.Add(2*time.Second), c.LastMessageAt)
}

func TestMessagesChronologicalWithSequenceTieBreak(t *testing.T) {
	s := NewStore(nil)
	seedChat(t, s, "c1", "u1", "u2", "p1", base)

	unit, ctx := begin(t, s, false)
	for i, content := range []string{"b", "c"} {
		msg, err := domainchat.NewMessage(domainchat.MessageParams{ID: domainchat.MessageID(content), ChatID: "c1", SenderID: "u1", Content: content, Now: base.Add(time.Duration(i+2) * time.Second)})
		require.NoError(t, err)
		require.NoError(t, unit.Messages().Append(ctx, msg))
	}
	early, err := domainchat.NewMessage(domainchat.MessageParams{ID: "a", ChatID: "c1", SenderID: "u2", Content: "a", Now: base.Add(2 * time.Second)})
	require.NoError(t, err)
	require.NoError(t, unit.Messages().Append(ctx, early))
	require.NoError(t, unit.Commit(ctx))

	unit, ctx = begin(t, s, true)
	defer unit.Rollback(ctx)
	msgs, total, err := unit.Messages().ListForChat(ctx, "c1", domainchat.Page{Number: 1, Size: 50})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, []string{"b", "a", "c"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
}

func TestMarkReadForIsIdempotent(t *testing.T) {
	s := NewStore(nil)
	seedChat(t, s, "c1", "u1", "u2", "p1", base)

	unit, ctx := begin(t, s, false)
	for i, sender := range []string{"u1", "u1", "u2"} {
		msg, err := domainchat.NewMessage(domainchat.MessageParams{ID: domainchat.MessageID(string(rune('a' + i))), ChatID: "c1", SenderID: sender, Content: "x", Now: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
		require.NoError(t, unit.Messages().Append(ctx, msg))
	}
	n, err := unit.Messages().MarkReadFor(ctx, "c1", "u2", base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = unit.Messages().MarkReadFor(ctx, "c1", "u2", base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.NoError(t, unit.Commit(ctx))
}

func TestConcurrentIncrementsAreAdditive(t *testing.T) {
	s := NewStore(nil)
	seedChat(t, s, "c1", "u1", "u2", "p1", base)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unit, err := s.Begin(context.Background(), uow.TxOptions{})
			if err != nil {
				return
			}
			ctx := uow.Attach(context.Background(), unit)
			_ = unit.Chats().IncrementUnreadForOthers(ctx, "c1", "u1")
			_ = unit.Commit(ctx)
		}()
	}
	wg.Wait()

	unit, ctx := begin(t, s, true)
	defer unit.Rollback(ctx)
	summary, err := unit.Chats().UnreadSummary(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, domainchat.UnreadSummary{Chats: 1, UnreadChats: 1, Unread: 50}, summary)
}

func TestOutboxStagesUntilCommit(t *testing.T) {
	box := NewOutbox(0)
	s := NewStore(box)

	unit, ctx := begin(t, s, false)
	require.NoError(t, box.Add(ctx, appoutbox.EventRecord{ID: "e1", Name: "chat.started"}))
	assert.Empty(t, box.Pending())
	require.NoError(t, unit.Rollback(ctx))
	assert.Empty(t, box.Pending())

	unit, ctx = begin(t, s, false)
	require.NoError(t, box.Add(ctx, appoutbox.EventRecord{ID: "e2", Name: "chat.started"}))
	require.NoError(t, unit.Commit(ctx))
	require.Len(t, box.Pending(), 1)

	claimed, err := box.Claim(context.Background(), "w")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "e2", claimed.ID)

	again, err := box.Claim(context.Background(), "w")
	require.NoError(t, err)
	assert.Nil(t, again)

	require.NoError(t, box.MarkFailed(context.Background(), "e2", time.Now().Add(-time.Second), "broker down"))
	retry, err := box.Claim(context.Background(), "w")
	require.NoError(t, err)
	require.NotNil(t, retry)
	assert.Equal(t, 1, retry.Attempts)

	require.NoError(t, box.MarkSent(context.Background(), "e2"))
	assert.Empty(t, box.Pending())
}

func TestOutboxDropsOldestWhenFull(t *testing.T) {
	box := NewOutbox(2)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, box.Add(context.Background(), appoutbox.EventRecord{ID: id}))
	}
	pending := box.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].ID)
	assert.Equal(t, 1, box.Dropped())
}

func TestIdempotencyStoreExpires(t *testing.T) {
	store := NewIdempotencyStore(time.Hour)
	now := base
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(context.Background(), middlewareRecord("k", base)))
	_, found, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, found)

	now = base.Add(2 * time.Hour)
	_, found, err = store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCatalogIgnoresStaleUpserts(t *testing.T) {
	cat := NewCatalog()
	ctx := context.Background()
	require.NoError(t, cat.UpsertProduct(ctx, productAt("p1", "New", base.Add(time.Hour))))
	require.NoError(t, cat.UpsertProduct(ctx, productAt("p1", "Old", base)))

	p, err := cat.ResolveProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "New", p.Name)

	require.NoError(t, cat.RemoveProduct(ctx, "p1"))
	_, err = cat.ResolveProduct(ctx, "p1")
	assert.Error(t, err)
}

func TestInboxSeen(t *testing.T) {
	inbox := NewInbox()
	seen, err := inbox.Seen(context.Background(), "evt")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = inbox.Seen(context.Background(), "evt")
	require.NoError(t, err)
	assert.True(t, seen)
}
