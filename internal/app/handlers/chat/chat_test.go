package chat_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront/internal/app/apperr"
	"storefront/internal/app/commands"
	"storefront/internal/app/dto"
	chathandlers "storefront/internal/app/handlers/chat"
	"storefront/internal/app/middleware"
	"storefront/internal/app/queries"
	domaincatalog "storefront/internal/domain/catalog"
	domainchat "storefront/internal/domain/chat"
	domainuser "storefront/internal/domain/user"
	"storefront/internal/infra/storage/memory"
)

type harness struct {
	store    *memory.Store
	outbox   *memory.Outbox
	commands commands.Bus
	queries  queries.Bus
}

func newHarness(t *testing.T, mutate func(*chathandlers.Dependencies)) *harness {
	t.Helper()
	box := memory.NewOutbox(0)
	store := memory.NewStore(box)
	clock := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	ids := 0
	deps := chathandlers.Dependencies{
		UoWFactory: store,
		Directory: memory.NewDirectory(
			domainuser.Profile{ID: "U1", Name: "Bea Buyer"},
			domainuser.Profile{ID: "U2", Name: "Sam Seller"},
			domainuser.Profile{ID: "U3", Name: "Ola Outsider"},
		),
		Catalog: memory.NewCatalog(domaincatalog.Product{ID: "P1", SellerID: "U2", Name: "Rain jacket", Images: []string{"jacket.jpg"}}),
		Outbox:  box,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		},
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
	}
	if mutate != nil {
		mutate(&deps)
	}
	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	chathandlers.Register(cmdBus, queryBus, deps)
	validator := middleware.NewStructValidator()
	return &harness{
		store:  store,
		outbox: box,
		commands: middleware.ChainCommands(cmdBus,
			middleware.Authorization(middleware.CallerRequired{}),
			middleware.Validation(validator),
			middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil),
			middleware.OutboxFlush(box, nil),
			middleware.Transaction(store, nil, 2),
		),
		queries: middleware.ChainQueries(queryBus,
			middleware.QueryAuthorization(middleware.CallerRequired{}),
			middleware.QueryValidation(validator),
		),
	}
}

func (h *harness) start(t *testing.T, caller, product, other string) *dto.StartChatResult {
	t.Helper()
	res, err := commands.Dispatch[chathandlers.StartChatCommand, *dto.StartChatResult](context.Background(), h.commands,
		chathandlers.StartChatCommand{CallerID: caller, ProductID: product, OtherPartyID: other})
	require.NoError(t, err)
	return res
}

func (h *harness) post(caller, chatID, content string) (*dto.ChatMessage, error) {
	return commands.Dispatch[chathandlers.PostMessageCommand, *dto.ChatMessage](context.Background(), h.commands,
		chathandlers.PostMessageCommand{CallerID: caller, ChatID: chatID, Content: content})
}

func (h *harness) open(caller, chatID string) (*dto.ChatThread, error) {
	return commands.Dispatch[chathandlers.OpenChatCommand, *dto.ChatThread](context.Background(), h.commands,
		chathandlers.OpenChatCommand{CallerID: caller, ChatID: chatID})
}

func (h *harness) list(t *testing.T, caller string) dto.ChatList {
	t.Helper()
	res, err := queries.Ask[chathandlers.ListChatsQuery, dto.ChatList](context.Background(), h.queries, chathandlers.ListChatsQuery{CallerID: caller})
	require.NoError(t, err)
	return res
}

func (h *harness) unread(t *testing.T, caller string) dto.UnreadSummary {
	t.Helper()
	res, err := queries.Ask[chathandlers.UnreadSummaryQuery, dto.UnreadSummary](context.Background(), h.queries, chathandlers.UnreadSummaryQuery{CallerID: caller})
	require.NoError(t, err)
	return res
}

func requireKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected apperr, got %v", err)
	require.Equal(t, kind, appErr.Kind)
	return appErr
}

func TestBuyerSellerConversation(t *testing.T) {
	h := newHarness(t, nil)

	started := h.start(t, "U1", "P1", "U2")
	require.True(t, started.Created)
	c1 := started.Chat
	assert.Equal(t, []dto.Participant{
		{UserID: "U1", Role: "buyer", Name: "Bea Buyer"},
		{UserID: "U2", Role: "seller", Name: "Sam Seller"},
	}, c1.Participants)
	assert.Equal(t, 0, c1.UnreadCount)
	assert.Equal(t, "Rain jacket", c1.Product.Name)

	again := h.start(t, "U1", "P1", "U2")
	assert.False(t, again.Created)
	assert.Equal(t, c1.ID, again.Chat.ID)
	assert.Len(t, h.list(t, "U1").Items, 1)

	m1, err := h.post("U1", c1.ID, "Is this available in size M?")
	require.NoError(t, err)
	sellerView := h.list(t, "U2").Items[0]
	assert.Equal(t, "Is this available in size M?", sellerView.LastMessage)
	assert.Equal(t, 1, sellerView.UnreadCount)

	thread, err := h.open("U2", c1.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, thread.Chat.UnreadCount)
	require.Len(t, thread.Messages.Items, 1)
	assert.Equal(t, m1.ID, thread.Messages.Items[0].ID)
	require.Len(t, thread.Messages.Items[0].ReadBy, 1)
	assert.Equal(t, "U2", thread.Messages.Items[0].ReadBy[0].UserID)
	assert.Equal(t, 0, h.unread(t, "U2").Unread)

	_, err = h.post("U2", c1.ID, "Yes, in stock")
	require.NoError(t, err)
	buyerView := h.list(t, "U1").Items[0]
	assert.Equal(t, 1, buyerView.UnreadCount)
	assert.Equal(t, "Yes, in stock", buyerView.LastMessage)
	assert.Equal(t, "U2", buyerView.LastMessageBy)

	deactivated, err := commands.Dispatch[chathandlers.DeactivateChatCommand, *dto.DeactivateResult](context.Background(), h.commands,
		chathandlers.DeactivateChatCommand{CallerID: "U1", ChatID: c1.ID})
	require.NoError(t, err)
	assert.Equal(t, "inactive", deactivated.Status)

	_, err = h.post("U1", c1.ID, "hello")
	requireKind(t, err, apperr.KindForbidden)
	assert.Empty(t, h.list(t, "U1").Items)
	assert.Empty(t, h.list(t, "U2").Items)

	names := make([]string, 0)
	for _, rec := range h.outbox.Pending() {
		names = append(names, rec.Name)
	}
	assert.Equal(t, []string{
		domainchat.EventChatStarted,
		domainchat.EventMessagePosted,
		domainchat.EventChatRead,
		domainchat.EventMessagePosted,
		domainchat.EventChatDeactivated,
	}, names)
}

func TestPostMessageTooLongLeavesChatUntouched(t *testing.T) {
	h := newHarness(t, nil)
	c1 := h.start(t, "U1", "P1", "U2").Chat

	_, err := h.post("U1", c1.ID, strings.Repeat("x", 1001))
	appErr := requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, "content", appErr.Field)

	_, err = h.post("U1", c1.ID, "   ")
	requireKind(t, err, apperr.KindValidation)

	thread, err := h.open("U1", c1.ID)
	require.NoError(t, err)
	assert.Empty(t, thread.Messages.Items)
	assert.Equal(t, "", thread.Chat.LastMessage)
	assert.Equal(t, 0, h.unread(t, "U2").Unread)
}

func TestMembershipErrorsAreSplit(t *testing.T) {
	h := newHarness(t, nil)
	c1 := h.start(t, "U1", "P1", "U2").Chat

	_, err := h.post("U3", c1.ID, "let me in")
	requireKind(t, err, apperr.KindForbidden)

	_, err = h.open("U3", c1.ID)
	requireKind(t, err, apperr.KindForbidden)

	_, err = h.post("U1", "missing", "hello")
	requireKind(t, err, apperr.KindNotFound)

	_, err = commands.Dispatch[chathandlers.MarkReadCommand, *dto.MarkReadResult](context.Background(), h.commands,
		chathandlers.MarkReadCommand{CallerID: "U3", ChatID: c1.ID})
	requireKind(t, err, apperr.KindForbidden)
}

func TestOutsiderCannotChangeChatState(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	c1 := h.start(t, "U1", "P1", "U2").Chat
	_, err := h.post("U1", c1.ID, "is it waterproof?")
	require.NoError(t, err)
	_, err = h.post("U2", c1.ID, "yes")
	require.NoError(t, err)

	buyerBefore := h.list(t, "U1")
	sellerBefore := h.list(t, "U2")
	pendingBefore := len(h.outbox.Pending())
	require.Len(t, buyerBefore.Items, 1)
	require.Equal(t, 1, buyerBefore.Items[0].UnreadCount)
	require.Equal(t, 1, sellerBefore.Items[0].UnreadCount)

	_, err = h.post("U3", c1.ID, "let me in")
	requireKind(t, err, apperr.KindForbidden)
	_, err = commands.Dispatch[chathandlers.MarkReadCommand, *dto.MarkReadResult](ctx, h.commands,
		chathandlers.MarkReadCommand{CallerID: "U3", ChatID: c1.ID})
	requireKind(t, err, apperr.KindForbidden)
	_, err = commands.Dispatch[chathandlers.DeactivateChatCommand, *dto.DeactivateResult](ctx, h.commands,
		chathandlers.DeactivateChatCommand{CallerID: "U3", ChatID: c1.ID})
	requireKind(t, err, apperr.KindForbidden)
	_, err = commands.Dispatch[chathandlers.DeactivateChatCommand, *dto.DeactivateResult](ctx, h.commands,
		chathandlers.DeactivateChatCommand{CallerID: "U1", ChatID: "missing"})
	requireKind(t, err, apperr.KindNotFound)

	assert.Equal(t, buyerBefore, h.list(t, "U1"))
	assert.Equal(t, sellerBefore, h.list(t, "U2"))
	assert.Equal(t, pendingBefore, len(h.outbox.Pending()))

	thread, err := h.open("U1", c1.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domainchat.StatusActive), thread.Chat.Status)
	assert.Equal(t, "yes", thread.Chat.LastMessage)
	require.Len(t, thread.Messages.Items, 2)
	for _, msg := range thread.Messages.Items {
		assert.NotEqual(t, "U3", msg.SenderID)
		for _, r := range msg.ReadBy {
			assert.NotEqual(t, "U3", r.UserID)
		}
	}
	assert.Empty(t, h.list(t, "U3").Items)
}

func TestBlankIDsAreValidationErrors(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	c1 := h.start(t, "U1", "P1", "U2").Chat

	_, err := h.commands.Dispatch(ctx, chathandlers.StartChatCommand{CallerID: "U1", ProductID: "   ", OtherPartyID: "U2"})
	appErr := requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, "product_id", appErr.Field)

	_, err = h.post("U1", "  ", "hello")
	appErr = requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, "chat_id", appErr.Field)

	_, err = commands.Dispatch[chathandlers.DeactivateChatCommand, *dto.DeactivateResult](ctx, h.commands,
		chathandlers.DeactivateChatCommand{CallerID: "U1", ChatID: " "})
	requireKind(t, err, apperr.KindValidation)

	thread, err := h.open("U1", c1.ID)
	require.NoError(t, err)
	assert.Empty(t, thread.Messages.Items)
}

func TestStartChatValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.commands.Dispatch(ctx, chathandlers.StartChatCommand{CallerID: "U1", ProductID: "P1", OtherPartyID: "U1"})
	requireKind(t, err, apperr.KindValidation)

	_, err = h.commands.Dispatch(ctx, chathandlers.StartChatCommand{CallerID: "U1", ProductID: "missing", OtherPartyID: "U2"})
	appErr := requireKind(t, err, apperr.KindInvalidReference)
	assert.Equal(t, "product_id", appErr.Field)

	_, err = h.commands.Dispatch(ctx, chathandlers.StartChatCommand{CallerID: "U1", ProductID: "P1", OtherPartyID: "U3"})
	requireKind(t, err, apperr.KindValidation)

	_, err = h.commands.Dispatch(ctx, chathandlers.StartChatCommand{CallerID: "U2", ProductID: "P1"})
	requireKind(t, err, apperr.KindValidation)

	_, err = h.commands.Dispatch(ctx, chathandlers.StartChatCommand{CallerID: "U2", ProductID: "P1", OtherPartyID: "U9"})
	requireKind(t, err, apperr.KindInvalidReference)

	_, err = h.commands.Dispatch(ctx, chathandlers.StartChatCommand{ProductID: "P1", OtherPartyID: "U2"})
	requireKind(t, err, apperr.KindUnauthorized)

	_, err = h.commands.Dispatch(ctx, chathandlers.StartChatCommand{CallerID: "U1"})
	appErr = requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, "product_id", appErr.Field)
}

func TestStartChatDerivesSellerAndSellerCanStart(t *testing.T) {
	h := newHarness(t, nil)

	byBuyer := h.start(t, "U1", "P1", "")
	assert.True(t, byBuyer.Created)
	assert.Equal(t, "U2", byBuyer.Chat.Participants[1].UserID)

	bySeller := h.start(t, "U2", "P1", "U1")
	assert.False(t, bySeller.Created)
	assert.Equal(t, byBuyer.Chat.ID, bySeller.Chat.ID)

	withOther := h.start(t, "U2", "P1", "U3")
	assert.True(t, withOther.Created)
	assert.Equal(t, "U3", withOther.Chat.Participants[0].UserID)
	assert.Equal(t, "buyer", withOther.Chat.Participants[0].Role)
}

func TestStartChatReturnsExistingEvenIfProductRemoved(t *testing.T) {
	catalog := memory.NewCatalog(domaincatalog.Product{ID: "P1", SellerID: "U2", Name: "Rain jacket"})
	h := newHarness(t, func(d *chathandlers.Dependencies) { d.Catalog = catalog })
	first := h.start(t, "U1", "P1", "U2")

	require.NoError(t, catalog.RemoveProduct(context.Background(), "P1"))
	again := h.start(t, "U1", "P1", "U2")
	assert.False(t, again.Created)
	assert.Equal(t, first.Chat.ID, again.Chat.ID)
	assert.Equal(t, dto.ProductSummary{ID: "P1"}, again.Chat.Product)
}

func TestConcurrentStartCreatesOneChat(t *testing.T) {
	h := newHarness(t, nil)
	var wg sync.WaitGroup
	results := make([]*dto.StartChatResult, 10)
	errs := make([]error, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = commands.Dispatch[chathandlers.StartChatCommand, *dto.StartChatResult](context.Background(), h.commands,
				chathandlers.StartChatCommand{CallerID: "U1", ProductID: "P1", OtherPartyID: "U2"})
		}(i)
	}
	wg.Wait()

	created := 0
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Chat.ID, results[i].Chat.ID)
		if results[i].Created {
			created++
		}
	}
	assert.Equal(t, 1, created)
}

func TestConcurrentPostsComposeUnreadCounts(t *testing.T) {
	h := newHarness(t, nil)
	c1 := h.start(t, "U1", "P1", "U2").Chat

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.post("U1", c1.ID, fmt.Sprintf("message %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, dto.UnreadSummary{Chats: 1, UnreadChats: 1, Unread: 20}, h.unread(t, "U2"))
	assert.Equal(t, dto.UnreadSummary{Chats: 1}, h.unread(t, "U1"))
}

func TestMarkReadIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	c1 := h.start(t, "U1", "P1", "U2").Chat
	for _, text := range []string{"one", "two"} {
		_, err := h.post("U1", c1.ID, text)
		require.NoError(t, err)
	}
	markRead := func() *dto.MarkReadResult {
		res, err := commands.Dispatch[chathandlers.MarkReadCommand, *dto.MarkReadResult](context.Background(), h.commands,
			chathandlers.MarkReadCommand{CallerID: "U2", ChatID: c1.ID})
		require.NoError(t, err)
		return res
	}

	first := markRead()
	assert.Equal(t, 2, first.Receipts)
	assert.Equal(t, 0, first.Unread)

	second := markRead()
	assert.Equal(t, 0, second.Receipts)

	thread, err := h.open("U1", c1.ID)
	require.NoError(t, err)
	for _, m := range thread.Messages.Items {
		assert.Len(t, m.ReadBy, 1)
	}
}

func TestPostMessageIdempotencyKeyReplays(t *testing.T) {
	h := newHarness(t, nil)
	c1 := h.start(t, "U1", "P1", "U2").Chat
	cmd := chathandlers.PostMessageCommand{CallerID: "U1", ChatID: c1.ID, Content: "once", IdempotencyKeyV: "abc"}

	first, err := commands.Dispatch[chathandlers.PostMessageCommand, *dto.ChatMessage](context.Background(), h.commands, cmd)
	require.NoError(t, err)
	second, err := commands.Dispatch[chathandlers.PostMessageCommand, *dto.ChatMessage](context.Background(), h.commands, cmd)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, h.unread(t, "U2").Unread)
}

func TestListChatsPagination(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t, "U1", "P1", "U2")
	h.start(t, "U3", "P1", "U2")

	res, err := queries.Ask[chathandlers.ListChatsQuery, dto.ChatList](context.Background(), h.queries,
		chathandlers.ListChatsQuery{CallerID: "U2", Page: 2, PageSize: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)
	assert.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Items, 1)

	_, err = queries.Ask[chathandlers.ListChatsQuery, dto.ChatList](context.Background(), h.queries,
		chathandlers.ListChatsQuery{CallerID: "U2", PageSize: 101})
	requireKind(t, err, apperr.KindValidation)
}

type directoryMock struct {
	mock.Mock
}

func (m *directoryMock) ResolveUsers(ctx context.Context, ids []string) (map[string]domainuser.Profile, error) {
	args := m.Called(ctx, ids)
	users, _ := args.Get(0).(map[string]domainuser.Profile)
	return users, args.Error(1)
}

func TestDirectoryOutageFallsBackToIDs(t *testing.T) {
	dir := new(directoryMock)
	dir.On("ResolveUsers", mock.Anything, mock.Anything).Return(nil, errors.New("directory down"))
	h := newHarness(t, func(d *chathandlers.Dependencies) { d.Directory = dir })

	res := h.start(t, "U1", "P1", "U2")
	assert.Equal(t, "U1", res.Chat.Participants[0].Name)
	assert.Equal(t, "U2", res.Chat.Participants[1].Name)
	dir.AssertExpectations(t)
}
