package memory

import (
	"context"
	"sort"
	"time"

	domainchat "storefront/internal/domain/chat"
)

// ChatRepository is the chat registry view of a Unit.
type ChatRepository struct {
	unit *Unit
}

func activeKey(a, b, productID string) string {
	return domainchat.PairKey(a, b) + "#" + productID
}

func (r *ChatRepository) ByID(_ context.Context, id domainchat.ID) (*domainchat.Chat, error) {
	if err := r.unit.readable(); err != nil {
		return nil, err
	}
	c, ok := r.unit.store.chats[id]
	if !ok {
		return nil, domainchat.ErrChatNotFound
	}
	return c.Clone(), nil
}

func (r *ChatRepository) FindActive(_ context.Context, userA, userB, productID string) (*domainchat.Chat, error) {
	if err := r.unit.readable(); err != nil {
		return nil, err
	}
	id, ok := r.unit.store.active[activeKey(userA, userB, productID)]
	if !ok {
		return nil, domainchat.ErrChatNotFound
	}
	return r.unit.store.chats[id].Clone(), nil
}

func (r *ChatRepository) Create(_ context.Context, c *domainchat.Chat) error {
	s := r.unit.store
	key := activeKey(c.Participants.Buyer.UserID, c.Participants.Seller.UserID, c.ProductID)
	if _, exists := s.active[key]; exists {
		return domainchat.ErrDuplicateChat
	}
	if _, exists := s.chats[c.ID]; exists {
		return domainchat.ErrDuplicateChat
	}
	if err := r.unit.write(func() {
		delete(s.chats, c.ID)
		delete(s.active, key)
	}); err != nil {
		return err
	}
	c.Seq = s.nextSeq()
	stored := c.Clone()
	s.chats[c.ID] = stored
	if stored.IsActive() {
		s.active[key] = c.ID
	}
	return nil
}

func (r *ChatRepository) ListForParticipant(_ context.Context, userID string, page domainchat.Page) ([]*domainchat.Chat, int64, error) {
	if err := r.unit.readable(); err != nil {
		return nil, 0, err
	}
	var matched []*domainchat.Chat
	for _, c := range r.unit.store.chats {
		if c.IsActive() && c.Participants.Contains(userID) {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].LastMessageAt.Equal(matched[j].LastMessageAt) {
			return matched[i].LastMessageAt.After(matched[j].LastMessageAt)
		}
		return matched[i].Seq > matched[j].Seq
	})
	start, end := page.Bounds(len(matched))
	out := make([]*domainchat.Chat, 0, end-start)
	for _, c := range matched[start:end] {
		out = append(out, c.Clone())
	}
	return out, int64(len(matched)), nil
}

// mutate snapshots the chat for rollback before fn changes it in place.
func (r *ChatRepository) mutate(id domainchat.ID, fn func(c *domainchat.Chat) error) error {
	s := r.unit.store
	c, ok := s.chats[id]
	if !ok {
		return domainchat.ErrChatNotFound
	}
	snapshot := c.Clone()
	if err := r.unit.write(func() { s.chats[id] = snapshot }); err != nil {
		return err
	}
	return fn(c)
}

func (r *ChatRepository) TouchOnNewMessage(_ context.Context, id domainchat.ID, content, senderID string, at time.Time) error {
	return r.mutate(id, func(c *domainchat.Chat) error {
		if !at.Before(c.LastMessageAt) {
			c.LastMessage = content
			c.LastMessageAt = at
			c.LastMessageBy = senderID
		}
		c.Seq = r.unit.store.nextSeq()
		c.UpdatedAt = at
		return nil
	})
}

func (r *ChatRepository) IncrementUnreadForOthers(_ context.Context, id domainchat.ID, senderID string) error {
	return r.mutate(id, func(c *domainchat.Chat) error {
		if c.Unread == nil {
			c.Unread = domainchat.UnreadCounts{}
		}
		c.Unread.IncrementOthers(c.Participants, senderID)
		return nil
	})
}

func (r *ChatRepository) ResetUnread(_ context.Context, id domainchat.ID, userID string) error {
	return r.mutate(id, func(c *domainchat.Chat) error {
		if c.Unread == nil {
			c.Unread = domainchat.UnreadCounts{}
		}
		c.Unread.Reset(userID)
		return nil
	})
}

func (r *ChatRepository) Deactivate(_ context.Context, id domainchat.ID, userID string, at time.Time) error {
	s := r.unit.store
	c, ok := s.chats[id]
	if !ok || !c.IsActive() || !c.Participants.Contains(userID) {
		return domainchat.ErrChatNotFound
	}
	key := activeKey(c.Participants.Buyer.UserID, c.Participants.Seller.UserID, c.ProductID)
	if err := r.unit.write(func() { s.active[key] = id }); err != nil {
		return err
	}
	delete(s.active, key)
	return r.mutate(id, func(c *domainchat.Chat) error {
		c.Status = domainchat.StatusInactive
		c.UpdatedAt = at.UTC()
		return nil
	})
}

func (r *ChatRepository) UnreadSummary(_ context.Context, userID string) (domainchat.UnreadSummary, error) {
	if err := r.unit.readable(); err != nil {
		return domainchat.UnreadSummary{}, err
	}
	var summary domainchat.UnreadSummary
	for _, c := range r.unit.store.chats {
		if !c.IsActive() || !c.Participants.Contains(userID) {
			continue
		}
		summary.Chats++
		if n := c.Unread.Get(userID); n > 0 {
			summary.UnreadChats++
			summary.Unread += n
		}
	}
	return summary, nil
}

var _ domainchat.Repository = (*ChatRepository)(nil)
