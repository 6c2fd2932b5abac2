package memory

import (
	"context"
	"sort"
	"time"

	domainchat "storefront/internal/domain/chat"
)

type MessageRepository struct {
	unit *Unit
}

func (r *MessageRepository) Append(_ context.Context, msg *domainchat.Message) error {
	s := r.unit.store
	chatID := msg.ChatID
	prevLen := len(s.messages[chatID])
	if err := r.unit.write(func() {
		if prevLen == 0 {
			delete(s.messages, chatID)
			return
		}
		s.messages[chatID] = s.messages[chatID][:prevLen]
	}); err != nil {
		return err
	}
	msg.Seq = s.nextSeq()
	s.messages[chatID] = append(s.messages[chatID], msg.Clone())
	return nil
}

func (r *MessageRepository) ListForChat(_ context.Context, chatID domainchat.ID, page domainchat.Page) ([]*domainchat.Message, int64, error) {
	if err := r.unit.readable(); err != nil {
		return nil, 0, err
	}
	visible := make([]*domainchat.Message, 0, len(r.unit.store.messages[chatID]))
	for _, m := range r.unit.store.messages[chatID] {
		if !m.Deleted {
			visible = append(visible, m)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		if !visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].CreatedAt.Before(visible[j].CreatedAt)
		}
		return visible[i].Seq < visible[j].Seq
	})
	start, end := page.Bounds(len(visible))
	out := make([]*domainchat.Message, 0, end-start)
	for _, m := range visible[start:end] {
		out = append(out, m.Clone())
	}
	return out, int64(len(visible)), nil
}

func (r *MessageRepository) MarkReadFor(_ context.Context, chatID domainchat.ID, readerID string, at time.Time) (int, error) {
	s := r.unit.store
	msgs := s.messages[chatID]
	snapshots := make(map[int][]domainchat.ReadReceipt)
	for i, m := range msgs {
		if m.SenderID == readerID || m.ReadByUser(readerID) {
			continue
		}
		snapshots[i] = append([]domainchat.ReadReceipt(nil), m.ReadBy...)
	}
	if len(snapshots) == 0 {
		return 0, r.unit.readable()
	}
	if err := r.unit.write(func() {
		for i, receipts := range snapshots {
			msgs[i].ReadBy = receipts
		}
	}); err != nil {
		return 0, err
	}
	marked := 0
	for i := range snapshots {
		if msgs[i].MarkReadBy(readerID, at) {
			marked++
		}
	}
	return marked, nil
}

var _ domainchat.MessageRepository = (*MessageRepository)(nil)
