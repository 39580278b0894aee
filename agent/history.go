package agent

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

const historyNamespace = "reservation:history"

// HistoryStore keeps the recent messages of each conversation, newest last.
type HistoryStore struct {
	store Store[[]*schema.Message]
	keep  int
}

// NewHistoryStore keeps at most keep messages per conversation; keep <= 0
// keeps everything.
func NewHistoryStore(core Cache[[]*schema.Message], keep int) *HistoryStore {
	return &HistoryStore{
		store: NewStore(core, historyNamespace, StateKeyFromContext),
		keep:  keep,
	}
}

func NewMemoryHistoryStore(keep int) *HistoryStore {
	return NewHistoryStore(NewMemoryCache[[]*schema.Message](), keep)
}

func (s *HistoryStore) Load(ctx context.Context) ([]*schema.Message, error) {
	hist, _, err := s.store.Get(ctx)
	return hist, err
}

func (s *HistoryStore) Clear(ctx context.Context) error {
	return s.store.Del(ctx)
}

// Append adds msgs, skipping nils and immediate repeats, trims and saves.
// It returns the saved history for passing to an adk runner.
func (s *HistoryStore) Append(ctx context.Context, msgs ...*schema.Message) ([]*schema.Message, error) {
	hist, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*schema.Message, 0, len(hist)+len(msgs))
	out = append(out, hist...)
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == msg.Role && out[n-1].Content == msg.Content {
			continue
		}
		out = append(out, msg)
	}
	if s.keep > 0 && len(out) > s.keep {
		out = out[len(out)-s.keep:]
	}
	if err := s.store.Set(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}
