package agent

import (
	"context"
	"time"

	"github.com/ant0n-grachev/telegram-reservation-bot/types"
)

const sessionNamespace = "reservation:session"

// State is the per-conversation session record.
type State struct {
	Phase          types.Phase       `json:"phase"`
	Form           types.Reservation `json:"form"`
	LatestQuestion string            `json:"latest_question,omitempty"`
	// Submitting is set while the booking call for this session is in flight.
	Submitting bool      `json:"submitting,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type stateKeyContext struct{}

// WithStateKey sets the conversation key used to route session storage.
func WithStateKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, stateKeyContext{}, key)
}

// StateKeyFromContext gets the conversation key from the context.
func StateKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(stateKeyContext{}).(string)
	return key, ok
}

// SessionStore maps conversation keys to session records.
type SessionStore struct {
	store Store[*State]
}

func NewSessionStore(core Cache[*State]) *SessionStore {
	return &SessionStore{store: NewStore(core, sessionNamespace, StateKeyFromContext)}
}

func NewMemorySessionStore() *SessionStore {
	return NewSessionStore(NewMemoryCache[*State]())
}

// Get returns a copy of the session, if any.
func (s *SessionStore) Get(ctx context.Context) (*State, bool, error) {
	state, ok, err := s.store.Get(ctx)
	if err != nil || !ok || state == nil {
		return nil, false, err
	}
	cp := *state
	return &cp, true, nil
}

// GetOrCreate returns the session, creating an idle one if absent.
func (s *SessionStore) GetOrCreate(ctx context.Context) (*State, error) {
	state, ok, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return state, nil
	}
	state = &State{Phase: types.PhaseIdle, UpdatedAt: time.Now()}
	if err := s.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *SessionStore) Save(ctx context.Context, state *State) error {
	cp := *state
	cp.UpdatedAt = time.Now()
	return s.store.Set(ctx, &cp)
}

// Clear drops the session so the next message starts over.
func (s *SessionStore) Clear(ctx context.Context) error {
	return s.store.Del(ctx)
}
