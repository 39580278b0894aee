package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ant0n-grachev/telegram-reservation-bot/booking"
	"github.com/ant0n-grachev/telegram-reservation-bot/command"
	"github.com/ant0n-grachev/telegram-reservation-bot/dialogue"
	"github.com/ant0n-grachev/telegram-reservation-bot/types"
)

// FormFlow drives reservation conversations. Messages for one key are handled
// one at a time; different keys proceed independently.
type FormFlow struct {
	sessions          *SessionStore
	locks             *KeyedMutex
	submitter         Submitter
	commandParser     command.Parser
	dialogueGenerator dialogue.Generator
	now               func() time.Time
	location          *time.Location
	submitTimeout     time.Duration
}

// submitGrace is added to the submit timeout before a stored submitting
// flag is considered abandoned.
const submitGrace = 5 * time.Second

type FlowOption func(*FormFlow)

func WithCommandParser(p command.Parser) FlowOption {
	return func(f *FormFlow) {
		f.commandParser = p
	}
}

func WithDialogueGenerator(g dialogue.Generator) FlowOption {
	return func(f *FormFlow) {
		f.dialogueGenerator = g
	}
}

func WithClock(now func() time.Time) FlowOption {
	return func(f *FormFlow) {
		f.now = now
	}
}

// WithLocation sets the zone that decides what "today" is.
func WithLocation(loc *time.Location) FlowOption {
	return func(f *FormFlow) {
		if loc != nil {
			f.location = loc
		}
	}
}

// WithSubmitTimeout sets how long a booking call may take. A session still
// marked as submitting after that, plus a grace period, is dropped.
func WithSubmitTimeout(d time.Duration) FlowOption {
	return func(f *FormFlow) {
		if d > 0 {
			f.submitTimeout = d
		}
	}
}

func NewFormFlow(sessions *SessionStore, submitter Submitter, opts ...FlowOption) *FormFlow {
	f := &FormFlow{
		sessions:          sessions,
		locks:             NewKeyedMutex(),
		submitter:         submitter,
		commandParser:     command.NewLocalCommandParser(),
		dialogueGenerator: &dialogue.LocalDialogueGenerator{},
		now:               time.Now,
		location:          time.Local,
		submitTimeout:     booking.DefaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Invoke handles one inbound message for the conversation keyed in ctx.
func (f *FormFlow) Invoke(ctx context.Context, input *Request) (*Response, error) {
	key, ok := StateKeyFromContext(ctx)
	if !ok || key == "" {
		return nil, ErrKeyNotFound
	}
	unlock := f.locks.Lock(key)
	defer func() { unlock() }()

	state, err := f.load(ctx, key)
	if err != nil {
		return nil, err
	}
	cmd, err := f.commandParser.ParseCommand(ctx, state.Phase, input.UserInput)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}
	out, err := Transition(*state, cmd, input.UserInput, f.now().In(f.location))
	if err != nil {
		return nil, err
	}
	slog.Debug("Transition", "key", key, "from", state.Phase, "to", out.State.Phase, "command", cmd, "event", out.Reply.Event, "effect", out.Effect)

	if out.Effect == EffectSubmit {
		if err := f.sessions.Save(ctx, &out.State); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
		unlock()
		res := f.submit(ctx, out.State.Form)
		unlock = f.locks.Lock(key)
		out = Resolve(out.State, res)
		out.Reply.MessagePair.Answer = input.UserInput
	}

	return f.apply(ctx, out)
}

// Restart clears the conversation and greets, entering the name phase.
func (f *FormFlow) Restart(ctx context.Context) (*Response, error) {
	key, ok := StateKeyFromContext(ctx)
	if !ok || key == "" {
		return nil, ErrKeyNotFound
	}
	unlock := f.locks.Lock(key)
	defer unlock()

	state, err := f.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !state.Submitting {
		state = &State{}
	}
	out, err := Transition(*state, command.None, "", f.now().In(f.location))
	if err != nil {
		return nil, err
	}
	return f.apply(ctx, out)
}

// Snapshot returns the stored session without changing it.
func (f *FormFlow) Snapshot(ctx context.Context) (*State, bool, error) {
	return f.sessions.Get(ctx)
}

// Reset drops the session unless a submission is in flight.
func (f *FormFlow) Reset(ctx context.Context) (bool, error) {
	key, ok := StateKeyFromContext(ctx)
	if !ok || key == "" {
		return false, ErrKeyNotFound
	}
	unlock := f.locks.Lock(key)
	defer unlock()

	state, err := f.load(ctx, key)
	if err != nil {
		return false, err
	}
	if state.Submitting {
		return false, nil
	}
	return true, f.sessions.Clear(ctx)
}

// load returns the session for key, creating an idle one. A submitting flag
// older than the submit timeout is left over from a call that never
// resolved, so that session is dropped.
func (f *FormFlow) load(ctx context.Context, key string) (*State, error) {
	state, err := f.sessions.GetOrCreate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !state.Phase.Known() {
		slog.Warn("Unknown session phase, starting over", "key", key, "phase", state.Phase)
	}
	if state.Submitting && time.Since(state.UpdatedAt) > f.submitTimeout+submitGrace {
		slog.Warn("Dropping abandoned submission", "key", key, "updated_at", state.UpdatedAt)
		if err := f.sessions.Clear(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear session: %w", err)
		}
		return &State{}, nil
	}
	return state, nil
}

// submit runs outside the session lock. The caller's cancellation does not
// abort a call that has started; the submitter's timeout bounds it.
func (f *FormFlow) submit(ctx context.Context, form types.Reservation) (res booking.Result) {
	defer func() {
		if e := recover(); e != nil {
			res = booking.Result{Status: booking.StatusFailed, Err: fmt.Errorf("recover from panic: %v", e)}
		}
	}()
	return f.submitter.Submit(context.WithoutCancel(ctx), form)
}

func (f *FormFlow) apply(ctx context.Context, out Outcome) (*Response, error) {
	message, err := f.dialogueGenerator.GenerateDialogue(ctx, &out.Reply)
	if err != nil {
		if out.Effect == EffectClear {
			if cErr := f.sessions.Clear(ctx); cErr != nil {
				slog.Error("Failed to clear session", "error", cErr)
			}
		}
		return nil, fmt.Errorf("failed to generate dialogue: %w", err)
	}

	switch out.Effect {
	case EffectClear:
		if err := f.sessions.Clear(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear session: %w", err)
		}
	case EffectSave:
		out.State.LatestQuestion = message
		if err := f.sessions.Save(ctx, &out.State); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
	}

	state := out.State
	return &Response{
		Message: message,
		State:   &state,
		Metadata: map[string]string{
			"event": string(out.Reply.Event),
		},
	}, nil
}
