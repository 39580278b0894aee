package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ant0n-grachev/telegram-reservation-bot/booking"
	"github.com/ant0n-grachev/telegram-reservation-bot/command"
	"github.com/ant0n-grachev/telegram-reservation-bot/dialogue"
	"github.com/ant0n-grachev/telegram-reservation-bot/types"
)

func newTestFlow(t *testing.T, status int) (*FormFlow, *SessionStore, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	sessions := NewMemorySessionStore()
	flow := NewFormFlow(sessions, booking.NewSubmitter(srv.URL, booking.DefaultVenue),
		WithClock(func() time.Time { return testNow }),
		WithLocation(time.UTC),
	)
	return flow, sessions, &calls
}

func say(t *testing.T, ctx context.Context, flow *FormFlow, text string) *Response {
	t.Helper()
	resp, err := flow.Invoke(ctx, &Request{UserInput: text})
	require.NoError(t, err)
	return resp
}

func fillForm(t *testing.T, ctx context.Context, flow *FormFlow) *Response {
	t.Helper()
	var resp *Response
	for _, text := range []string{"hi", "Sam", "sam@x.com", "4151234567", "10-20", "12:00", "4"} {
		resp = say(t, ctx, flow, text)
	}
	return resp
}

func TestFlowSuccessfulReservation(t *testing.T) {
	flow, sessions, calls := newTestFlow(t, http.StatusOK)
	ctx := WithStateKey(context.Background(), "chat-1")

	resp := say(t, ctx, flow, "hello")
	assert.Contains(t, resp.Message, "What is your name?")
	assert.Equal(t, types.PhaseName, resp.State.Phase)

	resp = fillForm(t, ctx, flow)
	assert.Equal(t, types.PhaseConfirming, resp.State.Phase)
	assert.Equal(t, dialogue.Summary(fullForm), resp.Message)

	resp = say(t, ctx, flow, "YES")
	assert.Contains(t, resp.Message, "Reservation confirmed")
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	_, ok, err := sessions.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "session is cleared after submission")
}

func TestFlowRejectedReservation(t *testing.T) {
	flow, sessions, _ := newTestFlow(t, http.StatusTooManyRequests)
	ctx := WithStateKey(context.Background(), "chat-1")

	fillForm(t, ctx, flow)
	resp := say(t, ctx, flow, "yes")
	assert.Contains(t, resp.Message, "Reservation failed")
	assert.NotContains(t, resp.Message, "confirmed")
	assert.Equal(t, string(types.EventSubmitRejected), resp.Metadata["event"])

	_, ok, err := sessions.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFlowTransportError(t *testing.T) {
	sessions := NewMemorySessionStore()
	flow := NewFormFlow(sessions, booking.NewSubmitter("http://127.0.0.1:1", booking.DefaultVenue),
		WithClock(func() time.Time { return testNow }), WithLocation(time.UTC))
	ctx := WithStateKey(context.Background(), "chat-1")

	fillForm(t, ctx, flow)
	resp := say(t, ctx, flow, "yes")
	assert.Contains(t, resp.Message, "Error sending reservation: ")
	assert.Equal(t, string(types.EventSubmitFailed), resp.Metadata["event"])

	_, ok, _ := sessions.Get(ctx)
	assert.False(t, ok)
}

func TestFlowConfirmationMismatch(t *testing.T) {
	flow, sessions, calls := newTestFlow(t, http.StatusOK)
	ctx := WithStateKey(context.Background(), "chat-1")

	fillForm(t, ctx, flow)
	resp := say(t, ctx, flow, "no")
	assert.Contains(t, resp.Message, "Please type YES")
	assert.Equal(t, types.PhaseConfirming, resp.State.Phase)

	state, ok, err := sessions.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.PhaseConfirming, state.Phase)
	assert.Equal(t, fullForm, state.Form)
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestFlowCancelThenFreshStart(t *testing.T) {
	flow, sessions, _ := newTestFlow(t, http.StatusOK)
	ctx := WithStateKey(context.Background(), "chat-1")

	fillForm(t, ctx, flow)
	resp := say(t, ctx, flow, "/cancel")
	assert.Contains(t, resp.Message, "Reservation cancelled")
	_, ok, _ := sessions.Get(ctx)
	assert.False(t, ok)

	resp = say(t, ctx, flow, "Sam")
	assert.Contains(t, resp.Message, "Let's start your reservation")
	state, ok, _ := sessions.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, types.PhaseName, state.Phase)
	assert.Empty(t, state.Form.Name)
}

func TestFlowValidationErrorReprompts(t *testing.T) {
	flow, sessions, _ := newTestFlow(t, http.StatusOK)
	ctx := WithStateKey(context.Background(), "chat-1")

	say(t, ctx, flow, "hi")
	say(t, ctx, flow, "Sam")
	resp := say(t, ctx, flow, "sam-at-x")
	assert.Contains(t, resp.Message, "Invalid email format.")
	assert.Contains(t, resp.Message, "/cancel")

	state, _, _ := sessions.Get(ctx)
	assert.Equal(t, types.PhaseEmail, state.Phase)
	assert.Empty(t, state.Form.Email)
	assert.Equal(t, resp.Message, state.LatestQuestion)
}

func TestFlowRestart(t *testing.T) {
	flow, sessions, _ := newTestFlow(t, http.StatusOK)
	ctx := WithStateKey(context.Background(), "chat-1")

	say(t, ctx, flow, "hi")
	say(t, ctx, flow, "Sam")
	resp, err := flow.Restart(ctx)
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "What is your name?")

	state, _, _ := sessions.Get(ctx)
	assert.Equal(t, types.PhaseName, state.Phase)
	assert.Equal(t, types.Reservation{}, state.Form)
}

func TestFlowRequiresKey(t *testing.T) {
	flow, _, _ := newTestFlow(t, http.StatusOK)
	_, err := flow.Invoke(context.Background(), &Request{UserInput: "hi"})
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

type blockingSubmitter struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingSubmitter) Submit(ctx context.Context, form types.Reservation) booking.Result {
	close(b.started)
	<-b.release
	return booking.Result{Status: booking.StatusSuccess}
}

func TestFlowBusyWhileSubmitting(t *testing.T) {
	sub := &blockingSubmitter{started: make(chan struct{}), release: make(chan struct{})}
	sessions := NewMemorySessionStore()
	flow := NewFormFlow(sessions, sub, WithClock(func() time.Time { return testNow }), WithLocation(time.UTC))
	ctx := WithStateKey(context.Background(), "chat-1")
	fillForm(t, ctx, flow)

	done := make(chan *Response, 1)
	go func() {
		resp, err := flow.Invoke(ctx, &Request{UserInput: "yes"})
		assert.NoError(t, err)
		done <- resp
	}()
	<-sub.started

	for _, text := range []string{"/cancel", "yes"} {
		resp := say(t, ctx, flow, text)
		assert.Equal(t, string(types.EventBusy), resp.Metadata["event"])
	}
	ok, err := flow.Reset(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	close(sub.release)
	resp := <-done
	assert.Contains(t, resp.Message, "Reservation confirmed")
	_, exists, _ := sessions.Get(ctx)
	assert.False(t, exists)
}

func TestFlowIndependentKeys(t *testing.T) {
	sub := &blockingSubmitter{started: make(chan struct{}), release: make(chan struct{})}
	flow := NewFormFlow(NewMemorySessionStore(), sub, WithClock(func() time.Time { return testNow }), WithLocation(time.UTC))
	blocked := WithStateKey(context.Background(), "blocked")
	fillForm(t, blocked, flow)

	go func() {
		_, _ = flow.Invoke(blocked, &Request{UserInput: "yes"})
	}()
	<-sub.started
	defer close(sub.release)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := WithStateKey(context.Background(), fmt.Sprintf("chat-%d", i))
			resp := fillForm(t, ctx, flow)
			assert.Equal(t, types.PhaseConfirming, resp.State.Phase)
		}(i)
	}
	wg.Wait()
}

type nevermindParser struct {
	base command.Parser
}

func (p nevermindParser) ParseCommand(ctx context.Context, phase types.Phase, input string) (command.Command, error) {
	if strings.EqualFold(strings.TrimSpace(input), "nevermind") {
		return command.Cancel, nil
	}
	return p.base.ParseCommand(ctx, phase, input)
}

func TestFlowCustomCommandParser(t *testing.T) {
	sessions := NewMemorySessionStore()
	flow := NewFormFlow(sessions, &blockingSubmitter{},
		WithCommandParser(nevermindParser{base: command.NewLocalCommandParser()}),
		WithClock(func() time.Time { return testNow }), WithLocation(time.UTC))
	ctx := WithStateKey(context.Background(), "chat-1")

	say(t, ctx, flow, "hi")
	say(t, ctx, flow, "Sam")
	resp := say(t, ctx, flow, "Nevermind")
	assert.Equal(t, string(types.EventCancelled), resp.Metadata["event"])
	_, ok, _ := sessions.Get(ctx)
	assert.False(t, ok)
}

func TestFlowSnapshot(t *testing.T) {
	flow, _, _ := newTestFlow(t, http.StatusOK)
	ctx := WithStateKey(context.Background(), "chat-1")

	_, ok, err := flow.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	say(t, ctx, flow, "hi")
	say(t, ctx, flow, "Sam")
	state, ok, err := flow.Snapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.PhaseEmail, state.Phase)
	assert.Equal(t, "Sam", state.Form.Name)

	state.Form.Name = "changed"
	again, _, _ := flow.Snapshot(ctx)
	assert.Equal(t, "Sam", again.Form.Name, "snapshots are copies")
}

func TestFlowDropsAbandonedSubmission(t *testing.T) {
	cache := NewMemoryCache[*State]()
	sessions := NewSessionStore(cache)
	flow := NewFormFlow(sessions, &blockingSubmitter{},
		WithSubmitTimeout(time.Second),
		WithClock(func() time.Time { return testNow }), WithLocation(time.UTC))
	ctx := WithStateKey(context.Background(), "chat-1")

	abandoned := &State{Phase: types.PhaseConfirming, Form: fullForm, Submitting: true, UpdatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, cache.Set(ctx, sessionNamespace+":chat-1", abandoned))

	resp := say(t, ctx, flow, "yes")
	assert.Equal(t, string(types.EventGreeting), resp.Metadata["event"])
	state, ok, err := sessions.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.PhaseName, state.Phase)
	assert.False(t, state.Submitting)
	assert.Equal(t, types.Reservation{}, state.Form)

	require.NoError(t, cache.Set(ctx, sessionNamespace+":chat-1", abandoned))
	cleared, err := flow.Reset(ctx)
	require.NoError(t, err)
	assert.True(t, cleared)

	require.NoError(t, cache.Set(ctx, sessionNamespace+":chat-1", abandoned))
	resp, err = flow.Restart(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(types.EventGreeting), resp.Metadata["event"])
}

func TestFlowKeepsRecentSubmission(t *testing.T) {
	cache := NewMemoryCache[*State]()
	flow := NewFormFlow(NewSessionStore(cache), &blockingSubmitter{},
		WithSubmitTimeout(time.Minute),
		WithClock(func() time.Time { return testNow }), WithLocation(time.UTC))
	ctx := WithStateKey(context.Background(), "chat-1")

	recent := &State{Phase: types.PhaseConfirming, Form: fullForm, Submitting: true, UpdatedAt: time.Now()}
	require.NoError(t, cache.Set(ctx, sessionNamespace+":chat-1", recent))

	resp := say(t, ctx, flow, "/cancel")
	assert.Equal(t, string(types.EventBusy), resp.Metadata["event"])
	cleared, err := flow.Reset(ctx)
	require.NoError(t, err)
	assert.False(t, cleared)
}

type panickingSubmitter struct{}

func (panickingSubmitter) Submit(context.Context, types.Reservation) booking.Result {
	panic("boom")
}

func TestFlowSubmitterPanicClearsSession(t *testing.T) {
	sessions := NewMemorySessionStore()
	flow := NewFormFlow(sessions, panickingSubmitter{},
		WithClock(func() time.Time { return testNow }), WithLocation(time.UTC))
	ctx := WithStateKey(context.Background(), "chat-1")

	fillForm(t, ctx, flow)
	resp := say(t, ctx, flow, "yes")
	assert.Equal(t, string(types.EventSubmitFailed), resp.Metadata["event"])
	assert.Contains(t, resp.Message, "boom")

	_, ok, err := sessions.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFlowUnknownPhaseStartsOver(t *testing.T) {
	cache := NewMemoryCache[*State]()
	flow := NewFormFlow(NewSessionStore(cache), &blockingSubmitter{},
		WithClock(func() time.Time { return testNow }), WithLocation(time.UTC))
	ctx := WithStateKey(context.Background(), "chat-1")
	require.NoError(t, cache.Set(ctx, sessionNamespace+":chat-1", &State{Phase: "payment", Form: types.Reservation{Name: "x"}}))

	resp := say(t, ctx, flow, "hi")
	assert.Equal(t, string(types.EventGreeting), resp.Metadata["event"])
	assert.Equal(t, types.PhaseName, resp.State.Phase)
}

type failingDialogue struct{}

func (failingDialogue) GenerateDialogue(context.Context, *types.TurnRequest) (string, error) {
	return "", errors.New("model unavailable")
}

type brokenDelCache struct {
	*MemoryCache[*State]
}

func (brokenDelCache) Del(context.Context, string) error {
	return errors.New("redis down")
}

func TestFlowLogsClearFailureOnDialogueError(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	cache := brokenDelCache{NewMemoryCache[*State]()}
	flow := NewFormFlow(NewSessionStore(cache), &blockingSubmitter{},
		WithDialogueGenerator(failingDialogue{}),
		WithClock(func() time.Time { return testNow }), WithLocation(time.UTC))
	ctx := WithStateKey(context.Background(), "chat-1")

	_, err := flow.Invoke(ctx, &Request{UserInput: "/cancel"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
	assert.Contains(t, buf.String(), "Failed to clear session")
	assert.Contains(t, buf.String(), "redis down")
}
