package agent

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ant0n-grachev/telegram-reservation-bot/types"
)

func TestSessionStoreLifecycle(t *testing.T) {
	testSessionStore(t, NewMemorySessionStore())
}

func TestRedisSessionStore(t *testing.T) {
	addr := os.Getenv("RESERVEBOT_REDIS_ADDR")
	if addr == "" {
		t.Skip("set RESERVEBOT_REDIS_ADDR to run redis tests")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	testSessionStore(t, NewSessionStore(NewRedisCache[*State](client, time.Minute)))
}

func testSessionStore(t *testing.T, sessions *SessionStore) {
	ctx := WithStateKey(context.Background(), "store-test-"+time.Now().Format("150405.000000"))
	t.Cleanup(func() { _ = sessions.Clear(ctx) })

	_, ok, err := sessions.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	state, err := sessions.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseIdle, state.Phase)

	state.Phase = types.PhaseEmail
	state.Form.Name = "Sam"
	got, ok, err := sessions.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.PhaseIdle, got.Phase, "returned sessions are copies")

	require.NoError(t, sessions.Save(ctx, state))
	got, err = sessions.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseEmail, got.Phase)
	assert.Equal(t, "Sam", got.Form.Name)
	assert.False(t, got.UpdatedAt.IsZero())

	require.NoError(t, sessions.Clear(ctx))
	_, ok, err = sessions.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStoreKeysAreIsolated(t *testing.T) {
	sessions := NewMemorySessionStore()
	a := WithStateKey(context.Background(), "a")
	b := WithStateKey(context.Background(), "b")

	require.NoError(t, sessions.Save(a, &State{Phase: types.PhaseTime}))
	_, ok, err := sessions.Get(b)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, sessions.Clear(b))
	_, ok, _ = sessions.Get(a)
	assert.True(t, ok)
}

func TestSessionStoreWithoutKey(t *testing.T) {
	_, err := NewMemorySessionStore().GetOrCreate(context.Background())
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()
	var inside int32
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			unlock := k.Lock("same")
			assert.Equal(t, int32(1), atomic.AddInt32(&inside, 1))
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	assert.Empty(t, k.locks)
}

func TestKeyedMutexDifferentKeysDoNotBlock(t *testing.T) {
	k := NewKeyedMutex()
	unlockA := k.Lock("a")
	defer unlockA()

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		unlock()
		close(acquired)
	}()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock on b waited for a")
	}
}

func TestHistoryStore(t *testing.T) {
	h := NewMemoryHistoryStore(3)
	ctx := WithStateKey(context.Background(), "h")

	hist, err := h.Append(ctx, schema.UserMessage("hi"), nil, schema.UserMessage("hi"))
	require.NoError(t, err)
	require.Len(t, hist, 1)

	hist, err = h.Append(ctx,
		schema.AssistantMessage("name?", nil),
		schema.UserMessage("Sam"),
		schema.AssistantMessage("email?", nil),
	)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "name?", hist[0].Content)

	require.NoError(t, h.Clear(ctx))
	hist, err = h.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, hist)
}
