package agent

import (
	"context"
	"net/http"
	"testing"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentRun(t *testing.T) {
	flow, _, _ := newTestFlow(t, http.StatusOK)
	a := NewAgent("ReservationAgent", "collects reservations", flow)
	ctx := WithStateKey(context.Background(), "adk")

	assert.Equal(t, "ReservationAgent", a.Name(ctx))

	iter := a.Run(ctx, &adk.AgentInput{Messages: []adk.Message{schema.UserMessage("hello")}})
	event, ok := iter.Next()
	require.True(t, ok)
	require.NoError(t, event.Err)
	assert.Contains(t, event.Output.MessageOutput.Message.Content, "What is your name?")
	assert.Equal(t, schema.Assistant, event.Output.MessageOutput.Role)

	_, ok = iter.Next()
	assert.False(t, ok)
}

func TestAgentRunWithoutMessages(t *testing.T) {
	flow, _, _ := newTestFlow(t, http.StatusOK)
	iter := NewAgent("a", "d", flow).Run(context.Background(), &adk.AgentInput{})
	event, ok := iter.Next()
	require.True(t, ok)
	assert.Error(t, event.Err)
}

func TestAgentRunWithoutKey(t *testing.T) {
	flow, _, _ := newTestFlow(t, http.StatusOK)
	iter := NewAgent("a", "d", flow).Run(context.Background(), &adk.AgentInput{Messages: []adk.Message{schema.UserMessage("hi")}})
	event, ok := iter.Next()
	require.True(t, ok)
	assert.ErrorIs(t, event.Err, ErrKeyNotFound)
}
