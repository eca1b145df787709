package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClient_ReturnsScriptedResponsesInOrder(t *testing.T) {
	f := NewFakeClient(
		Response{Text: "thinking about it"},
		Response{ToolCalls: []ToolCall{{ID: "1", Name: "get_logs"}}},
	)

	r1, err := f.Generate(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "thinking about it", r1.Text)

	r2, err := f.Generate(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "get_logs", r2.ToolCalls[0].Name)

	assert.Equal(t, 2, f.CallCount())
}

func TestFakeClient_RecordsCallArguments(t *testing.T) {
	f := NewFakeClient(Response{Text: "ok"})
	msgs := []Message{{Role: RoleUser, Content: "investigate this"}}
	tools := []ToolDefinition{{Name: "FINISH"}}

	_, err := f.Generate(context.Background(), msgs, tools)
	require.NoError(t, err)

	require.Len(t, f.Calls, 1)
	assert.Equal(t, msgs, f.Calls[0].Messages)
	assert.Equal(t, tools, f.Calls[0].Tools)
}

func TestFakeClient_ReturnsScriptedErrorsAfterResponses(t *testing.T) {
	f := NewFakeClient(Response{Text: "ok"}).WithErrors(errors.New("rate limited"))

	_, err := f.Generate(context.Background(), nil, nil)
	require.NoError(t, err)

	_, err = f.Generate(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, "rate limited", err.Error())
}

func TestFakeClient_ErrorsWhenExhausted(t *testing.T) {
	f := NewFakeClient(Response{Text: "ok"})
	_, _ = f.Generate(context.Background(), nil, nil)

	_, err := f.Generate(context.Background(), nil, nil)
	assert.Error(t, err)
}
