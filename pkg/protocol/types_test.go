package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskRejectsSelfAddressed(t *testing.T) {
	_, err := NewTask("id-1", "02aa", "02aa", NewTextMessage(RoleUser, "hi"))
	assert.Error(t, err)
}

func TestNewTaskSubmitted(t *testing.T) {
	task, err := NewTask("id-1", "02aa", "03bb", NewTextMessage(RoleUser, "Ping!"))
	require.NoError(t, err)
	assert.Equal(t, TaskSubmitted, task.State)
	assert.Equal(t, "Ping!", task.Message.Text())
	assert.Nil(t, task.Result)
}

func TestTaskWithResultRequiresTerminalState(t *testing.T) {
	task, err := NewTask("id-1", "02aa", "03bb", NewTextMessage(RoleUser, "hi"))
	require.NoError(t, err)

	_, err = task.WithResult(TaskWorking, NewTextMessage(RoleAgent, "nope"))
	assert.Error(t, err)
}

func TestTaskWithResultTerminalIsImmutable(t *testing.T) {
	task, err := NewTask("id-1", "02aa", "03bb", NewTextMessage(RoleUser, "hi"))
	require.NoError(t, err)

	done, err := task.WithResult(TaskCompleted, NewTextMessage(RoleAgent, "done"))
	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, done.State)

	_, err = done.WithResult(TaskFailed, NewTextMessage(RoleAgent, "oops"))
	assert.Error(t, err, "a terminal task must not accept a further transition")
}

func TestTaskWithResultPreservesFromTo(t *testing.T) {
	task, err := NewTask("id-1", "02aa", "03bb", NewTextMessage(RoleUser, "hi"))
	require.NoError(t, err)

	done, err := task.WithResult(TaskCompleted, NewTextMessage(RoleAgent, "done"))
	require.NoError(t, err)
	assert.Equal(t, task.From, done.From)
	assert.Equal(t, task.To, done.To)
	assert.Equal(t, task.ID, done.ID)
}

func TestPartUnknownVariantPreservedVerbatim(t *testing.T) {
	raw := []byte(`{"type":"image","url":"https://example.com/x.png"}`)
	var p Part
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, PartKindUnknown, p.Kind)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(out))
}

func TestAgentCardOmitsIntroBundleWhenNil(t *testing.T) {
	card := AgentCard{
		Name:         "echo",
		Description:  "Echoes messages",
		Version:      "0.1.0",
		Capabilities: []string{"text"},
		PublicKey:    "02abcdef",
	}
	data, err := json.Marshal(card)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "intro_bundle")
}

func TestAgentCardBackwardCompatWithoutIntroBundle(t *testing.T) {
	raw := []byte(`{"name":"echo","description":"Echoes","version":"0.1.0","capabilities":["text"],"public_key":"02abcdef"}`)
	var card AgentCard
	require.NoError(t, json.Unmarshal(raw, &card))
	assert.Equal(t, "echo", card.Name)
	assert.Nil(t, card.IntroBundle)
}

func TestTaskStateWireValues(t *testing.T) {
	cases := map[TaskState]string{
		TaskSubmitted:     `"submitted"`,
		TaskWorking:       `"working"`,
		TaskInputRequired: `"input_required"`,
		TaskCompleted:     `"completed"`,
		TaskFailed:        `"failed"`,
		TaskCancelled:     `"cancelled"`,
	}
	for state, want := range cases {
		data, err := json.Marshal(state)
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}
