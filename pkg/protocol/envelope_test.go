package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeTaskRoundTrip(t *testing.T) {
	task, err := NewTask("550e8400-e29b-41d4-a716-446655440000", "02a1", "03f6", NewTextMessage(RoleUser, "Ping!"))
	require.NoError(t, err)

	env := TaskEnvelope(*task)
	data, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)
}

func TestEnvelopeWireExampleShape(t *testing.T) {
	task, err := NewTask("550e8400-e29b-41d4-a716-446655440000", "02a1", "03f6", NewTextMessage(RoleUser, "Ping!"))
	require.NoError(t, err)
	data, err := Encode(TaskEnvelope(*task))
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, "Task", generic["type"])
}

func TestEnvelopeAgentCardRoundTrip(t *testing.T) {
	card := AgentCard{
		Name:         "echo",
		Description:  "Echoes messages",
		Version:      "0.1.0",
		Capabilities: []string{"text"},
		PublicKey:    "02abcdef",
	}
	env := AgentCardEnvelope(card)
	data, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)
}

func TestEnvelopeAckRoundTrip(t *testing.T) {
	env := AckEnvelope("msg-123")
	data, err := Encode(env)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, "Ack", generic["type"])
	assert.Equal(t, "msg-123", generic["message_id"])

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)
}

func TestEnvelopeEncryptedTaskRoundTrip(t *testing.T) {
	bundle := EncryptedTaskBundle{
		Ciphertext:     []byte("ciphertext-and-tag"),
		AssociatedData: []byte("03f6|waku-a2a/1"),
	}
	for i := range bundle.SenderX25519Pub {
		bundle.SenderX25519Pub[i] = byte(i)
	}
	for i := range bundle.Nonce {
		bundle.Nonce[i] = byte(i + 1)
	}

	env := EncryptedTaskEnvelope(bundle)
	data, err := Encode(env)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, "EncryptedTask", generic["type"])

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)
}

func TestEnvelopeUnknownTypeRejected(t *testing.T) {
	_, err := Decode([]byte(`{"type":"SomeFutureVariant"}`))
	assert.Error(t, err)
}

func TestEnvelopeMalformedJSONRejected(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}
