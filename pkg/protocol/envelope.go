package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/jimmy-claw/logos-messaging-a2a/internal/protoerr"
)

const (
	EnvelopeAgentCard     = "AgentCard"
	EnvelopeTask          = "Task"
	EnvelopeEncryptedTask = "EncryptedTask"
	EnvelopeAck           = "Ack"
)

// EncryptedTaskBundle carries a Task sealed under the sender's and
// recipient's shared X25519 session key.
type EncryptedTaskBundle struct {
	SenderX25519Pub [32]byte
	Nonce           [12]byte
	Ciphertext      []byte // includes the 16-byte AEAD tag
	AssociatedData  []byte
}

// Envelope is the single tagged-variant payload published on any
// content topic. Exactly one of the Card/Task/Encrypted/AckMessageID
// fields is meaningful, selected by Type.
type Envelope struct {
	Type          string
	Card          *AgentCard
	Task          *Task
	Encrypted     *EncryptedTaskBundle
	AckMessageID  string
}

func AgentCardEnvelope(card AgentCard) Envelope {
	return Envelope{Type: EnvelopeAgentCard, Card: &card}
}

func TaskEnvelope(task Task) Envelope {
	return Envelope{Type: EnvelopeTask, Task: &task}
}

func EncryptedTaskEnvelope(bundle EncryptedTaskBundle) Envelope {
	return Envelope{Type: EnvelopeEncryptedTask, Encrypted: &bundle}
}

func AckEnvelope(messageID string) Envelope {
	return Envelope{Type: EnvelopeAck, AckMessageID: messageID}
}

type encryptedTaskWire struct {
	SenderX25519Pub string `json:"sender_x25519_pub"`
	Nonce           string `json:"nonce"`
	Ciphertext      string `json:"ciphertext"`
	AssociatedData  string `json:"associated_data"`
}

type ackWire struct {
	MessageID string `json:"message_id"`
}

// MarshalJSON emits the stable tagged-variant wire format: a "type"
// discriminator plus exactly one payload field.
func (e Envelope) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EnvelopeAgentCard:
		if e.Card == nil {
			return nil, fmt.Errorf("envelope: AgentCard variant missing card")
		}
		return json.Marshal(struct {
			Type string    `json:"type"`
			Card AgentCard `json:"card"`
		}{e.Type, *e.Card})
	case EnvelopeTask:
		if e.Task == nil {
			return nil, fmt.Errorf("envelope: Task variant missing task")
		}
		return json.Marshal(struct {
			Type string `json:"type"`
			Task Task   `json:"task"`
		}{e.Type, *e.Task})
	case EnvelopeEncryptedTask:
		if e.Encrypted == nil {
			return nil, fmt.Errorf("envelope: EncryptedTask variant missing bundle")
		}
		b := e.Encrypted
		return json.Marshal(struct {
			Type      string            `json:"type"`
			Encrypted encryptedTaskWire `json:"encrypted"`
		}{e.Type, encryptedTaskWire{
			SenderX25519Pub: base64.RawURLEncoding.EncodeToString(b.SenderX25519Pub[:]),
			Nonce:           base64.RawURLEncoding.EncodeToString(b.Nonce[:]),
			Ciphertext:      base64.RawURLEncoding.EncodeToString(b.Ciphertext),
			AssociatedData:  base64.RawURLEncoding.EncodeToString(b.AssociatedData),
		}})
	case EnvelopeAck:
		return json.Marshal(struct {
			Type      string `json:"type"`
			MessageID string `json:"message_id"`
		}{e.Type, e.AckMessageID})
	default:
		return nil, fmt.Errorf("envelope: unknown type %q", e.Type)
	}
}

// UnmarshalJSON parses any recognized envelope variant. An unrecognized
// "type" tag yields protoerr.CodecUnknownEnvelope; malformed JSON yields
// protoerr.CodecMalformed.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return protoerr.Wrap(protoerr.CodecMalformed, err)
	}

	switch tag.Type {
	case EnvelopeAgentCard:
		var wire struct {
			Card AgentCard `json:"card"`
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			return protoerr.Wrap(protoerr.CodecMalformed, err)
		}
		e.Type = EnvelopeAgentCard
		e.Card = &wire.Card
		return nil

	case EnvelopeTask:
		var wire struct {
			Task Task `json:"task"`
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			return protoerr.Wrap(protoerr.CodecMalformed, err)
		}
		e.Type = EnvelopeTask
		e.Task = &wire.Task
		return nil

	case EnvelopeEncryptedTask:
		var wire struct {
			Encrypted encryptedTaskWire `json:"encrypted"`
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			return protoerr.Wrap(protoerr.CodecMalformed, err)
		}
		bundle, err := decodeEncryptedTaskWire(wire.Encrypted)
		if err != nil {
			return err
		}
		e.Type = EnvelopeEncryptedTask
		e.Encrypted = bundle
		return nil

	case EnvelopeAck:
		var wire ackWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return protoerr.Wrap(protoerr.CodecMalformed, err)
		}
		e.Type = EnvelopeAck
		e.AckMessageID = wire.MessageID
		return nil

	default:
		return protoerr.New(protoerr.CodecUnknownEnvelope, fmt.Sprintf("unrecognized envelope type %q", tag.Type))
	}
}

func decodeEncryptedTaskWire(w encryptedTaskWire) (*EncryptedTaskBundle, error) {
	senderPub, err := base64.RawURLEncoding.DecodeString(w.SenderX25519Pub)
	if err != nil || len(senderPub) != 32 {
		return nil, protoerr.New(protoerr.CodecMalformed, "invalid sender_x25519_pub")
	}
	nonce, err := base64.RawURLEncoding.DecodeString(w.Nonce)
	if err != nil || len(nonce) != 12 {
		return nil, protoerr.New(protoerr.CodecMalformed, "invalid nonce")
	}
	ciphertext, err := base64.RawURLEncoding.DecodeString(w.Ciphertext)
	if err != nil {
		return nil, protoerr.New(protoerr.CodecMalformed, "invalid ciphertext")
	}
	var associatedData []byte
	if w.AssociatedData != "" {
		associatedData, err = base64.RawURLEncoding.DecodeString(w.AssociatedData)
		if err != nil {
			return nil, protoerr.New(protoerr.CodecMalformed, "invalid associated_data")
		}
	}

	bundle := &EncryptedTaskBundle{Ciphertext: ciphertext, AssociatedData: associatedData}
	copy(bundle.SenderX25519Pub[:], senderPub)
	copy(bundle.Nonce[:], nonce)
	return bundle, nil
}

// Decode parses a single envelope from raw JSON bytes.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}

// Encode serializes the envelope to its canonical JSON form.
func Encode(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}
