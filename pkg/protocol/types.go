// Package protocol defines the A2A data model — AgentCard, Task,
// Message, Part, and the A2AEnvelope wire format — and its JSON codec.
//
// Part is a tagged variant. Unknown variants are preserved verbatim on
// the wire (Kind == PartKindUnknown) so older receivers never drop data
// a newer sender attaches, satisfying the forward-compatibility
// requirement without a schema registry.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/jimmy-claw/logos-messaging-a2a/internal/protoerr"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/crypto"
)

// TaskState is one of the six states in the task lifecycle DAG.
type TaskState string

const (
	TaskSubmitted     TaskState = "submitted"
	TaskWorking       TaskState = "working"
	TaskInputRequired TaskState = "input_required"
	TaskCompleted     TaskState = "completed"
	TaskFailed        TaskState = "failed"
	TaskCancelled     TaskState = "cancelled"
)

// IsTerminal reports whether state is one a task cannot leave.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// Role identifies who authored a Message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

const (
	PartKindText    = "text"
	PartKindUnknown = "unknown"
)

// Part is a tagged variant within a Message. v1 defines only Text;
// unrecognized variants decode into Kind == PartKindUnknown with the
// original JSON preserved in Raw, so round-tripping through a receiver
// that doesn't understand a newer variant never loses data.
type Part struct {
	Kind string
	Text string          // valid when Kind == PartKindText
	Raw  json.RawMessage // valid when Kind == PartKindUnknown
}

// TextPart constructs a Part carrying plain text.
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

type partWire struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func (p Part) MarshalJSON() ([]byte, error) {
	if p.Kind == PartKindUnknown {
		if len(p.Raw) == 0 {
			return nil, fmt.Errorf("part: unknown variant has no raw payload")
		}
		return p.Raw, nil
	}
	return json.Marshal(partWire{Type: p.Kind, Text: p.Text})
}

func (p *Part) UnmarshalJSON(data []byte) error {
	var wire partWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return protoerr.Wrap(protoerr.CodecMalformed, err)
	}
	if wire.Type == PartKindText {
		p.Kind = PartKindText
		p.Text = wire.Text
		return nil
	}
	p.Kind = PartKindUnknown
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Message is a single turn: who said it, and its ordered parts.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextMessage builds a single-part text Message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart(text)}}
}

// Text returns the concatenation of every text part, for callers that
// only care about the plain-text content.
func (m Message) Text() string {
	out := ""
	for _, p := range m.Parts {
		if p.Kind == PartKindText {
			out += p.Text
		}
	}
	return out
}

// AgentCard is an agent's self-described identity and capability
// record, broadcast on the discovery topic.
type AgentCard struct {
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Version      string             `json:"version"`
	Capabilities []string           `json:"capabilities"`
	PublicKey    string             `json:"public_key"`
	IntroBundle  *crypto.IntroBundle `json:"intro_bundle,omitempty"`
}

// Task is the unit of A2A work exchanged between two agents.
type Task struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	State   TaskState `json:"state"`
	Message Message   `json:"message"`
	Result  *Message  `json:"result,omitempty"`
}

// NewTask constructs a Task in state Submitted with the given id.
// Fails with protoerr.CodecInvariant if from == to.
func NewTask(id, from, to string, message Message) (*Task, error) {
	if from == to {
		return nil, protoerr.New(protoerr.CodecInvariant, "task from and to must differ")
	}
	return &Task{
		ID:      id,
		From:    from,
		To:      to,
		State:   TaskSubmitted,
		Message: message,
	}, nil
}

// WithResult returns a copy of the task updated to a terminal state
// with the given result message. Fails with protoerr.InvariantState if
// newState isn't terminal, or if the task is already in a terminal
// state (terminal tasks are immutable).
func (t *Task) WithResult(newState TaskState, result Message) (*Task, error) {
	if !newState.IsTerminal() {
		return nil, protoerr.New(protoerr.InvariantState, "respond requires a terminal state")
	}
	if t.State.IsTerminal() {
		return nil, protoerr.New(protoerr.InvariantState, "task is already in a terminal state")
	}
	updated := *t
	updated.State = newState
	updated.Result = &result
	return &updated, nil
}
