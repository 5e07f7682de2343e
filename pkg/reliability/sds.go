// Package reliability implements minimal SDS (scalable data sync): a
// thin at-least-once layer over an unreliable transport.Transport,
// using ACK envelopes and bounded retransmission rather than anything
// resembling a full causal-broadcast protocol.
package reliability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/jimmy-claw/logos-messaging-a2a/internal/protoerr"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/observability"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/protocol"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/transport"
)

const (
	// AckTimeout is how long a pending send waits before retransmitting.
	AckTimeout = 10 * time.Second
	// MaxAttempts bounds total publish attempts (the first publish plus
	// retransmissions) before giving up.
	MaxAttempts = 3
)

// pendingSend tracks one in-flight reliable publish.
type pendingSend struct {
	topic             string
	payload           []byte
	ackTopic          string
	attemptsRemaining int
	nextDeadline      time.Time
	done              chan error
}

// SDS wraps a transport.Transport with dedup on receive and bounded
// retransmission on send. There is no hidden goroutine: a caller must
// invoke Tick periodically to drive retransmission and timeout, which
// keeps every suspension point visible at the call site.
type SDS struct {
	tr     transport.Transport
	dedup  DedupStore
	prefix string

	ackTimeout  time.Duration
	maxAttempts int

	mu      sync.Mutex
	pending map[string]*pendingSend // message_id -> pending send
}

// Option configures tunables away from their spec.md defaults. Tests
// use WithAckTimeout to exercise the retransmit-bound property without
// waiting the full 30s default window.
type Option func(*SDS)

// WithAckTimeout overrides the default 10s ack timeout.
func WithAckTimeout(d time.Duration) Option {
	return func(s *SDS) { s.ackTimeout = d }
}

// WithMaxAttempts overrides the default of 3 total attempts.
func WithMaxAttempts(n int) Option {
	return func(s *SDS) { s.maxAttempts = n }
}

// New builds an SDS layer over tr, deduplicating with store and using
// topicPrefix (e.g. protocol.DefaultTopicPrefix) to derive ACK topics.
func New(tr transport.Transport, store DedupStore, topicPrefix string, opts ...Option) *SDS {
	s := &SDS{
		tr:          tr,
		dedup:       store,
		prefix:      topicPrefix,
		ackTimeout:  AckTimeout,
		maxAttempts: MaxAttempts,
		pending:     make(map[string]*pendingSend),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PublishReliable publishes payload on topic under messageID, tracking
// it for retransmission until an Ack envelope naming messageID is
// observed on the derived ACK topic, or attempts are exhausted. It
// returns once the first publish attempt and the ACK subscription are
// established; call Tick repeatedly afterward to drive delivery.
//
// The returned channel is sent exactly one value: nil on ACK receipt,
// or a *protoerr.Error with Kind ReliabilityUndelivered once attempts
// are exhausted.
func (s *SDS) PublishReliable(ctx context.Context, topic, messageID string, payload []byte) (<-chan error, error) {
	ackTopic := protocol.AckTopic(s.prefix, messageID)
	if err := s.tr.Subscribe(ctx, ackTopic); err != nil {
		return nil, err
	}
	if err := s.tr.Publish(ctx, topic, payload); err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	s.mu.Lock()
	s.pending[messageID] = &pendingSend{
		topic:             topic,
		payload:           payload,
		ackTopic:          ackTopic,
		attemptsRemaining: s.maxAttempts - 1,
		nextDeadline:      time.Now().Add(s.ackTimeout),
		done:              done,
	}
	s.mu.Unlock()
	return done, nil
}

// Tick inspects every pending send: if its ACK topic has delivered an
// Ack envelope naming it, the send is resolved successful; otherwise,
// once its deadline has elapsed, the payload is republished and
// attemptsRemaining decremented. Exhausted entries resolve with
// reliability.undelivered. Tick must be called repeatedly by the
// caller (e.g. on a ticker) — the layer never schedules its own timer.
func (s *SDS) Tick(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.tickOne(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *SDS) tickOne(ctx context.Context, messageID string) error {
	s.mu.Lock()
	p, ok := s.pending[messageID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	acked, err := s.pollAck(ctx, p.ackTopic, messageID)
	if err != nil {
		return err
	}
	if acked {
		s.resolve(messageID, nil)
		return nil
	}

	if time.Now().Before(p.nextDeadline) {
		return nil
	}

	if p.attemptsRemaining <= 0 {
		observability.RecordUndelivered(p.topic)
		s.resolve(messageID, protoerr.New(protoerr.ReliabilityUndelivered, "message "+messageID+" undelivered after max attempts"))
		return nil
	}

	if err := s.tr.Publish(ctx, p.topic, p.payload); err != nil {
		return err
	}
	observability.RecordRetransmit(p.topic)

	s.mu.Lock()
	p.attemptsRemaining--
	p.nextDeadline = time.Now().Add(s.ackTimeout)
	s.mu.Unlock()
	return nil
}

func (s *SDS) pollAck(ctx context.Context, ackTopic, messageID string) (bool, error) {
	msgs, err := s.tr.Poll(ctx, ackTopic)
	if err != nil {
		return false, err
	}
	for _, msg := range msgs {
		env, err := protocol.Decode(msg)
		if err != nil {
			continue // malformed inbound is always non-fatal
		}
		if env.Type == protocol.EnvelopeAck && env.AckMessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (s *SDS) resolve(messageID string, err error) {
	s.mu.Lock()
	p, ok := s.pending[messageID]
	if ok {
		delete(s.pending, messageID)
	}
	s.mu.Unlock()
	if ok {
		p.done <- err
	}
}

// SendAck publishes a one-shot Ack envelope for messageID on its
// derived ACK topic. It is not retransmitted: the sender's retry loop
// compensates for loss.
func (s *SDS) SendAck(ctx context.Context, messageID string) error {
	env := protocol.AckEnvelope(messageID)
	data, err := protocol.Encode(env)
	if err != nil {
		return protoerr.Wrap(protoerr.CodecMalformed, err)
	}
	return s.tr.Publish(ctx, protocol.AckTopic(s.prefix, messageID), data)
}

// idFromEnvelope extracts the dedup key for envelopes carrying a task
// identity: plaintext Task uses its own id, EncryptedTask has no
// visible id so callers dedup on ciphertext identity instead via
// encryptedDedupKey.
func idFromEnvelope(env protocol.Envelope) (string, bool) {
	if env.Type == protocol.EnvelopeTask && env.Task != nil {
		return env.Task.ID, true
	}
	return "", false
}

// encryptedDedupKey derives a stable dedup key for an EncryptedTask
// envelope, which carries no plaintext id: the nonce is unique per
// seal and the ciphertext is bound to it, so their hash stands in for
// a message id.
func encryptedDedupKey(env protocol.Envelope) string {
	h := sha256.New()
	h.Write(env.Encrypted.SenderX25519Pub[:])
	h.Write(env.Encrypted.Nonce[:])
	h.Write(env.Encrypted.Ciphertext)
	return hex.EncodeToString(h.Sum(nil))
}

// PollDedup polls topic via the underlying transport, parses each
// payload as an envelope, and filters out payloads whose task id (or,
// for EncryptedTask envelopes, whose ciphertext-derived key) has
// already been surfaced. Malformed payloads are dropped silently.
func (s *SDS) PollDedup(ctx context.Context, topic string) ([]protocol.Envelope, error) {
	raw, err := s.tr.Poll(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make([]protocol.Envelope, 0, len(raw))
	for _, payload := range raw {
		env, err := protocol.Decode(payload)
		if err != nil {
			continue
		}

		var dedupKey string
		switch env.Type {
		case protocol.EnvelopeTask:
			id, ok := idFromEnvelope(env)
			if !ok {
				continue
			}
			dedupKey = id
		case protocol.EnvelopeEncryptedTask:
			dedupKey = encryptedDedupKey(env)
		default:
			out = append(out, env)
			continue
		}

		seen, err := s.dedup.SeenBefore(ctx, dedupKey, 0)
		if err != nil {
			return nil, err
		}
		if seen {
			observability.RecordDedupDropped(topic)
			continue
		}
		out = append(out, env)
	}
	return out, nil
}
