package node

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jimmy-claw/logos-messaging-a2a/internal/protoerr"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/crypto"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/observability"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/protocol"
)

// tickInterval is how often a bounded wait re-invokes SDS.Tick while
// waiting for an ACK or exhaustion. It is independent of
// reliability.AckTimeout: ticking fast just lets the wait notice a
// satisfied deadline promptly, it never forces an early retransmit.
const tickInterval = 25 * time.Millisecond

// discoveryPollInterval paces repeated polls of the discovery topic
// during Discover's timeout window.
const discoveryPollInterval = 25 * time.Millisecond

// Announce publishes this node's AgentCard to the discovery topic.
// Not reliable — discovery is periodic by design.
func (n *Node) Announce(ctx context.Context) error {
	data, err := protocol.Encode(protocol.AgentCardEnvelope(n.card))
	if err != nil {
		return protoerr.Wrap(protoerr.CodecMalformed, err)
	}

	err = n.transport.Publish(ctx, protocol.DiscoveryTopic(n.topicPrefix), data)
	log.Printf("node: announce name=%q pubkey=%s err=%v", n.card.Name, n.pubkeyHex, err)
	return err
}

// Discover subscribes to the discovery topic if not already subscribed
// and collects AgentCard envelopes for timeout, keyed by public key
// (last writer wins on duplicates). The node's own card is excluded.
func (n *Node) Discover(ctx context.Context, timeout time.Duration) (map[string]protocol.AgentCard, error) {
	discoveryTopic := protocol.DiscoveryTopic(n.topicPrefix)
	if err := n.transport.Subscribe(ctx, discoveryTopic); err != nil {
		return nil, err
	}

	found := make(map[string]protocol.AgentCard)
	deadline := time.Now().Add(timeout)

	for {
		envs, err := n.sds.PollDedup(ctx, discoveryTopic)
		if err != nil {
			return found, err
		}
		for _, env := range envs {
			if env.Type != protocol.EnvelopeAgentCard || env.Card == nil {
				continue
			}
			if env.Card.PublicKey == n.pubkeyHex {
				continue
			}
			found[env.Card.PublicKey] = *env.Card
			if env.Card.IntroBundle != nil {
				n.RegisterPeerIntro(env.Card.PublicKey, *env.Card.IntroBundle)
			}
		}

		if !time.Now().Before(deadline) {
			observability.SetKnownPeers(len(found))
			return found, nil
		}
		select {
		case <-ctx.Done():
			observability.SetKnownPeers(len(found))
			return found, nil
		case <-time.After(discoveryPollInterval):
		}
	}
}

// SendTask constructs a Task in state submitted addressed to toPubkeyHex,
// encrypts it if the recipient's intro bundle is known, and publishes it
// reliably to the recipient's inbox. It returns once the reliability
// layer reports success or final undelivered failure.
func (n *Node) SendTask(ctx context.Context, toPubkeyHex string, message protocol.Message) (string, error) {
	task, err := protocol.NewTask(uuid.NewString(), n.pubkeyHex, toPubkeyHex, message)
	if err != nil {
		return "", err
	}

	payload, err := n.encodeOutboundTask(*task)
	if err != nil {
		return task.ID, err
	}

	topic := protocol.TaskTopic(n.topicPrefix, toPubkeyHex)
	done, err := n.sds.PublishReliable(ctx, topic, task.ID, payload)
	if err != nil {
		return task.ID, err
	}

	err = n.waitForOutcome(ctx, done)
	log.Printf("node: send_task id=%s to=%s err=%v", task.ID, toPubkeyHex, err)
	if err != nil {
		observability.RecordTaskSent("undelivered")
	} else {
		observability.RecordTaskSent("acked")
	}
	return task.ID, err
}

// SendText is a convenience wrapper over SendTask for a single text part.
func (n *Node) SendText(ctx context.Context, toPubkeyHex, text string) (string, error) {
	return n.SendTask(ctx, toPubkeyHex, protocol.NewTextMessage(protocol.RoleUser, text))
}

// TaskDelivery pairs a surfaced task with the peer it arrived from.
type TaskDelivery struct {
	Task protocol.Task
	From string
}

// PollTasks polls this node's inbox topic via the reliability layer,
// decrypting EncryptedTask envelopes as needed, and ACKs every task it
// surfaces. Encrypted tasks that fail decryption or decoding are logged
// and dropped; payloads that do not decode as envelopes are dropped
// silently by the reliability layer.
func (n *Node) PollTasks(ctx context.Context) ([]TaskDelivery, error) {
	inbox := protocol.TaskTopic(n.topicPrefix, n.pubkeyHex)
	if err := n.transport.Subscribe(ctx, inbox); err != nil {
		return nil, err
	}

	envs, err := n.sds.PollDedup(ctx, inbox)
	if err != nil {
		return nil, err
	}

	out := make([]TaskDelivery, 0, len(envs))
	for _, env := range envs {
		switch env.Type {
		case protocol.EnvelopeTask:
			if env.Task == nil {
				continue
			}
			out = append(out, TaskDelivery{Task: *env.Task, From: env.Task.From})
			n.ack(ctx, env.Task.ID)
			observability.RecordTaskReceived("task")

		case protocol.EnvelopeEncryptedTask:
			task, err := n.decryptTask(*env.Encrypted)
			if err != nil {
				log.Printf("node: protocol.invalid dropping encrypted task: %v", err)
				continue
			}
			out = append(out, TaskDelivery{Task: task, From: task.From})
			n.ack(ctx, task.ID)
			observability.RecordTaskReceived("encrypted_task")

		default:
			// AgentCard/Ack should never arrive on a task inbox; ignore.
		}
	}
	return out, nil
}

func (n *Node) ack(ctx context.Context, taskID string) {
	if err := n.sds.SendAck(ctx, taskID); err != nil {
		log.Printf("node: ack failed id=%s err=%v", taskID, err)
	}
}

// Respond constructs a task update in terminalState with result,
// preserving the task's id/from/to, and publishes it reliably to the
// original sender's inbox. terminalState must be a terminal TaskState.
func (n *Node) Respond(ctx context.Context, task protocol.Task, result protocol.Message, terminalState protocol.TaskState) error {
	updated, err := task.WithResult(terminalState, result)
	if err != nil {
		return err
	}

	payload, err := n.encodeOutboundTask(*updated)
	if err != nil {
		return err
	}

	topic := protocol.TaskTopic(n.topicPrefix, task.From)
	done, err := n.sds.PublishReliable(ctx, topic, updated.ID, payload)
	if err != nil {
		return err
	}

	err = n.waitForOutcome(ctx, done)
	log.Printf("node: respond id=%s to=%s state=%s err=%v", updated.ID, task.From, terminalState, err)
	if err != nil {
		observability.RecordTaskSent("undelivered")
	} else {
		observability.RecordTaskSent("acked")
	}
	return err
}

// RespondText is a convenience wrapper over Respond for a single text part.
func (n *Node) RespondText(ctx context.Context, task protocol.Task, text string, terminalState protocol.TaskState) error {
	return n.Respond(ctx, task, protocol.NewTextMessage(protocol.RoleAgent, text), terminalState)
}

func (n *Node) waitForOutcome(ctx context.Context, done <-chan error) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			return err
		case <-ticker.C:
			if err := n.sds.Tick(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (n *Node) encodeOutboundTask(task protocol.Task) ([]byte, error) {
	if n.x25519Identity != nil {
		if intro, ok := n.peerIntro(task.To); ok {
			return n.encryptTask(task, intro)
		}
	}
	return protocol.Encode(protocol.TaskEnvelope(task))
}

func (n *Node) encryptTask(task protocol.Task, intro crypto.IntroBundle) ([]byte, error) {
	key, err := n.sessionKeyFor(task.To, intro.X25519PublicKey)
	if err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(task)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.CodecMalformed, err)
	}

	associatedData := []byte(task.To + "|" + n.topicPrefix + "/1")
	nonce, ciphertext, err := crypto.Seal(key, associatedData, plaintext)
	if err != nil {
		return nil, err
	}

	bundle := protocol.EncryptedTaskBundle{
		SenderX25519Pub: n.x25519Identity.PublicKey(),
		Ciphertext:      ciphertext,
		AssociatedData:  associatedData,
	}
	copy(bundle.Nonce[:], nonce)
	return protocol.Encode(protocol.EncryptedTaskEnvelope(bundle))
}

func (n *Node) decryptTask(bundle protocol.EncryptedTaskBundle) (protocol.Task, error) {
	if n.x25519Identity == nil {
		return protocol.Task{}, protoerr.New(protoerr.CryptoKey, "node has no encryption identity configured")
	}

	key, err := n.sessionKeyFor(bundleSenderKey(bundle), bundle.SenderX25519Pub)
	if err != nil {
		return protocol.Task{}, err
	}

	plaintext, err := crypto.Open(key, bundle.AssociatedData, bundle.Nonce[:], bundle.Ciphertext)
	if err != nil {
		return protocol.Task{}, err
	}

	var task protocol.Task
	if err := json.Unmarshal(plaintext, &task); err != nil {
		return protocol.Task{}, protoerr.Wrap(protoerr.CodecMalformed, err)
	}
	return task, nil
}

func (n *Node) sessionKeyFor(peerPubkeyHex string, peerX25519 [32]byte) ([32]byte, error) {
	if key, ok := n.sessionCache.get(peerPubkeyHex); ok {
		return key, nil
	}
	key, err := n.x25519Identity.DeriveSession(peerX25519)
	if err != nil {
		return key, err
	}
	n.sessionCache.put(peerPubkeyHex, key)
	return key, nil
}

// bundleSenderKey derives a cache key from a sender's raw X25519 public
// key when their secp256k1 pubkey hex is not in hand (inbound decrypt
// path): the 32-byte key itself is a stable, unique cache key.
func bundleSenderKey(bundle protocol.EncryptedTaskBundle) string {
	return "x25519:" + hex.EncodeToString(bundle.SenderX25519Pub[:])
}
