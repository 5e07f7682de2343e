// Package node wires identity, topic derivation, discovery, and the
// reliability layer into the public operations an agent uses to talk
// over the relay network: Announce, Discover, SendTask, PollTasks, and
// Respond.
package node

import (
	"strings"
	"sync"

	"github.com/jimmy-claw/logos-messaging-a2a/internal/protoerr"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/crypto"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/observability"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/protocol"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/reliability"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/transport"
)

// Config configures a Node at construction time. Only Transport is
// required; everything else defaults sensibly for a single-process
// test or a standalone agent.
type Config struct {
	Name         string
	Description  string
	Version      string
	Capabilities []string

	// Transport is the underlying relay connection. Required.
	Transport transport.Transport

	// DedupStore backs receive-side deduplication. Defaults to an
	// in-process MemoryDedupStore.
	DedupStore reliability.DedupStore

	// TopicPrefix overrides the default "waku-a2a" topic namespace.
	TopicPrefix string

	// IdentityKey is the node's stable secp256k1 address. Generated if
	// nil.
	IdentityKey *crypto.IdentityKey

	// EncryptionIdentity, if set, enables the encryption layer: the
	// node advertises an IntroBundle and encrypts outbound tasks to any
	// peer whose intro bundle it has learned.
	EncryptionIdentity *crypto.AgentIdentity

	// SessionCacheSize bounds the peer-pubkey -> session-key LRU.
	// Values below 128 are raised to the default of 256.
	SessionCacheSize int

	// ReliabilityOptions tunes the underlying SDS layer, e.g.
	// reliability.WithAckTimeout for tests that don't want to wait the
	// full default retransmit window.
	ReliabilityOptions []reliability.Option
}

// Node is one participant in the messaging mesh: an identity, an
// AgentCard, and a reliability-wrapped transport.
type Node struct {
	identityKey    *crypto.IdentityKey
	pubkeyHex      string
	x25519Identity *crypto.AgentIdentity
	card           protocol.AgentCard

	transport   transport.Transport
	sds         *reliability.SDS
	topicPrefix string

	sessionCache *sessionCache

	mu          sync.Mutex
	knownIntros map[string]crypto.IntroBundle
}

// New constructs a Node from cfg.
func New(cfg Config) (*Node, error) {
	observability.InitMetrics()

	if cfg.Transport == nil {
		return nil, protoerr.New(protoerr.InvariantState, "node: transport is required")
	}

	identityKey := cfg.IdentityKey
	if identityKey == nil {
		var err error
		identityKey, err = crypto.GenerateIdentityKey()
		if err != nil {
			return nil, err
		}
	}
	pubkeyHex := strings.ToLower(identityKey.PublicKeyHex())

	var introBundle *crypto.IntroBundle
	if cfg.EncryptionIdentity != nil {
		b := crypto.NewIntroBundle(cfg.EncryptionIdentity)
		introBundle = &b
	}

	card := protocol.AgentCard{
		Name:         cfg.Name,
		Description:  cfg.Description,
		Version:      cfg.Version,
		Capabilities: cfg.Capabilities,
		PublicKey:    pubkeyHex,
		IntroBundle:  introBundle,
	}

	dedupStore := cfg.DedupStore
	if dedupStore == nil {
		dedupStore = reliability.NewMemoryDedupStore()
	}

	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = protocol.DefaultTopicPrefix
	}

	cache, err := newSessionCache(cfg.SessionCacheSize)
	if err != nil {
		return nil, err
	}

	return &Node{
		identityKey:    identityKey,
		pubkeyHex:      pubkeyHex,
		x25519Identity: cfg.EncryptionIdentity,
		card:           card,
		transport:      cfg.Transport,
		sds:            reliability.New(cfg.Transport, dedupStore, prefix, cfg.ReliabilityOptions...),
		topicPrefix:    prefix,
		sessionCache:   cache,
		knownIntros:    make(map[string]crypto.IntroBundle),
	}, nil
}

// PublicKeyHex returns this node's stable secp256k1 network address.
func (n *Node) PublicKeyHex() string {
	return n.pubkeyHex
}

// AgentCard returns the card this node announces on discovery.
func (n *Node) AgentCard() protocol.AgentCard {
	return n.card
}

// RegisterPeerIntro records peerPubkeyHex's intro bundle so future
// SendTask calls to it are encrypted, without waiting on Discover to
// learn it from the discovery topic.
func (n *Node) RegisterPeerIntro(peerPubkeyHex string, bundle crypto.IntroBundle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.knownIntros[strings.ToLower(peerPubkeyHex)] = bundle
}

func (n *Node) peerIntro(peerPubkeyHex string) (crypto.IntroBundle, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	b, ok := n.knownIntros[strings.ToLower(peerPubkeyHex)]
	return b, ok
}
