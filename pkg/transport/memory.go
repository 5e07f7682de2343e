package transport

import (
	"context"
	"sync"
)

// registry is the shared state backing every MemoryTransport handle
// constructed against the same registry name, mirroring the
// package-level server registry + mutex pattern used for in-process
// transports elsewhere in this codebase.
type registry struct {
	mu          sync.Mutex
	history     map[string][][]byte          // topic -> all payloads ever published
	subscribers map[string]map[string]bool   // topic -> set of subscriber ids
	mailboxes   map[string]map[string][][]byte // subscriber id -> topic -> queued payloads
}

func newRegistry() *registry {
	return &registry{
		history:     make(map[string][][]byte),
		subscribers: make(map[string]map[string]bool),
		mailboxes:   make(map[string]map[string][][]byte),
	}
}

var (
	namedRegistries   = make(map[string]*registry)
	namedRegistriesMu sync.Mutex
)

// registryByName returns the shared registry for name, creating it on
// first use. Tests and ping-pong-style examples pass the same name to
// every MemoryTransport handle that should observe each other's
// publishes.
func registryByName(name string) *registry {
	namedRegistriesMu.Lock()
	defer namedRegistriesMu.Unlock()
	r, ok := namedRegistries[name]
	if !ok {
		r = newRegistry()
		namedRegistries[name] = r
	}
	return r
}

// MemoryTransport is a process-local, non-blocking, synchronous
// Transport backed by a shared registry. Messages are never lost or
// duplicated and are delivered FIFO per topic — strictly stronger
// guarantees than the Transport contract requires, which is fine for a
// test/example backend.
type MemoryTransport struct {
	id  string
	reg *registry
}

// NewMemoryTransport returns a handle into the named shared registry.
// Two handles created with the same registryName observe each other's
// publishes; this is how independent Node instances in tests share a
// fake relay mesh without any network code.
func NewMemoryTransport(registryName, subscriberID string) *MemoryTransport {
	return &MemoryTransport{id: subscriberID, reg: registryByName(registryName)}
}

// NewIsolatedMemoryTransport returns a handle backed by a brand-new,
// unshared registry — convenient for single-node unit tests that don't
// need a second peer.
func NewIsolatedMemoryTransport(subscriberID string) *MemoryTransport {
	return &MemoryTransport{id: subscriberID, reg: newRegistry()}
}

func (t *MemoryTransport) Publish(_ context.Context, topic string, payload []byte) error {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()

	data := append([]byte(nil), payload...)
	t.reg.history[topic] = append(t.reg.history[topic], data)

	for subID := range t.reg.subscribers[topic] {
		if t.reg.mailboxes[subID] == nil {
			t.reg.mailboxes[subID] = make(map[string][][]byte)
		}
		t.reg.mailboxes[subID][topic] = append(t.reg.mailboxes[subID][topic], data)
	}
	return nil
}

func (t *MemoryTransport) Subscribe(_ context.Context, topic string) error {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()

	if t.reg.subscribers[topic] == nil {
		t.reg.subscribers[topic] = make(map[string]bool)
	}
	if t.reg.subscribers[topic][t.id] {
		return nil // idempotent
	}
	t.reg.subscribers[topic][t.id] = true

	if t.reg.mailboxes[t.id] == nil {
		t.reg.mailboxes[t.id] = make(map[string][][]byte)
	}
	// Replay history so publish-before-subscribe is never lost.
	for _, msg := range t.reg.history[topic] {
		t.reg.mailboxes[t.id][topic] = append(t.reg.mailboxes[t.id][topic], msg)
	}
	return nil
}

func (t *MemoryTransport) Poll(_ context.Context, topic string) ([][]byte, error) {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()

	box, ok := t.reg.mailboxes[t.id]
	if !ok {
		return nil, nil
	}
	msgs := box[topic]
	delete(box, topic)
	return msgs, nil
}
