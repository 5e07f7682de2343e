// Package transport defines the pluggable publish/subscribe/poll
// abstraction the rest of the runtime is built on, plus two backends:
// an in-memory registry for tests, and a REST client for a relay node.
//
// The contract is deliberately narrow — three operations, keyed by an
// opaque content topic string — so the reliability layer above it can
// compose over any implementation without knowing which one it has.
package transport

import "context"

// Transport is the abstract relay-network contract every backend must
// satisfy. Delivery is best-effort and unordered across polls;
// duplicates are legal. Implementations must be safe for concurrent
// use by multiple callers sharing one instance.
type Transport interface {
	// Publish sends payload on topic. Returns *protoerr.Error with Kind
	// TransportUnavailable or TransportRejected on failure.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe prepares topic for delivery via Poll. Idempotent.
	Subscribe(ctx context.Context, topic string) error

	// Poll returns payloads received on topic since the last poll. The
	// returned slice may be empty and may contain duplicates. Order
	// within one call matches delivery order; order across calls is
	// best-effort only.
	Poll(ctx context.Context, topic string) ([][]byte, error)
}
