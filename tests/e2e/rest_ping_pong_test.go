// Package e2e exercises the full node stack (identity, discovery,
// reliability, encryption) against a relay reachable only over HTTP,
// the same way a node would reach a real relay node in production.
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jimmy-claw/logos-messaging-a2a/pkg/node"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/protocol"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/transport"
)

// relayMessage mirrors the wire shape RESTTransport speaks.
type relayMessage struct {
	ContentTopic string `json:"contentTopic"`
	Payload      string `json:"payload"`
	Timestamp    int64  `json:"timestamp,omitempty"`
	Version      int    `json:"version,omitempty"`
}

// fakeRelay is a minimal in-memory stand-in for a relay node's REST
// API: it accepts publishes per topic and, unlike a real relay (which
// returns only what arrived since the last poll), replays the full
// history on every poll; the nodes' dedup layer absorbs the repeats.
type fakeRelay struct {
	mu   sync.Mutex
	logs map[string][]relayMessage
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{logs: make(map[string][]relayMessage)}
}

// handler routes on the escaped request path. Topics start with "/", so
// the decoded path of a poll holds "//", which http.ServeMux would clean
// and redirect away from the topic the client asked for.
func (r *fakeRelay) handler() http.Handler {
	const base = "/relay/v1/auto/messages"
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path := req.URL.EscapedPath()
		if path != base {
			r.poll(w, path, base)
			return
		}
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var msg relayMessage
		if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		r.mu.Lock()
		r.logs[msg.ContentTopic] = append(r.logs[msg.ContentTopic], msg)
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
}

func (r *fakeRelay) poll(w http.ResponseWriter, path, base string) {
	if !strings.HasPrefix(path, base+"/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	topic, err := url.PathUnescape(strings.TrimPrefix(path, base+"/"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	out := append([]relayMessage(nil), r.logs[topic]...)
	r.mu.Unlock()
	if out == nil {
		out = []relayMessage{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func TestPingPongOverRESTRelay(t *testing.T) {
	relay := newFakeRelay()
	server := httptest.NewServer(relay.handler())
	defer server.Close()

	ping, err := node.New(node.Config{
		Name:      "ping",
		Transport: transport.NewRESTTransport(server.URL),
	})
	require.NoError(t, err)

	pong, err := node.New(node.Config{
		Name:      "pong",
		Transport: transport.NewRESTTransport(server.URL),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, ping.Announce(ctx))
	require.NoError(t, pong.Announce(ctx))

	found, err := ping.Discover(ctx, 200*time.Millisecond)
	require.NoError(t, err)
	require.Contains(t, found, pong.PublicKeyHex())

	// SendText blocks until pong ACKs, and pong only ACKs what its
	// PollTasks surfaces, so the send runs while pong polls below.
	type sendResult struct {
		id  string
		err error
	}
	sent := make(chan sendResult, 1)
	go func() {
		id, err := ping.SendText(ctx, pong.PublicKeyHex(), "are you there?")
		sent <- sendResult{id, err}
	}()

	var deliveries []node.TaskDelivery
	require.Eventually(t, func() bool {
		deliveries, err = pong.PollTasks(ctx)
		require.NoError(t, err)
		return len(deliveries) == 1
	}, time.Second, 10*time.Millisecond)

	res := <-sent
	require.NoError(t, res.err)
	taskID := res.id

	require.Equal(t, taskID, deliveries[0].Task.ID)
	require.Equal(t, "are you there?", deliveries[0].Task.Message.Text())

	require.NoError(t, pong.RespondText(ctx, deliveries[0].Task, "yes", protocol.TaskCompleted))
}
