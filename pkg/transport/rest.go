package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/jimmy-claw/logos-messaging-a2a/internal/protoerr"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/observability"
)

// RESTTransport talks to a single relay node's HTTP API:
//
//	POST /relay/v1/auto/messages                 {"contentTopic", "payload", "timestamp"}
//	GET  /relay/v1/auto/messages/{content_topic}  -> [{"contentTopic", "payload", ...}, ...]
//
// The topic in the GET path is URL path-escaped. Each payload is
// standard base64 (with padding);
// this is the REST wire encoding and is unrelated to the URL-safe,
// unpadded base64 used inside an EncryptedTask envelope's binary fields.
type RESTTransport struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// RESTOption configures a RESTTransport at construction time.
type RESTOption func(*RESTTransport)

// WithHTTPClient overrides the default client, e.g. to inject a custom
// transport in tests.
func WithHTTPClient(c *http.Client) RESTOption {
	return func(t *RESTTransport) { t.httpClient = c }
}

// WithRateLimit caps outbound requests per second, with burst b. The
// default is unlimited.
func WithRateLimit(perSecond float64, burst int) RESTOption {
	return func(t *RESTTransport) { t.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewRESTTransport returns a transport bound to relay node baseURL
// (e.g. "http://localhost:8645").
func NewRESTTransport(baseURL string, opts ...RESTOption) *RESTTransport {
	t := &RESTTransport{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// relayMessage mirrors nwaku's REST message schema: payload is
// standard (padded) base64, distinct from the url-safe unpadded
// base64 used for EncryptedTask byte fields in the envelope itself.
type relayMessage struct {
	ContentTopic string `json:"contentTopic"`
	Payload      string `json:"payload"`
	Timestamp    int64  `json:"timestamp,omitempty"`
	Version      int    `json:"version,omitempty"`
}

func (t *RESTTransport) await(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return protoerr.Wrap(protoerr.TransportUnavailable, err)
	}
	return nil
}

func (t *RESTTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := t.await(ctx); err != nil {
		return err
	}

	reqBody, err := json.Marshal(relayMessage{
		ContentTopic: topic,
		Payload:      base64.StdEncoding.EncodeToString(payload),
		Timestamp:    time.Now().UnixNano(),
	})
	if err != nil {
		return protoerr.Wrap(protoerr.CodecMalformed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/relay/v1/auto/messages", bytes.NewReader(reqBody))
	if err != nil {
		return protoerr.Wrap(protoerr.TransportUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		observability.RecordTransportPublish("rest", "unavailable")
		return protoerr.Wrap(protoerr.TransportUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(resp.Body)
		observability.RecordTransportPublish("rest", "unavailable")
		return protoerr.New(protoerr.TransportUnavailable,
			fmt.Sprintf("relay publish failed (status %d): %s", resp.StatusCode, string(body)))
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		observability.RecordTransportPublish("rest", "rejected")
		return protoerr.New(protoerr.TransportRejected,
			fmt.Sprintf("relay rejected publish (status %d): %s", resp.StatusCode, string(body)))
	}
	observability.RecordTransportPublish("rest", "ok")
	return nil
}

// Subscribe is a no-op for the REST backend: the relay node keeps its
// own per-topic buffers and Poll always asks for a specific topic, so
// there is no separate subscription state to establish client-side.
func (t *RESTTransport) Subscribe(ctx context.Context, _ string) error {
	return t.await(ctx)
}

func (t *RESTTransport) Poll(ctx context.Context, topic string) ([][]byte, error) {
	if err := t.await(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { observability.ObserveTransportPoll("rest", time.Since(start)) }()

	path := "/relay/v1/auto/messages/" + url.PathEscape(topic)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.TransportUnavailable, err)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.TransportUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(resp.Body)
		return nil, protoerr.New(protoerr.TransportUnavailable,
			fmt.Sprintf("relay poll failed (status %d): %s", resp.StatusCode, string(body)))
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, protoerr.New(protoerr.TransportRejected,
			fmt.Sprintf("relay rejected poll (status %d): %s", resp.StatusCode, string(body)))
	}

	var parsed []relayMessage
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, protoerr.Wrap(protoerr.CodecMalformed, err)
	}

	out := make([][]byte, 0, len(parsed))
	for _, m := range parsed {
		data, err := base64.StdEncoding.DecodeString(m.Payload)
		if err != nil {
			return nil, protoerr.Wrap(protoerr.CodecMalformed, err)
		}
		out = append(out, data)
	}
	return out, nil
}
