// Command waku-a2a-node runs a standalone A2A messaging node: it
// periodically announces an AgentCard and echoes back any task it
// receives as a completed task addressed to the sender. It does not
// run discovery.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jimmy-claw/logos-messaging-a2a/pkg/config"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/crypto"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/node"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/observability"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/protocol"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/reliability"
	"github.com/jimmy-claw/logos-messaging-a2a/pkg/transport"
)

var (
	Version = "dev"

	configFile = flag.String("config", getEnv("CONFIG_FILE", "config/node.yaml"), "Node configuration file")
	httpPort   = flag.Int("http-port", getEnvInt("PORT", 0), "Observability HTTP port (0 uses the config file's value)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("waku-a2a-node: loading config: %v", err)
	}
	if *httpPort != 0 {
		cfg.HTTPPort = *httpPort
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("waku-a2a-node: invalid config: %v", err)
	}

	log.Printf("Starting waku-a2a-node v%s (name=%q transport=%s)", Version, cfg.Name, cfg.Transport)

	n, redisStore, err := buildNode(cfg)
	if err != nil {
		log.Fatalf("waku-a2a-node: %v", err)
	}
	log.Printf("node public key: %s", n.PublicKeyHex())

	healthChecker := observability.InitHealthChecker()
	healthChecker.RegisterCheck(observability.PingCheck())
	if redisStore != nil {
		healthChecker.RegisterCheck(observability.DedupStoreCheck(redisStore.Ping))
	}
	if cfg.Transport == "rest" {
		healthChecker.RegisterCheck(observability.RelayCheck(relayReachabilityCheck(cfg.RelayURL)))
	}
	obsServer := observability.NewServer(cfg.HTTPPort)

	errChan := make(chan error, 2)
	go func() {
		log.Printf("observability server listening on :%d", cfg.HTTPPort)
		if err := obsServer.Start(); err != nil {
			errChan <- fmt.Errorf("observability server: %w", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go runEchoLoop(ctx, n, errChan)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Printf("error: %v", err)
	case <-quit:
		log.Println("shutting down node...")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("observability server shutdown error: %v", err)
	}
	log.Println("node stopped")
}

// buildNode wires a Node from cfg. The returned *reliability.RedisDedupStore
// is non-nil only when cfg configures a Redis-backed dedup store, so
// main can register a health check against it.
func buildNode(cfg *config.Config) (*node.Node, *reliability.RedisDedupStore, error) {
	var tr transport.Transport
	switch cfg.Transport {
	case "rest":
		tr = transport.NewRESTTransport(cfg.RelayURL, transport.WithRateLimit(20, 5))
	default:
		tr = transport.NewIsolatedMemoryTransport(cfg.Name)
	}

	var identityKey *crypto.IdentityKey
	if cfg.IdentityKeyHex != "" {
		var err error
		identityKey, err = crypto.IdentityKeyFromHex(cfg.IdentityKeyHex)
		if err != nil {
			return nil, nil, fmt.Errorf("identity_key_hex: %w", err)
		}
	}

	var encIdentity *crypto.AgentIdentity
	if cfg.EncryptionEnabled {
		id, err := crypto.GenerateIdentity()
		if err != nil {
			return nil, nil, fmt.Errorf("generating encryption identity: %w", err)
		}
		encIdentity = id
	}

	dedupStore, redisStore, err := buildDedupStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	n, err := node.New(node.Config{
		Name:               cfg.Name,
		Description:        cfg.Description,
		Version:            Version,
		Capabilities:       cfg.Capabilities,
		Transport:          tr,
		DedupStore:         dedupStore,
		TopicPrefix:        cfg.TopicPrefix,
		IdentityKey:        identityKey,
		EncryptionIdentity: encIdentity,
		SessionCacheSize:   cfg.SessionCacheSize,
		ReliabilityOptions: []reliability.Option{
			reliability.WithAckTimeout(time.Duration(cfg.Reliability.AckTimeoutSeconds) * time.Second),
			reliability.WithMaxAttempts(cfg.Reliability.MaxAttempts),
		},
	})
	return n, redisStore, err
}

func buildDedupStore(cfg *config.Config) (reliability.DedupStore, *reliability.RedisDedupStore, error) {
	if cfg.Redis.Addr == "" {
		return reliability.NewMemoryDedupStore(), nil, nil
	}
	store, err := reliability.NewRedisDedupStore(reliability.RedisDedupConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.TopicPrefix + ":dedup:",
	})
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}

// relayReachabilityCheck probes a relay node's base URL, treating any
// HTTP response (even a 404) as reachable and only a connection-level
// failure as unreachable.
func relayReachabilityCheck(relayURL string) func(context.Context) error {
	client := &http.Client{Timeout: 5 * time.Second}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, relayURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}
}

// runEchoLoop announces this node, then repeatedly polls its inbox and
// completes any received task by echoing its text back to the sender.
func runEchoLoop(ctx context.Context, n *node.Node, errChan chan<- error) {
	if err := n.Announce(ctx); err != nil {
		log.Printf("announce failed: %v", err)
	}

	announceTicker := time.NewTicker(30 * time.Second)
	defer announceTicker.Stop()
	pollTicker := time.NewTicker(time.Second)
	defer pollTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-announceTicker.C:
			if err := n.Announce(ctx); err != nil {
				log.Printf("announce failed: %v", err)
			}
		case <-pollTicker.C:
			deliveries, err := n.PollTasks(ctx)
			if err != nil {
				errChan <- fmt.Errorf("poll tasks: %w", err)
				return
			}
			for _, d := range deliveries {
				echoTask(ctx, n, d)
			}
		}
	}
}

func echoTask(ctx context.Context, n *node.Node, d node.TaskDelivery) {
	reply := fmt.Sprintf("echo: %s", d.Task.Message.Text())
	if err := n.RespondText(ctx, d.Task, reply, protocol.TaskCompleted); err != nil {
		log.Printf("respond to task %s failed: %v", d.Task.ID, err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
