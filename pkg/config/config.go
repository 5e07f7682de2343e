// Package config loads a node's runtime configuration from a YAML file,
// with defaults for omitted fields and environment variables filling in
// an omitted relay URL or Redis address.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// maxConfigFileSize bounds how large a config file LoadConfig will
// accept, guarding against accidentally pointing it at the wrong file.
const maxConfigFileSize = 1 << 20 // 1MB

// Config is a waku-a2a node's runtime configuration.
type Config struct {
	// Identity
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Capabilities []string `yaml:"capabilities"`

	// IdentityKeyHex, if set, pins the node's secp256k1 address across
	// restarts. Generated fresh on every start when empty.
	IdentityKeyHex string `yaml:"identity_key_hex"`

	// EncryptionEnabled turns on the X25519/ChaCha20-Poly1305 layer and
	// advertises an IntroBundle on the node's AgentCard.
	EncryptionEnabled bool `yaml:"encryption_enabled"`

	// Transport selects the relay backend: "rest" or "memory".
	Transport string `yaml:"transport"`
	// RelayURL is the base URL of a relay node's REST API, used when
	// Transport is "rest".
	RelayURL string `yaml:"relay_url"`

	TopicPrefix      string `yaml:"topic_prefix"`
	SessionCacheSize int    `yaml:"session_cache_size"`

	Reliability ReliabilityConfig `yaml:"reliability"`
	Redis       RedisConfig       `yaml:"redis"`

	HTTPPort int `yaml:"http_port"`
}

// ReliabilityConfig tunes the SDS layer's retransmission behavior.
type ReliabilityConfig struct {
	AckTimeoutSeconds int `yaml:"ack_timeout_seconds"`
	MaxAttempts       int `yaml:"max_attempts"`
}

// RedisConfig points the dedup store at Redis instead of the default
// in-process store. Addr empty means "use the in-process store".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoadConfig reads and parses a node config file, applying defaults for
// anything left unset and falling back to environment variables for
// values commonly injected by deployment tooling rather than checked
// into a config file.
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes exceeds %d byte limit", info.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Transport == "" {
		c.Transport = "memory"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "waku-a2a"
	}
	if c.SessionCacheSize == 0 {
		c.SessionCacheSize = 256
	}
	if c.Reliability.AckTimeoutSeconds == 0 {
		c.Reliability.AckTimeoutSeconds = 10
	}
	if c.Reliability.MaxAttempts == 0 {
		c.Reliability.MaxAttempts = 3
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = 8080
	}
	if c.RelayURL == "" {
		c.RelayURL = os.Getenv("WAKU_A2A_RELAY_URL")
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = os.Getenv("WAKU_A2A_REDIS_ADDR")
	}
}

// SaveConfig writes cfg to path as YAML, e.g. to capture a
// generated IdentityKeyHex for reuse on the next start.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the fields LoadConfig cannot default its way out of.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Transport != "rest" && c.Transport != "memory" {
		return fmt.Errorf("transport must be %q or %q, got %q", "rest", "memory", c.Transport)
	}
	if c.Transport == "rest" && c.RelayURL == "" {
		return fmt.Errorf("relay_url is required when transport is \"rest\"")
	}
	return nil
}
