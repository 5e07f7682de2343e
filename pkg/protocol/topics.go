package protocol

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the fixed prefix used by the topic scheme
// unless a Node is configured with an alternate one.
const DefaultTopicPrefix = "waku-a2a"

// DiscoveryTopic returns the single global discovery topic for prefix.
func DiscoveryTopic(prefix string) string {
	return fmt.Sprintf("/%s/1/discovery/proto", prefix)
}

// TaskTopic returns the inbox topic for the agent identified by
// pubkeyHex (lower-cased, per spec.md's topic-derivation invariant).
func TaskTopic(prefix, pubkeyHex string) string {
	return fmt.Sprintf("/%s/1/task/%s/proto", prefix, strings.ToLower(pubkeyHex))
}

// AckTopic returns the one-shot ACK topic for a given message ID.
func AckTopic(prefix, messageID string) string {
	return fmt.Sprintf("/%s/1/ack/%s/proto", prefix, messageID)
}
