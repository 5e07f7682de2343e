package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicDerivation(t *testing.T) {
	assert.Equal(t, "/waku-a2a/1/discovery/proto", DiscoveryTopic(DefaultTopicPrefix))
	assert.Equal(t, "/waku-a2a/1/task/02abcdef/proto", TaskTopic(DefaultTopicPrefix, "02abcdef"))
	assert.Equal(t, "/waku-a2a/1/ack/msg-123/proto", AckTopic(DefaultTopicPrefix, "msg-123"))
}

func TestTaskTopicLowercasesPubkey(t *testing.T) {
	assert.Equal(t, "/waku-a2a/1/task/02abcdef/proto", TaskTopic(DefaultTopicPrefix, "02ABCDEF"))
}
