package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(nil, "client", "moderation", "moderation_dlq")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no seed brokers provided")
}

func TestNewProducer_LazyDial(t *testing.T) {
	// kgo.NewClient does not dial until a request is issued, so this must
	// succeed even against an address nothing is listening on.
	p, err := NewProducer([]string{"127.0.0.1:9999"}, "client", "moderation", "moderation_dlq")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "moderation", p.topic)
	assert.Equal(t, "moderation_dlq", p.dlqTopic)
	p.Close()
}
