package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092,, b:9092 ,"))
	assert.Empty(t, SplitBrokers(""))
	assert.Empty(t, SplitBrokers(" , "))
}

func TestProducerConfig(t *testing.T) {
	t.Run("defaults favour ordered delivery", func(t *testing.T) {
		cfg := NewProducerConfig("localhost:9092")
		assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
		assert.Equal(t, AcksAll, cfg.Acks)
		assert.Equal(t, "ecertify-relay", cfg.ClientID)

		opts, err := cfg.Options()
		require.NoError(t, err)
		assert.NotEmpty(t, opts)
	})

	t.Run("needs a broker", func(t *testing.T) {
		_, err := NewProducerConfig("").Options()
		assert.ErrorIs(t, err, ErrNoBrokers)
	})

	t.Run("weaker acks add the idempotency opt-out", func(t *testing.T) {
		all, err := NewProducerConfig("localhost:9092").Options()
		require.NoError(t, err)

		cfg := NewProducerConfig("localhost:9092")
		cfg.Acks = AcksLeader
		leader, err := cfg.Options()
		require.NoError(t, err)
		assert.Len(t, leader, len(all)+1)
	})
}

func TestConsumerConfig(t *testing.T) {
	cases := map[string]struct {
		cfg  ConsumerConfig
		want error
	}{
		"no brokers": {NewConsumerConfig("", "g", "t"), ErrNoBrokers},
		"no group":   {NewConsumerConfig("b:9092", "", "t"), ErrNoGroup},
		"no topics":  {NewConsumerConfig("b:9092", "g"), ErrNoTopics},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.cfg.Options()
			assert.ErrorIs(t, err, tc.want)
		})
	}

	cfg := NewConsumerConfig("b:9092", "g", "t")
	assert.True(t, cfg.FromStart)
	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Len(t, opts, 5)
}
