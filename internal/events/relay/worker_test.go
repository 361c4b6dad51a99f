package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"ecertify/internal/events"
	"ecertify/internal/events/mocks"
	eventstore "ecertify/internal/events/store"
	"ecertify/internal/platform/kafka/producer"
	"ecertify/pkg/domain"
	"ecertify/pkg/platform/circuit"
)

var student = domain.MustActorID("0x00000000000000000000000000000000000000a1")

type recordingPublisher struct {
	mu       sync.Mutex
	messages []*producer.Message
	failAt   int
}

func (p *recordingPublisher) Produce(_ context.Context, msg *producer.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAt > 0 && len(p.messages)+1 == p.failAt {
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func seed(t *testing.T, st events.Store, n int) {
	t.Helper()
	for i := range n {
		require.NoError(t, st.Append(context.Background(), &events.Event{
			Type:    events.TypeCertificateVerified,
			Subject: student,
			Payload: events.CertificateVerified{Student: student, Index: i},
		}))
	}
}

func TestPublishBatch(t *testing.T) {
	t.Run("publishes in order and marks events", func(t *testing.T) {
		st := eventstore.NewInMemory()
		seed(t, st, 3)
		pub := &recordingPublisher{}

		w := New(st, pub)
		assert.Equal(t, 3, w.PublishBatch(context.Background()))

		require.Len(t, pub.messages, 3)
		for i, msg := range pub.messages {
			assert.Equal(t, DefaultTopic, msg.Topic)
			assert.Equal(t, student.String(), string(msg.Key))
			assert.Equal(t, string(events.TypeCertificateVerified), msg.Headers["event_type"])

			decoded, err := events.UnmarshalEnvelope(msg.Value)
			require.NoError(t, err)
			assert.Equal(t, int64(i+1), decoded.Seq)
		}

		pending, err := st.CountPending(context.Background())
		require.NoError(t, err)
		assert.Zero(t, pending)
	})

	t.Run("stops at the first failure to keep order", func(t *testing.T) {
		st := eventstore.NewInMemory()
		seed(t, st, 3)
		pub := &recordingPublisher{failAt: 2}

		w := New(st, pub, WithTopic("custom"))
		assert.Equal(t, 1, w.PublishBatch(context.Background()))
		assert.Equal(t, "custom", pub.messages[0].Topic)

		pending, err := st.CountPending(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(2), pending)
	})

	t.Run("open breaker skips polls until the cooldown passes", func(t *testing.T) {
		st := eventstore.NewInMemory()
		seed(t, st, 3)
		pub := &recordingPublisher{failAt: 1}
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		breaker := circuit.New("kafka",
			circuit.WithFailureThreshold(2),
			circuit.WithCooldown(time.Minute),
			circuit.WithClock(func() time.Time { return now }),
		)

		w := New(st, pub, WithBreaker(breaker))
		assert.Zero(t, w.PublishBatch(context.Background()))
		assert.Zero(t, w.PublishBatch(context.Background()))
		assert.Equal(t, circuit.StateOpen, breaker.State())

		pub.failAt = 0
		assert.Zero(t, w.PublishBatch(context.Background()), "broker recovered but the breaker is still cooling down")
		assert.Zero(t, pub.count())

		now = now.Add(time.Minute)
		assert.Equal(t, 3, w.PublishBatch(context.Background()))
		assert.Equal(t, circuit.StateClosed, breaker.State())
	})

	t.Run("fetch failure publishes nothing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		st.EXPECT().FetchUnpublished(gomock.Any(), 100).Return(nil, errors.New("db down"))
		pub := &recordingPublisher{}

		assert.Zero(t, New(st, pub).PublishBatch(context.Background()))
		assert.Zero(t, pub.count())
	})

	t.Run("mark failure leaves event for retry", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		batch := []*events.Event{{
			Seq:     1,
			Type:    events.TypeAccessRevoked,
			Subject: student,
			Payload: events.AccessRevoked{Owner: student},
		}}
		st.EXPECT().FetchUnpublished(gomock.Any(), 100).Return(batch, nil)
		st.EXPECT().MarkPublished(gomock.Any(), int64(1), gomock.Any()).Return(errors.New("db down"))
		pub := &recordingPublisher{}

		assert.Zero(t, New(st, pub).PublishBatch(context.Background()))
		assert.Equal(t, 1, pub.count())
	})
}

func TestPublishBatch_Metrics(t *testing.T) {
	st := eventstore.NewInMemory()
	seed(t, st, 4)
	m := NewMetrics(prometheus.NewRegistry())
	breaker := circuit.New("kafka", circuit.WithFailureThreshold(1))

	w := New(st, &recordingPublisher{failAt: 3}, WithMetrics(m), WithBreaker(breaker))
	assert.Equal(t, 2, w.PublishBatch(context.Background()))

	assert.Equal(t, 2.0, promtest.ToFloat64(m.PublishedTotal))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.PublishFailures))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.BreakerOpen))

	require.NoError(t, w.UpdateMetrics(context.Background()))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.PendingDepth))
}

func TestStopBeforeStart(t *testing.T) {
	w := New(eventstore.NewInMemory(), &recordingPublisher{})
	assert.NoError(t, w.Stop(context.Background()))
}

func TestWorkerLifecycle(t *testing.T) {
	st := eventstore.NewInMemory()
	seed(t, st, 5)
	pub := &recordingPublisher{}

	w := New(st, pub, WithPollInterval(5*time.Millisecond), WithBatchSize(2))
	w.Start()

	require.Eventually(t, func() bool { return pub.count() == 5 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
}
