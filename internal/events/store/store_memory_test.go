package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ecertify/internal/events"
	"ecertify/internal/sentinel"
	"ecertify/pkg/domain"
	txcontext "ecertify/pkg/platform/tx"
)

type InMemoryEventStoreSuite struct {
	suite.Suite
	store   *InMemoryStore
	student domain.ActorID
}

func TestInMemoryEventStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryEventStoreSuite))
}

func (s *InMemoryEventStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.student = domain.MustActorID("0x00000000000000000000000000000000000000a1")
}

func (s *InMemoryEventStoreSuite) appendLinked(ctx context.Context) *events.Event {
	e := &events.Event{
		Type:    events.TypeStudentLinked,
		Subject: s.student,
		Payload: events.StudentLinked{Student: s.student},
	}
	s.Require().NoError(s.store.Append(ctx, e))
	return e
}

func (s *InMemoryEventStoreSuite) TestAppendAssignsIncreasingSeq() {
	ctx := context.Background()
	first := s.appendLinked(ctx)
	second := s.appendLinked(ctx)

	s.Equal(int64(1), first.Seq)
	s.Equal(int64(2), second.Seq)
}

func (s *InMemoryEventStoreSuite) TestAppendRejectsMissingPayload() {
	s.Error(s.store.Append(context.Background(), &events.Event{}))
}

func (s *InMemoryEventStoreSuite) TestListAfter() {
	ctx := context.Background()
	for range 5 {
		s.appendLinked(ctx)
	}

	s.Run("pages from a cursor", func() {
		page, err := s.store.ListAfter(ctx, 2, 2)
		s.Require().NoError(err)
		s.Require().Len(page, 2)
		s.Equal(int64(3), page[0].Seq)
		s.Equal(int64(4), page[1].Seq)
	})

	s.Run("non-positive limit returns the rest", func() {
		page, err := s.store.ListAfter(ctx, 3, 0)
		s.Require().NoError(err)
		s.Len(page, 2)
	})

	s.Run("cursor past the end is empty", func() {
		page, err := s.store.ListAfter(ctx, 99, 10)
		s.Require().NoError(err)
		s.Empty(page)
	})
}

func (s *InMemoryEventStoreSuite) TestRollbackRemovesAppend() {
	j := &txcontext.Journal{}
	ctx := txcontext.WithJournal(context.Background(), j)

	s.appendLinked(context.Background())
	s.appendLinked(ctx)
	j.Rollback()

	all, err := s.store.ListAfter(context.Background(), 0, 0)
	s.Require().NoError(err)
	s.Len(all, 1)

	next := s.appendLinked(context.Background())
	s.Equal(int64(2), next.Seq)
}

func (s *InMemoryEventStoreSuite) TestPublishTracking() {
	ctx := context.Background()
	s.appendLinked(ctx)
	s.appendLinked(ctx)

	pending, err := s.store.CountPending(ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), pending)

	s.Require().NoError(s.store.MarkPublished(ctx, 1, time.Now()))

	batch, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(batch, 1)
	s.Equal(int64(2), batch[0].Seq)

	s.ErrorIs(s.store.MarkPublished(ctx, 1, time.Now()), sentinel.ErrInvalidState)
	s.ErrorIs(s.store.MarkPublished(ctx, 42, time.Now()), sentinel.ErrNotFound)
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	st := NewInMemory()
	actor := domain.MustActorID("0x00000000000000000000000000000000000000b2")
	require.NoError(t, st.Append(context.Background(), &events.Event{
		Type:    events.TypeAccessRevoked,
		Subject: actor,
		Payload: events.AccessRevoked{Owner: actor},
	}))

	got, err := st.ListAfter(context.Background(), 0, 10)
	require.NoError(t, err)
	got[0].RequestID = "mutated"

	again, err := st.ListAfter(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, again[0].RequestID)
}
