package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"ecertify/internal/events"
	eventstore "ecertify/internal/events/store"
	idservice "ecertify/internal/identity/service"
	idstore "ecertify/internal/identity/store"
	"ecertify/internal/linkage/store"
	"ecertify/pkg/domain"
	dErrors "ecertify/pkg/domain-errors"
	"ecertify/pkg/testutil"
)

type ManagerSuite struct {
	suite.Suite
	ctx     context.Context
	events  *eventstore.InMemoryStore
	manager *Manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.events = eventstore.NewInMemory()
	log := events.NewLog(s.events)
	registry := idservice.NewRegistry(idstore.NewInMemory(), log)
	s.manager = NewManager(store.NewInMemory(), registry, log)

	for _, st := range []domain.ActorID{testutil.Actors.Alice, testutil.Actors.Bob} {
		_, err := registry.CreateProfile(s.ctx, st, "student", "", false)
		s.Require().NoError(err)
	}
	for _, inst := range []domain.ActorID{testutil.Actors.MIT, testutil.Actors.Harvard, testutil.Actors.Stanford} {
		_, err := registry.CreateProfile(s.ctx, inst, "institute", "", true)
		s.Require().NoError(err)
	}
}

func (s *ManagerSuite) lastEvent() *events.Event {
	all, err := s.events.ListAfter(s.ctx, 0, 0)
	s.Require().NoError(err)
	s.Require().NotEmpty(all)
	return all[len(all)-1]
}

func (s *ManagerSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, code), "expected %s, got %v", code, err)
}

func (s *ManagerSuite) TestLinkToInstitute() {
	s.Run("unregistered caller is not a student", func() {
		s.requireCode(s.manager.LinkToInstitute(s.ctx, testutil.Actors.Stranger, testutil.Actors.MIT), dErrors.CodeOnlyStudent)
	})

	s.Run("institute caller is not a student", func() {
		s.requireCode(s.manager.LinkToInstitute(s.ctx, testutil.Actors.Harvard, testutil.Actors.MIT), dErrors.CodeOnlyStudent)
	})

	s.Run("target must be an institute", func() {
		s.requireCode(s.manager.LinkToInstitute(s.ctx, testutil.Actors.Alice, testutil.Actors.Bob), dErrors.CodeInvalidTarget)
		s.requireCode(s.manager.LinkToInstitute(s.ctx, testutil.Actors.Alice, testutil.Actors.Stranger), dErrors.CodeInvalidTarget)
	})

	s.Run("links both directions", func() {
		s.Require().NoError(s.manager.LinkToInstitute(s.ctx, testutil.Actors.Alice, testutil.Actors.MIT))

		institute, err := s.manager.CurrentInstitute(s.ctx, testutil.Actors.Alice)
		s.Require().NoError(err)
		s.Equal(testutil.Actors.MIT, institute)

		students, err := s.manager.GetInstituteStudents(s.ctx, testutil.Actors.MIT)
		s.Require().NoError(err)
		s.Equal([]domain.ActorID{testutil.Actors.Alice}, students)

		e := s.lastEvent()
		s.Equal(events.StudentLinked{Student: testutil.Actors.Alice, Institute: testutil.Actors.MIT}, e.Payload)
	})

	s.Run("second link is rejected", func() {
		s.requireCode(s.manager.LinkToInstitute(s.ctx, testutil.Actors.Alice, testutil.Actors.Harvard), dErrors.CodeAlreadyLinked)
	})
}

func (s *ManagerSuite) TestRequestInstituteChange() {
	s.Run("unlinked student cannot request", func() {
		s.requireCode(s.manager.RequestInstituteChange(s.ctx, testutil.Actors.Bob, testutil.Actors.Harvard), dErrors.CodeNotLinked)
	})

	s.Require().NoError(s.manager.LinkToInstitute(s.ctx, testutil.Actors.Alice, testutil.Actors.MIT))

	s.Run("non-student caller", func() {
		s.requireCode(s.manager.RequestInstituteChange(s.ctx, testutil.Actors.MIT, testutil.Actors.Harvard), dErrors.CodeOnlyStudent)
	})

	s.Run("target must be an institute", func() {
		s.requireCode(s.manager.RequestInstituteChange(s.ctx, testutil.Actors.Alice, testutil.Actors.Bob), dErrors.CodeInvalidTarget)
	})

	s.Run("same institute is rejected", func() {
		s.requireCode(s.manager.RequestInstituteChange(s.ctx, testutil.Actors.Alice, testutil.Actors.MIT), dErrors.CodeSameInstitute)
	})

	s.Run("records a pending request", func() {
		s.Require().NoError(s.manager.RequestInstituteChange(s.ctx, testutil.Actors.Alice, testutil.Actors.Harvard))

		req, err := s.manager.GetInstituteChangeRequest(s.ctx, testutil.Actors.Alice)
		s.Require().NoError(err)
		s.True(req.Pending)
		s.Equal(testutil.Actors.Harvard, req.Target)
		s.Equal(events.TypeTransferRequested, s.lastEvent().Type)
	})
}

func (s *ManagerSuite) TestApproveInstituteChange() {
	s.Require().NoError(s.manager.LinkToInstitute(s.ctx, testutil.Actors.Alice, testutil.Actors.MIT))
	s.Require().NoError(s.manager.LinkToInstitute(s.ctx, testutil.Actors.Bob, testutil.Actors.MIT))

	s.Run("nothing pending", func() {
		s.requireCode(s.manager.ApproveInstituteChange(s.ctx, testutil.Actors.MIT, testutil.Actors.Alice), dErrors.CodeNoPendingRequest)
	})

	s.Require().NoError(s.manager.RequestInstituteChange(s.ctx, testutil.Actors.Alice, testutil.Actors.Harvard))

	s.Run("only the current institute may approve", func() {
		s.requireCode(s.manager.ApproveInstituteChange(s.ctx, testutil.Actors.Harvard, testutil.Actors.Alice), dErrors.CodeUnauthorized)
		s.requireCode(s.manager.ApproveInstituteChange(s.ctx, testutil.Actors.Alice, testutil.Actors.Alice), dErrors.CodeUnauthorized)
	})

	s.Run("moves the student and clears the request", func() {
		s.Require().NoError(s.manager.ApproveInstituteChange(s.ctx, testutil.Actors.MIT, testutil.Actors.Alice))

		institute, err := s.manager.CurrentInstitute(s.ctx, testutil.Actors.Alice)
		s.Require().NoError(err)
		s.Equal(testutil.Actors.Harvard, institute)

		mit, err := s.manager.GetInstituteStudents(s.ctx, testutil.Actors.MIT)
		s.Require().NoError(err)
		s.Equal([]domain.ActorID{testutil.Actors.Bob}, mit)

		harvard, err := s.manager.GetInstituteStudents(s.ctx, testutil.Actors.Harvard)
		s.Require().NoError(err)
		s.Equal([]domain.ActorID{testutil.Actors.Alice}, harvard)

		req, err := s.manager.GetInstituteChangeRequest(s.ctx, testutil.Actors.Alice)
		s.Require().NoError(err)
		s.False(req.Pending)
		s.True(req.Target.IsZero())

		s.Equal(events.TransferApproved{
			Student:      testutil.Actors.Alice,
			OldInstitute: testutil.Actors.MIT,
			NewInstitute: testutil.Actors.Harvard,
		}, s.lastEvent().Payload)
	})

	s.Run("the old institute loses approval rights", func() {
		s.requireCode(s.manager.ApproveInstituteChange(s.ctx, testutil.Actors.MIT, testutil.Actors.Alice), dErrors.CodeUnauthorized)
	})
}

func (s *ManagerSuite) TestLastRequestWins() {
	s.Require().NoError(s.manager.LinkToInstitute(s.ctx, testutil.Actors.Alice, testutil.Actors.MIT))

	s.Require().NoError(s.manager.RequestInstituteChange(s.ctx, testutil.Actors.Alice, testutil.Actors.Harvard))
	s.Require().NoError(s.manager.RequestInstituteChange(s.ctx, testutil.Actors.Alice, testutil.Actors.Stanford))
	s.Require().NoError(s.manager.ApproveInstituteChange(s.ctx, testutil.Actors.MIT, testutil.Actors.Alice))

	institute, err := s.manager.CurrentInstitute(s.ctx, testutil.Actors.Alice)
	s.Require().NoError(err)
	s.Equal(testutil.Actors.Stanford, institute)
}
