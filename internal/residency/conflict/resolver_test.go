package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bunkhouse/internal/residency/models"
	id "bunkhouse/pkg/domain"
)

// =============================================================================
// Conflict Resolver Test Suite
// =============================================================================

type ResolverSuite struct {
	suite.Suite
	farmA id.FarmID
	farmB id.FarmID
	entry time.Time
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.farmA = id.NewFarmID()
	s.farmB = id.NewFarmID()
	s.entry = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
}

func (s *ResolverSuite) worker(farmID id.FarmID, status models.WorkerStatus) *models.Worker {
	w, err := models.NewWorker(id.NewWorkerID(), "AB123", "Jan Kowalski", id.GenderMale, farmID, s.entry)
	s.Require().NoError(err)
	w.Status = status
	return w
}

func (s *ResolverSuite) TestClassify() {
	s.Run("no existing worker creates", func() {
		action, conflictCase := Classify(nil, Registration{FarmID: s.farmA, EntryDate: s.entry})
		s.Equal(models.ActionCreate, action)
		s.Nil(conflictCase)
	})

	s.Run("active at the same farm rejects duplicate", func() {
		existing := s.worker(s.farmA, models.WorkerStatusActive)
		action, conflictCase := Classify(existing, Registration{FarmID: s.farmA, EntryDate: s.entry})
		s.Equal(models.ActionRejectDuplicateLocal, action)
		s.Require().NotNil(conflictCase)
		s.Equal(existing.ID, conflictCase.Existing.ID)
	})

	s.Run("active at another farm blocks and notifies", func() {
		existing := s.worker(s.farmA, models.WorkerStatusActive)
		action, conflictCase := Classify(existing, Registration{FarmID: s.farmB, EntryDate: s.entry})
		s.Equal(models.ActionBlockAndNotify, action)
		s.Require().NotNil(conflictCase)
		s.Equal(s.farmB, conflictCase.RequestingFarmID)
		s.Equal(s.farmA, conflictCase.Existing.FarmID)
	})

	s.Run("inactive at the same farm offers reactivation", func() {
		existing := s.worker(s.farmA, models.WorkerStatusInactive)
		action, _ := Classify(existing, Registration{FarmID: s.farmA, EntryDate: s.entry})
		s.Equal(models.ActionReactivate, action)
	})

	s.Run("inactive at another farm offers transfer", func() {
		existing := s.worker(s.farmA, models.WorkerStatusInactive)
		action, conflictCase := Classify(existing, Registration{FarmID: s.farmB, EntryDate: s.entry})
		s.Equal(models.ActionTransfer, action)
		s.Require().NotNil(conflictCase)
		s.True(conflictCase.RequestedEntryDate.Equal(s.entry))
	})
}

func (s *ResolverSuite) TestAdvisoryNameMatches() {
	s.Run("flags a same-name worker with a different national id", func() {
		other := s.worker(s.farmB, models.WorkerStatusActive)
		other.NationalID = "XY999"

		warnings := AdvisoryNameMatches([]models.Worker{*other}, "Jan Kowalski", "AB123")
		s.Len(warnings, 1)
		s.Contains(warnings[0], "Jan Kowalski")
		s.Contains(warnings[0], "XY999")
	})

	s.Run("normalizes case and whitespace", func() {
		other := s.worker(s.farmB, models.WorkerStatusActive)
		other.NationalID = "XY999"

		warnings := AdvisoryNameMatches([]models.Worker{*other}, "  jan   KOWALSKI ", "AB123")
		s.Len(warnings, 1)
	})

	s.Run("skips the worker holding the same national id", func() {
		other := s.worker(s.farmB, models.WorkerStatusActive)
		warnings := AdvisoryNameMatches([]models.Worker{*other}, "Jan Kowalski", "AB123")
		s.Empty(warnings)
	})

	s.Run("empty name yields nothing", func() {
		warnings := AdvisoryNameMatches(nil, "   ", "AB123")
		s.Empty(warnings)
	})
}
