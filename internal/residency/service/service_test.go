package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bunkhouse/internal/docstore"
	farmmodels "bunkhouse/internal/farm/models"
	farmstore "bunkhouse/internal/farm/store"
	"bunkhouse/internal/identity"
	"bunkhouse/internal/notify"
	"bunkhouse/internal/residency/ledger"
	"bunkhouse/internal/residency/models"
	residencystore "bunkhouse/internal/residency/store"
	id "bunkhouse/pkg/domain"
	dErrors "bunkhouse/pkg/domain-errors"
)

// recordingNotifier captures sends synchronously so tests can assert on
// recipients without a background dispatcher.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (n *recordingNotifier) Send(_ context.Context, recipients []id.PrincipalID, payload notify.Payload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, r := range recipients {
		n.sent = append(n.sent, notify.Message{Recipient: r, Payload: payload})
	}
}

func (n *recordingNotifier) messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Message, len(n.sent))
	copy(out, n.sent)
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

// =============================================================================
// Lifecycle Coordinator Test Suite
// =============================================================================
// Justification for unit tests: the coordinator sequences conflict
// resolution, ledger transitions, room deltas, and notification routing;
// each cross-farm scenario needs precise assertions on what was and was not
// mutated.

type ServiceSuite struct {
	suite.Suite
	ctx context.Context

	docs     *docstore.Memory
	workers  *residencystore.WorkerStore
	rooms    *farmstore.RoomStore
	farms    *farmstore.FarmStore
	notifier *recordingNotifier
	service  *Service

	farmA      *farmmodels.Farm
	farmB      *farmmodels.Farm
	adminA     id.PrincipalID
	adminB     id.PrincipalID
	maleRoomA  *farmmodels.Room
	womenRoomA *farmmodels.Room
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.docs = docstore.NewMemory()
	s.workers = residencystore.NewWorkerStore(s.docs)
	s.rooms = farmstore.NewRoomStore(s.docs)
	s.farms = farmstore.NewFarmStore(s.docs)
	s.notifier = &recordingNotifier{}

	s.service = New(s.workers, s.rooms, s.farms, s.docs,
		WithNotifier(s.notifier),
		WithIdentityIndex(identity.NewInMemory()),
	)

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	s.adminA = id.NewPrincipalID()
	s.adminB = id.NewPrincipalID()

	farmA, err := farmmodels.NewFarm(id.NewFarmID(), "Orchard Farm", now)
	s.Require().NoError(err)
	farmA.AddAdmin(s.adminA)
	s.Require().NoError(s.farms.Save(s.ctx, farmA))
	s.farmA = farmA

	farmB, err := farmmodels.NewFarm(id.NewFarmID(), "Berry Farm", now)
	s.Require().NoError(err)
	farmB.AddAdmin(s.adminB)
	s.Require().NoError(s.farms.Save(s.ctx, farmB))
	s.farmB = farmB

	maleRoom, err := farmmodels.NewRoom(id.NewRoomID(), farmA.ID, "12", id.GenderMale, 2, now)
	s.Require().NoError(err)
	s.Require().NoError(s.rooms.Save(s.ctx, maleRoom))
	s.maleRoomA = maleRoom

	womenRoom, err := farmmodels.NewRoom(id.NewRoomID(), farmA.ID, "7", id.GenderFemale, 2, now)
	s.Require().NoError(err)
	s.Require().NoError(s.rooms.Save(s.ctx, womenRoom))
	s.womenRoomA = womenRoom
}

// run resets the suite fixture before each subtest: lifecycle scenarios
// must not observe each other's workers or room occupancy.
func (s *ServiceSuite) run(name string, fn func()) {
	s.Run(name, func() {
		s.SetupTest()
		fn()
	})
}

func (s *ServiceSuite) date(day int) time.Time {
	return time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) registerCmd(farmID id.FarmID, nationalID, name, room string) models.RegisterCommand {
	return models.RegisterCommand{
		FarmID:     farmID,
		NationalID: id.NationalID(nationalID),
		FullName:   name,
		Gender:     id.GenderMale,
		Room:       room,
		Sector:     "north",
		EntryDate:  s.date(1),
	}
}

func (s *ServiceSuite) mustRegister(cmd models.RegisterCommand) *models.Worker {
	result, err := s.service.Register(s.ctx, cmd)
	s.Require().NoError(err)
	s.Require().NotNil(result.Worker)
	return result.Worker
}

func (s *ServiceSuite) reloadWorker(workerID id.WorkerID) *models.Worker {
	w, err := s.workers.FindByID(s.ctx, workerID)
	s.Require().NoError(err)
	return w
}

func (s *ServiceSuite) reloadRoom(roomID id.RoomID) *farmmodels.Room {
	r, err := s.rooms.FindByID(s.ctx, roomID)
	s.Require().NoError(err)
	return r
}

// =============================================================================
// Register Tests
// =============================================================================

func (s *ServiceSuite) TestRegister() {
	s.run("creates an active worker with one open period and a room", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", "12"))

		s.True(w.IsActive())
		s.Len(w.History, 1)
		s.Nil(w.History[0].ExitDate)
		s.Equal("12", w.Room)
		s.NoError(ledger.Validate(w))

		room := s.reloadRoom(s.maleRoomA.ID)
		s.True(room.Contains(w.ID))
		s.Equal(1, room.OccupantCount)
	})

	s.run("same farm duplicate active is rejected", func() {
		s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", ""))

		_, err := s.service.Register(s.ctx, s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", ""))
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateActive))
	})

	s.run("missing room drops the assignment but registers", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", "no-such-room"))
		s.True(w.IsActive())
		s.Empty(w.Room)
		s.Empty(w.History[0].Room)
	})

	s.run("gender mismatched room is dropped, room untouched", func() {
		cmd := s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", "7")
		w := s.mustRegister(cmd)

		s.True(w.IsActive())
		s.Empty(w.Room)
		room := s.reloadRoom(s.womenRoomA.ID)
		s.Equal(0, room.OccupantCount)
		s.False(room.Contains(w.ID))
	})

	s.run("full room drops the assignment", func() {
		first := s.registerCmd(s.farmA.ID, "AA001", "First Worker", "12")
		second := s.registerCmd(s.farmA.ID, "AA002", "Second Worker", "12")
		third := s.registerCmd(s.farmA.ID, "AA003", "Third Worker", "12")
		s.mustRegister(first)
		s.mustRegister(second)

		w := s.mustRegister(third)
		s.Empty(w.Room)
		room := s.reloadRoom(s.maleRoomA.ID)
		s.Equal(2, room.OccupantCount)
	})

	s.run("same name different national id only warns", func() {
		s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", ""))

		result, err := s.service.Register(s.ctx, s.registerCmd(s.farmB.ID, "CD456", "Jan Kowalski", ""))
		s.NoError(err)
		s.Require().NotNil(result.Worker)
		s.Require().Len(result.Warnings, 1)
		s.Contains(result.Warnings[0], "Jan Kowalski")
	})
}

// =============================================================================
// Cross-Farm Conflict Tests
// =============================================================================

func (s *ServiceSuite) TestCrossFarmConflict() {
	s.run("active elsewhere blocks, notifies holding farm, mutates nothing", func() {
		existing := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", "12"))
		s.notifier.reset()

		result, err := s.service.Register(s.ctx, s.registerCmd(s.farmB.ID, "AB123", "Jan Kowalski", ""))
		s.NoError(err)
		s.Nil(result.Worker)
		s.Require().NotNil(result.Conflict)
		s.Equal(models.ActionBlockAndNotify, result.Conflict.Action)
		s.Equal(s.farmB.ID, result.Conflict.RequestingFarmID)

		// Exactly one notification, to farm A's admin.
		msgs := s.notifier.messages()
		s.Require().Len(msgs, 1)
		s.Equal(s.adminA, msgs[0].Recipient)
		s.Equal(notify.KindConflictBlocked, msgs[0].Payload.Kind)
		s.Require().NotNil(msgs[0].Payload.RequestingFarmID)
		s.Equal(s.farmB.ID, *msgs[0].Payload.RequestingFarmID)

		// Existing record untouched.
		w := s.reloadWorker(existing.ID)
		s.Equal(s.farmA.ID, w.FarmID)
		s.True(w.IsActive())
		s.Len(w.History, 1)
	})

	s.run("exit after a blocked attempt notifies the blocked farm only", func() {
		existing := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", ""))
		_, err := s.service.Register(s.ctx, s.registerCmd(s.farmB.ID, "AB123", "Jan Kowalski", ""))
		s.Require().NoError(err)
		s.notifier.reset()

		err = s.service.RecordExit(s.ctx, models.RecordExitCommand{
			WorkerID:   existing.ID,
			ExitDate:   s.date(20),
			ExitReason: "seasonal",
		})
		s.NoError(err)

		var availableRecipients []id.PrincipalID
		for _, m := range s.notifier.messages() {
			if m.Payload.Kind == notify.KindWorkerAvailable {
				availableRecipients = append(availableRecipients, m.Recipient)
			}
		}
		s.Equal([]id.PrincipalID{s.adminB}, availableRecipients)
	})

	s.run("inactive elsewhere returns a transfer case without mutating", func() {
		existing := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", ""))
		err := s.service.RecordExit(s.ctx, models.RecordExitCommand{
			WorkerID:   existing.ID,
			ExitDate:   s.date(10),
			ExitReason: "seasonal",
		})
		s.Require().NoError(err)

		result, err := s.service.Register(s.ctx, s.registerCmd(s.farmB.ID, "AB123", "Jan Kowalski", ""))
		s.NoError(err)
		s.Nil(result.Worker)
		s.Require().NotNil(result.Conflict)
		s.Equal(models.ActionTransfer, result.Conflict.Action)

		w := s.reloadWorker(existing.ID)
		s.Equal(s.farmA.ID, w.FarmID)
		s.Len(w.History, 1)
	})
}

// =============================================================================
// Exit and Reactivate Tests
// =============================================================================

func (s *ServiceSuite) TestRecordExit() {
	s.run("closes the period, deactivates, and frees the room", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", "12"))

		err := s.service.RecordExit(s.ctx, models.RecordExitCommand{
			WorkerID:   w.ID,
			ExitDate:   s.date(20),
			ExitReason: "seasonal",
		})
		s.NoError(err)

		reloaded := s.reloadWorker(w.ID)
		s.False(reloaded.IsActive())
		s.Require().NotNil(reloaded.History[0].ExitDate)
		s.True(reloaded.History[0].ExitDate.Equal(s.date(20)))

		room := s.reloadRoom(s.maleRoomA.ID)
		s.False(room.Contains(w.ID))
		s.Equal(0, room.OccupantCount)
	})

	s.run("rejects exit for an inactive worker", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", ""))
		cmd := models.RecordExitCommand{WorkerID: w.ID, ExitDate: s.date(20), ExitReason: "seasonal"}
		s.Require().NoError(s.service.RecordExit(s.ctx, cmd))

		err := s.service.RecordExit(s.ctx, cmd)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.run("unknown worker is not found", func() {
		err := s.service.RecordExit(s.ctx, models.RecordExitCommand{
			WorkerID:   id.NewWorkerID(),
			ExitDate:   s.date(20),
			ExitReason: "seasonal",
		})
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestReactivate() {
	s.run("round trip yields two periods and return count one", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", "12"))
		s.Require().NoError(s.service.RecordExit(s.ctx, models.RecordExitCommand{
			WorkerID: w.ID, ExitDate: s.date(10), ExitReason: "seasonal",
		}))

		err := s.service.Reactivate(s.ctx, models.ReactivateCommand{
			WorkerID:  w.ID,
			FarmID:    s.farmA.ID,
			Room:      "12",
			Sector:    "north",
			EntryDate: s.date(15),
		})
		s.NoError(err)

		reloaded := s.reloadWorker(w.ID)
		s.True(reloaded.IsActive())
		s.Len(reloaded.History, 2)
		s.Equal(1, reloaded.ReturnCount)
		s.NoError(ledger.Validate(reloaded))

		room := s.reloadRoom(s.maleRoomA.ID)
		s.True(room.Contains(w.ID))
	})

	s.run("rejects an active worker", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", ""))
		err := s.service.Reactivate(s.ctx, models.ReactivateCommand{
			WorkerID: w.ID, FarmID: s.farmA.ID, EntryDate: s.date(15),
		})
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.run("rejects overlap with the closed period", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", ""))
		s.Require().NoError(s.service.RecordExit(s.ctx, models.RecordExitCommand{
			WorkerID: w.ID, ExitDate: s.date(10), ExitReason: "seasonal",
		}))

		err := s.service.Reactivate(s.ctx, models.ReactivateCommand{
			WorkerID: w.ID, FarmID: s.farmA.ID, EntryDate: s.date(5),
		})
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeOverlap))
	})
}

// =============================================================================
// Transfer Tests
// =============================================================================

func (s *ServiceSuite) TestTransfer() {
	s.run("moves the record and preserves history under one id", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", "12"))
		s.Require().NoError(s.service.RecordExit(s.ctx, models.RecordExitCommand{
			WorkerID: w.ID, ExitDate: s.date(10), ExitReason: "seasonal",
		}))

		err := s.service.Transfer(s.ctx, models.TransferCommand{
			WorkerID:  w.ID,
			ToFarmID:  s.farmB.ID,
			EntryDate: s.date(15),
		})
		s.NoError(err)

		reloaded := s.reloadWorker(w.ID)
		s.Equal(s.farmB.ID, reloaded.FarmID)
		s.True(reloaded.IsActive())
		s.Equal(1, reloaded.ReturnCount)
		s.Len(reloaded.History, 2)
		s.Equal(s.farmA.ID, reloaded.History[0].FarmID)
		s.Equal(s.farmB.ID, reloaded.History[1].FarmID)
		// The properly closed first period gains no synthetic closure.
		s.False(reloaded.History[0].Anomalous)
		s.NoError(ledger.Validate(reloaded))
	})

	s.run("flags a synthetic closure when the open period lingered", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", ""))
		// Deactivate without closing the period, simulating drifted data.
		w.Status = models.WorkerStatusInactive
		s.Require().NoError(s.workers.Save(s.ctx, w))

		err := s.service.Transfer(s.ctx, models.TransferCommand{
			WorkerID:  w.ID,
			ToFarmID:  s.farmB.ID,
			EntryDate: s.date(15),
		})
		s.NoError(err)

		reloaded := s.reloadWorker(w.ID)
		s.True(reloaded.History[0].Anomalous)
		s.Require().NotNil(reloaded.History[0].ExitDate)
		s.True(reloaded.History[0].ExitDate.Equal(reloaded.History[0].EntryDate))
	})

	s.run("rejects an active worker", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", ""))
		err := s.service.Transfer(s.ctx, models.TransferCommand{
			WorkerID: w.ID, ToFarmID: s.farmB.ID, EntryDate: s.date(15),
		})
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.run("rejects a transfer to the same farm", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", ""))
		s.Require().NoError(s.service.RecordExit(s.ctx, models.RecordExitCommand{
			WorkerID: w.ID, ExitDate: s.date(10), ExitReason: "seasonal",
		}))

		err := s.service.Transfer(s.ctx, models.TransferCommand{
			WorkerID: w.ID, ToFarmID: s.farmA.ID, EntryDate: s.date(15),
		})
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Maintenance Tests
// =============================================================================

func (s *ServiceSuite) TestEditEntryDate() {
	s.run("rewrites the open period's entry date and notifies", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", ""))
		s.notifier.reset()

		err := s.service.EditEntryDate(s.ctx, models.EditEntryDateCommand{
			WorkerID:     w.ID,
			NewEntryDate: s.date(3),
		})
		s.NoError(err)

		reloaded := s.reloadWorker(w.ID)
		s.True(reloaded.CurrentEntryDate.Equal(s.date(3)))
		s.True(reloaded.History[0].EntryDate.Equal(s.date(3)))

		msgs := s.notifier.messages()
		s.Require().Len(msgs, 1)
		s.Equal(notify.KindEntryDateChanged, msgs[0].Payload.Kind)
	})

	s.run("rejects an inactive worker even with a lingering open period", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", ""))
		// Deactivate without closing the period, simulating drifted data.
		w.Status = models.WorkerStatusInactive
		s.Require().NoError(s.workers.Save(s.ctx, w))

		err := s.service.EditEntryDate(s.ctx, models.EditEntryDateCommand{
			WorkerID:     w.ID,
			NewEntryDate: s.date(3),
		})
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		reloaded := s.reloadWorker(w.ID)
		s.True(reloaded.CurrentEntryDate.Equal(s.date(1)))
	})
}

func (s *ServiceSuite) TestRemove() {
	s.run("deletes the record, frees the room and the national id", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", "12"))

		err := s.service.Remove(s.ctx, models.RemoveCommand{WorkerID: w.ID})
		s.NoError(err)

		_, err = s.workers.FindByID(s.ctx, w.ID)
		s.Error(err)

		room := s.reloadRoom(s.maleRoomA.ID)
		s.False(room.Contains(w.ID))

		// The national id can be registered again immediately.
		again := s.mustRegister(s.registerCmd(s.farmB.ID, "AB123", "Jan Kowalski", ""))
		s.NotEqual(w.ID, again.ID)
	})

	s.run("refreshes the owning farm's worker count", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", "12"))

		// Settle the cached count, then make sure removal keeps it current
		// without waiting for the next repair tick.
		_, err := s.service.Repair(s.ctx)
		s.Require().NoError(err)
		farm, err := s.farms.FindByID(s.ctx, s.farmA.ID)
		s.Require().NoError(err)
		s.Require().Equal(1, farm.WorkerCount)

		s.Require().NoError(s.service.Remove(s.ctx, models.RemoveCommand{WorkerID: w.ID}))

		farm, err = s.farms.FindByID(s.ctx, s.farmA.ID)
		s.Require().NoError(err)
		s.Equal(0, farm.WorkerCount)
	})
}

func (s *ServiceSuite) TestRepair() {
	s.run("converges drifted rooms and farm counts, then idempotent", func() {
		w := s.mustRegister(s.registerCmd(s.farmA.ID, "AB123", "Jan Kowalski", "12"))

		// Corrupt the room's derived fields behind the coordinator's back.
		room := s.reloadRoom(s.maleRoomA.ID)
		room.Occupants = append(room.Occupants, id.NewWorkerID())
		room.OccupantCount = len(room.Occupants)
		s.Require().NoError(s.rooms.Save(s.ctx, room))

		report, err := s.service.Repair(s.ctx)
		s.NoError(err)
		s.Equal(1, report.RoomsUpdated)

		fixed := s.reloadRoom(s.maleRoomA.ID)
		s.Equal(1, fixed.OccupantCount)
		s.True(fixed.Contains(w.ID))

		farm, err := s.farms.FindByID(s.ctx, s.farmA.ID)
		s.Require().NoError(err)
		s.Equal(1, farm.WorkerCount)

		report, err = s.service.Repair(s.ctx)
		s.NoError(err)
		s.Equal(0, report.RoomsUpdated)
	})
}
