package service

import (
	"context"
	"errors"
	"time"

	"bunkhouse/internal/docstore"
	"bunkhouse/internal/notify"
	"bunkhouse/internal/occupancy"
	"bunkhouse/internal/residency/conflict"
	"bunkhouse/internal/residency/ledger"
	"bunkhouse/internal/residency/models"
	id "bunkhouse/pkg/domain"
	dErrors "bunkhouse/pkg/domain-errors"
	"bunkhouse/pkg/platform/sentinel"
	"bunkhouse/pkg/requestcontext"
)

// RegisterResult is the outcome of a registration attempt: either a created
// worker, or the conflict case the caller must act on. Reactivate and
// transfer cases require explicit confirmation through their own operations;
// they are never auto-applied.
type RegisterResult struct {
	Worker   *models.Worker       `json:"worker,omitempty"`
	Conflict *models.ConflictCase `json:"conflict,omitempty"`
	Warnings []string             `json:"warnings,omitempty"`
}

// Register runs the conflict resolver and, on a clean create, builds the
// worker with one open stay period and commits worker and room in a single
// batch.
//
// Errors: CodeValidation for bad commands; CodeDuplicateActive when the same
// farm already holds the worker active; CodeInternal on store failure. A
// cross-farm active holder is NOT an error: the blocked conflict case is
// returned and that farm's admins are notified.
func (s *Service) Register(ctx context.Context, cmd models.RegisterCommand) (*RegisterResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "residency.Register")
	defer span.End()

	if err := cmd.Validate(); err != nil {
		s.metrics.ObserveOperation("register", "invalid", start)
		return nil, err
	}

	existing, err := s.workers.FindByNationalID(ctx, cmd.NationalID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.metrics.ObserveOperation("register", "error", start)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up national id")
	}

	warnings := s.advisoryNameWarnings(ctx, cmd)

	action, conflictCase := conflict.Classify(existing, conflict.Registration{
		FarmID:    cmd.FarmID,
		FullName:  cmd.FullName,
		EntryDate: cmd.EntryDate,
	})
	if conflictCase != nil {
		conflictCase.Warnings = warnings
	}
	s.metrics.IncConflict(string(action))

	switch action {
	case models.ActionCreate:
		w, err := s.createWorker(ctx, cmd)
		if err != nil {
			s.metrics.ObserveOperation("register", "error", start)
			return nil, err
		}
		s.logger.InfoContext(ctx, "worker registered",
			"worker_id", w.ID,
			"farm_id", w.FarmID,
			"room", w.Room,
		)
		s.metrics.ObserveOperation("register", "created", start)
		return &RegisterResult{Worker: w, Warnings: warnings}, nil

	case models.ActionRejectDuplicateLocal:
		s.metrics.ObserveOperation("register", "duplicate", start)
		return nil, dErrors.New(dErrors.CodeDuplicateActive, "worker is already registered and active at this farm")

	case models.ActionBlockAndNotify:
		s.rememberConflict(existing.NationalID, cmd.FarmID)
		requester := cmd.FarmID
		s.notifyFarmAdmins(ctx, existing.FarmID, notify.Payload{
			Kind:             notify.KindConflictBlocked,
			WorkerName:       existing.FullName,
			NationalID:       existing.NationalID,
			FarmID:           existing.FarmID,
			RequestingFarmID: &requester,
			EntryDate:        &cmd.EntryDate,
		})
		s.logger.InfoContext(ctx, "registration blocked by active worker at another farm",
			"national_id", cmd.NationalID,
			"holding_farm", existing.FarmID,
			"requesting_farm", cmd.FarmID,
		)
		s.metrics.ObserveOperation("register", "blocked", start)
		return &RegisterResult{Conflict: conflictCase, Warnings: warnings}, nil

	default:
		// Reactivate and transfer are destructive enough - merging identity
		// across tenants - that auto-apply is disallowed. The case guides
		// the caller to the confirmation operation.
		s.metrics.ObserveOperation("register", "confirmation_required", start)
		return &RegisterResult{Conflict: conflictCase, Warnings: warnings}, nil
	}
}

func (s *Service) createWorker(ctx context.Context, cmd models.RegisterCommand) (*models.Worker, error) {
	workerID := id.NewWorkerID()

	reserved := false
	if s.index != nil {
		switch err := s.index.Reserve(ctx, cmd.NationalID, workerID); {
		case err == nil:
			reserved = true
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeDuplicateActive, "national id was just registered elsewhere")
		default:
			// The index is a guard, not the source of truth; an unreachable
			// index degrades to the optimistic path.
			s.logger.WarnContext(ctx, "identity index unavailable, registering without guard",
				"national_id", cmd.NationalID,
				"error", err,
			)
		}
	}

	now := requestcontext.Now(ctx)
	w, err := models.NewWorker(workerID, cmd.NationalID, cmd.FullName, cmd.Gender, cmd.FarmID, now)
	if err != nil {
		s.releaseReservation(ctx, reserved, cmd.NationalID)
		return nil, err
	}
	w, err = ledger.OpenPeriod(w, cmd.FarmID, cmd.Room, cmd.Sector, cmd.EntryDate)
	if err != nil {
		s.releaseReservation(ctx, reserved, cmd.NationalID)
		return nil, err
	}
	w.Status = models.WorkerStatusActive
	w.UpdatedAt = now

	writes := make([]docstore.Write, 0, 2)
	if roomWrite := s.attemptRoomAdd(ctx, w); roomWrite != nil {
		writes = append(writes, *roomWrite)
	}
	writes = append(writes, s.workers.Write(w))

	if err := s.batch.BatchWrite(ctx, writes); err != nil {
		s.releaseReservation(ctx, reserved, cmd.NationalID)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist registration")
	}
	return w, nil
}

// attemptRoomAdd tries to place the worker into the requested room. A room
// that is missing, full, or gender-mismatched drops the assignment: the
// worker's room field is cleared and registration continues. Room assignment
// failure is non-fatal to lifecycle transitions.
func (s *Service) attemptRoomAdd(ctx context.Context, w *models.Worker) *docstore.Write {
	if w.Room == "" {
		return nil
	}
	room, err := s.rooms.FindByNumber(ctx, w.FarmID, w.Room)
	if err != nil {
		s.logger.WarnContext(ctx, "room assignment dropped, room not found",
			"worker_id", w.ID,
			"farm_id", w.FarmID,
			"room", w.Room,
			"error", err,
		)
		clearRoomAssignment(w)
		return nil
	}
	updated, err := occupancy.ApplyDelta(room, w, occupancy.DeltaAdd)
	if err != nil {
		s.logger.WarnContext(ctx, "room assignment dropped",
			"worker_id", w.ID,
			"farm_id", w.FarmID,
			"room", w.Room,
			"error", err,
		)
		clearRoomAssignment(w)
		return nil
	}
	wr := s.rooms.Write(updated)
	return &wr
}

// clearRoomAssignment removes the room from the worker's current state and
// the open period, keeping the open-period invariant intact.
func clearRoomAssignment(w *models.Worker) {
	w.Room = ""
	w.Sector = ""
	if i := w.OpenPeriodIndex(); i != -1 {
		w.History[i].Room = ""
		w.History[i].Sector = ""
	}
}

func (s *Service) releaseReservation(ctx context.Context, reserved bool, nationalID id.NationalID) {
	if !reserved || s.index == nil {
		return
	}
	if err := s.index.Release(ctx, nationalID); err != nil {
		s.logger.WarnContext(ctx, "failed to release national id reservation",
			"national_id", nationalID,
			"error", err,
		)
	}
}

// advisoryNameWarnings surfaces same-name/different-ID matches. A lookup
// failure only costs the advisory, so it is logged and swallowed.
func (s *Service) advisoryNameWarnings(ctx context.Context, cmd models.RegisterCommand) []string {
	candidates, err := s.workers.FindByFullName(ctx, cmd.FullName)
	if err != nil {
		s.logger.WarnContext(ctx, "name similarity check skipped", "error", err)
		return nil
	}
	return conflict.AdvisoryNameMatches(candidates, cmd.FullName, cmd.NationalID)
}
