package service

import (
	"context"
	"fmt"
	"time"

	"bunkhouse/internal/docstore"
	"bunkhouse/internal/notify"
	"bunkhouse/internal/occupancy"
	"bunkhouse/internal/residency/ledger"
	"bunkhouse/internal/residency/models"
	id "bunkhouse/pkg/domain"
	dErrors "bunkhouse/pkg/domain-errors"
	"bunkhouse/pkg/requestcontext"
)

// EditEntryDate rewrites the entry date of the worker's open stay period.
// The farm's admins are informed so a correction does not pass silently.
//
// Errors: CodeNotFound for an unknown worker; CodeValidation when the worker
// is not active; CodeOverlap when the new date collides with the previous
// period.
func (s *Service) EditEntryDate(ctx context.Context, cmd models.EditEntryDateCommand) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "residency.EditEntryDate")
	defer span.End()

	if err := cmd.Validate(); err != nil {
		s.metrics.ObserveOperation("edit_entry_date", "invalid", start)
		return err
	}

	worker, err := s.loadWorker(ctx, cmd.WorkerID)
	if err != nil {
		s.metrics.ObserveOperation("edit_entry_date", "error", start)
		return err
	}
	if !worker.IsActive() {
		s.metrics.ObserveOperation("edit_entry_date", "invalid", start)
		return dErrors.New(dErrors.CodeValidation, "worker is not active")
	}
	oldDate := worker.CurrentEntryDate

	w, err := ledger.EditOpenPeriodStart(worker, cmd.NewEntryDate)
	if err != nil {
		s.metrics.ObserveOperation("edit_entry_date", "error", start)
		return err
	}
	w.UpdatedAt = requestcontext.Now(ctx)

	if err := s.batch.BatchWrite(ctx, []docstore.Write{s.workers.Write(w)}); err != nil {
		s.metrics.ObserveOperation("edit_entry_date", "error", start)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist entry date change")
	}

	s.logger.InfoContext(ctx, "entry date changed",
		"worker_id", w.ID,
		"farm_id", w.FarmID,
		"old_entry_date", oldDate,
		"new_entry_date", cmd.NewEntryDate,
	)
	s.notifyFarmAdmins(ctx, w.FarmID, notify.Payload{
		Kind:       notify.KindEntryDateChanged,
		WorkerName: w.FullName,
		NationalID: w.NationalID,
		FarmID:     w.FarmID,
		EntryDate:  &cmd.NewEntryDate,
		Note:       fmt.Sprintf("entry date moved from %s", oldDate.Format("2006-01-02")),
	})

	s.metrics.ObserveOperation("edit_entry_date", "ok", start)
	return nil
}

// Remove hard-deletes a worker record together with its full history. The
// worker is pulled from their room in the same batch, and the national-ID
// reservation is released so the ID can be registered again.
func (s *Service) Remove(ctx context.Context, cmd models.RemoveCommand) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "residency.Remove")
	defer span.End()

	if err := cmd.Validate(); err != nil {
		s.metrics.ObserveOperation("remove", "invalid", start)
		return err
	}

	worker, err := s.loadWorker(ctx, cmd.WorkerID)
	if err != nil {
		s.metrics.ObserveOperation("remove", "error", start)
		return err
	}

	writes := make([]docstore.Write, 0, 3)
	if roomWrite := s.roomRemoveWrite(ctx, worker); roomWrite != nil {
		writes = append(writes, *roomWrite)
	}
	writes = append(writes, s.workers.DeleteWrite(worker.ID))
	if farmWrite := s.farmCountWrite(ctx, worker.FarmID, worker.ID); farmWrite != nil {
		writes = append(writes, *farmWrite)
	}

	if err := s.batch.BatchWrite(ctx, writes); err != nil {
		s.metrics.ObserveOperation("remove", "error", start)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete worker")
	}

	s.releaseReservation(ctx, true, worker.NationalID)

	s.logger.InfoContext(ctx, "worker removed",
		"worker_id", worker.ID,
		"farm_id", worker.FarmID,
	)
	s.metrics.ObserveOperation("remove", "ok", start)
	return nil
}

// Repair recomputes every room's occupant set from the workers' current
// state and persists the rooms that drifted, then refreshes each farm's
// cached worker count. Idempotent: a second run right after a clean one
// changes nothing.
func (s *Service) Repair(ctx context.Context) (*occupancy.Report, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "residency.Repair")
	defer span.End()

	rooms, err := s.rooms.ListAll(ctx)
	if err != nil {
		s.metrics.ObserveOperation("repair", "error", start)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list rooms")
	}
	workers, err := s.workers.ListAll(ctx)
	if err != nil {
		s.metrics.ObserveOperation("repair", "error", start)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list workers")
	}

	updated, report, err := occupancy.ReconcileAll(ctx, rooms, workers)
	if err != nil {
		s.metrics.ObserveOperation("repair", "error", start)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "reconciliation failed")
	}

	writes := make([]docstore.Write, 0, len(updated))
	for i := range updated {
		writes = append(writes, s.rooms.Write(&updated[i]))
	}
	writes = append(writes, s.farmCountWrites(ctx, workers)...)

	if len(writes) > 0 {
		if err := s.batch.BatchWrite(ctx, writes); err != nil {
			s.metrics.ObserveOperation("repair", "error", start)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist repairs")
		}
	}

	for _, d := range report.Details {
		s.logger.InfoContext(ctx, "room occupancy repaired",
			"room_id", d.RoomID,
			"room_number", d.RoomNumber,
			"farm_id", d.FarmID,
			"old_count", d.OldCount,
			"new_count", d.NewCount,
		)
	}
	s.logger.InfoContext(ctx, "repair pass complete",
		"rooms_checked", report.RoomsChecked,
		"rooms_updated", report.RoomsUpdated,
	)

	s.metrics.AddRoomsRepaired(report.RoomsUpdated)
	s.metrics.ObserveOperation("repair", "ok", start)
	return report, nil
}

// farmCountWrite recomputes one farm's active-worker count, excluding the
// worker being deleted, and returns an update when the cached count drifted.
// Lookup failures are logged and skipped: the repair pass catches up.
func (s *Service) farmCountWrite(ctx context.Context, farmID id.FarmID, excluding id.WorkerID) *docstore.Write {
	farm, err := s.farms.FindByID(ctx, farmID)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping farm count update, farm lookup failed",
			"farm_id", farmID,
			"error", err,
		)
		return nil
	}

	workers, err := s.workers.ListByFarm(ctx, farmID)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping farm count update, worker list failed",
			"farm_id", farmID,
			"error", err,
		)
		return nil
	}

	count := 0
	for i := range workers {
		if workers[i].ID != excluding && workers[i].IsActive() {
			count++
		}
	}
	if farm.WorkerCount == count {
		return nil
	}
	farm.WorkerCount = count
	write := s.farms.Write(farm)
	return &write
}

// farmCountWrites returns updates for farms whose cached active-worker count
// drifted from the worker records.
func (s *Service) farmCountWrites(ctx context.Context, workers []models.Worker) []docstore.Write {
	farms, err := s.farms.ListAll(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping farm count repair, farm list failed", "error", err)
		return nil
	}

	counts := make(map[string]int, len(farms))
	for i := range workers {
		if workers[i].IsActive() {
			counts[workers[i].FarmID.String()]++
		}
	}

	var writes []docstore.Write
	for i := range farms {
		want := counts[farms[i].ID.String()]
		if farms[i].WorkerCount == want {
			continue
		}
		f := farms[i]
		f.WorkerCount = want
		writes = append(writes, s.farms.Write(&f))
	}
	return writes
}
