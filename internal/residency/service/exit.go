package service

import (
	"context"
	"errors"
	"time"

	"bunkhouse/internal/docstore"
	"bunkhouse/internal/notify"
	"bunkhouse/internal/occupancy"
	"bunkhouse/internal/residency/ledger"
	"bunkhouse/internal/residency/models"
	dErrors "bunkhouse/pkg/domain-errors"
	"bunkhouse/pkg/platform/sentinel"
	"bunkhouse/pkg/requestcontext"
)

// RecordExit closes the worker's open stay period, deactivates the worker,
// and removes them from their room, all in one batch. The farm's own admins
// learn an exit was recorded; other farms learn the worker is available -
// or, when the exit resolves a blocked registration, only the blocked
// requester's farm is told.
//
// Errors: CodeNotFound for an unknown worker; CodeValidation when the worker
// is not active or the exit date precedes the entry date.
func (s *Service) RecordExit(ctx context.Context, cmd models.RecordExitCommand) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "residency.RecordExit")
	defer span.End()

	if err := cmd.Validate(); err != nil {
		s.metrics.ObserveOperation("record_exit", "invalid", start)
		return err
	}

	worker, err := s.loadWorker(ctx, cmd.WorkerID)
	if err != nil {
		s.metrics.ObserveOperation("record_exit", "error", start)
		return err
	}
	if !worker.IsActive() {
		s.metrics.ObserveOperation("record_exit", "invalid", start)
		return dErrors.New(dErrors.CodeValidation, "worker is not active")
	}

	w, err := ledger.ClosePeriod(worker, cmd.ExitDate, cmd.ExitReason)
	if err != nil {
		s.metrics.ObserveOperation("record_exit", "error", start)
		return err
	}
	w.Status = models.WorkerStatusInactive
	w.UpdatedAt = requestcontext.Now(ctx)

	writes := make([]docstore.Write, 0, 2)
	if roomWrite := s.roomRemoveWrite(ctx, worker); roomWrite != nil {
		writes = append(writes, *roomWrite)
	}
	writes = append(writes, s.workers.Write(w))

	if err := s.batch.BatchWrite(ctx, writes); err != nil {
		s.metrics.ObserveOperation("record_exit", "error", start)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist exit")
	}

	s.logger.InfoContext(ctx, "exit recorded",
		"worker_id", w.ID,
		"farm_id", w.FarmID,
		"exit_date", cmd.ExitDate,
		"exit_reason", cmd.ExitReason,
	)

	s.notifyFarmAdmins(ctx, w.FarmID, notify.Payload{
		Kind:       notify.KindExitRecorded,
		WorkerName: w.FullName,
		NationalID: w.NationalID,
		FarmID:     w.FarmID,
		ExitDate:   &cmd.ExitDate,
	})
	s.notifyWorkerAvailable(ctx, w, cmd.ExitDate)

	s.metrics.ObserveOperation("record_exit", "ok", start)
	return nil
}

// notifyWorkerAvailable tells other farms the worker may now be registered.
// A remembered blocked requester gets a targeted message; otherwise every
// other farm's admins are informed.
func (s *Service) notifyWorkerAvailable(ctx context.Context, w *models.Worker, exitDate time.Time) {
	if s.notifier == nil {
		return
	}
	payload := notify.Payload{
		Kind:       notify.KindWorkerAvailable,
		WorkerName: w.FullName,
		NationalID: w.NationalID,
		FarmID:     w.FarmID,
		ExitDate:   &exitDate,
	}

	if requester, ok := s.takeConflict(w.NationalID); ok {
		s.notifyFarmAdmins(ctx, requester, payload)
		return
	}

	farms, err := s.farms.ListAll(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping availability broadcast, farm list failed", "error", err)
		return
	}
	for i := range farms {
		if farms[i].ID == w.FarmID || len(farms[i].Admins) == 0 {
			continue
		}
		s.notifier.Send(ctx, farms[i].Admins, payload)
	}
}

// roomRemoveWrite builds the room update removing the worker, if the worker
// has a room and the room still exists.
func (s *Service) roomRemoveWrite(ctx context.Context, w *models.Worker) *docstore.Write {
	if w.Room == "" {
		return nil
	}
	room, err := s.rooms.FindByNumber(ctx, w.FarmID, w.Room)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "room lookup failed during removal, repair pass will correct",
				"worker_id", w.ID,
				"room", w.Room,
				"error", err,
			)
		}
		return nil
	}
	if !room.Contains(w.ID) {
		return nil
	}
	updated, err := occupancy.ApplyDelta(room, w, occupancy.DeltaRemove)
	if err != nil {
		return nil
	}
	wr := s.rooms.Write(updated)
	return &wr
}
