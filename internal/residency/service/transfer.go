package service

import (
	"context"
	"time"

	"bunkhouse/internal/docstore"
	"bunkhouse/internal/residency/ledger"
	"bunkhouse/internal/residency/models"
	dErrors "bunkhouse/pkg/domain-errors"
	"bunkhouse/pkg/requestcontext"
)

// Reactivate reopens a stay for an inactive worker at their own farm. Only
// invoked after the caller explicitly confirmed the resolver's reactivate
// case.
//
// Errors: CodeNotFound for an unknown worker; CodeValidation when the worker
// is still active or belongs to a different farm; CodeOverlap when the entry
// date collides with history.
func (s *Service) Reactivate(ctx context.Context, cmd models.ReactivateCommand) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "residency.Reactivate")
	defer span.End()

	if err := cmd.Validate(); err != nil {
		s.metrics.ObserveOperation("reactivate", "invalid", start)
		return err
	}

	worker, err := s.loadWorker(ctx, cmd.WorkerID)
	if err != nil {
		s.metrics.ObserveOperation("reactivate", "error", start)
		return err
	}
	if worker.IsActive() {
		s.metrics.ObserveOperation("reactivate", "invalid", start)
		return dErrors.New(dErrors.CodeValidation, "worker is already active")
	}
	if worker.FarmID != cmd.FarmID {
		s.metrics.ObserveOperation("reactivate", "invalid", start)
		return dErrors.New(dErrors.CodeValidation, "worker belongs to a different farm; use transfer")
	}

	w, err := ledger.OpenPeriod(worker, cmd.FarmID, cmd.Room, cmd.Sector, cmd.EntryDate)
	if err != nil {
		s.metrics.ObserveOperation("reactivate", "error", start)
		return err
	}
	w.Status = models.WorkerStatusActive
	w.ReturnCount++
	w.UpdatedAt = requestcontext.Now(ctx)

	writes := make([]docstore.Write, 0, 2)
	if roomWrite := s.attemptRoomAdd(ctx, w); roomWrite != nil {
		writes = append(writes, *roomWrite)
	}
	writes = append(writes, s.workers.Write(w))

	if err := s.batch.BatchWrite(ctx, writes); err != nil {
		s.metrics.ObserveOperation("reactivate", "error", start)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist reactivation")
	}

	s.logger.InfoContext(ctx, "worker reactivated",
		"worker_id", w.ID,
		"farm_id", w.FarmID,
		"return_count", w.ReturnCount,
	)
	s.metrics.ObserveOperation("reactivate", "ok", start)
	return nil
}

// Transfer moves an inactive worker to a different farm. The worker's id
// never changes; the record's farm, room, and sector are updated in place
// and a new period opens under the destination. A lingering open period
// belonging to the old farm is closed first - synthetically, flagged
// anomalous, when no exit date was on record.
//
// Errors: CodeNotFound for an unknown worker; CodeValidation when the worker
// is still active or already belongs to the destination farm.
func (s *Service) Transfer(ctx context.Context, cmd models.TransferCommand) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "residency.Transfer")
	defer span.End()

	if err := cmd.Validate(); err != nil {
		s.metrics.ObserveOperation("transfer", "invalid", start)
		return err
	}

	worker, err := s.loadWorker(ctx, cmd.WorkerID)
	if err != nil {
		s.metrics.ObserveOperation("transfer", "error", start)
		return err
	}
	if worker.IsActive() {
		s.metrics.ObserveOperation("transfer", "invalid", start)
		return dErrors.New(dErrors.CodeValidation, "worker is still active; record an exit first")
	}
	if worker.FarmID == cmd.ToFarmID {
		s.metrics.ObserveOperation("transfer", "invalid", start)
		return dErrors.New(dErrors.CodeValidation, "worker already belongs to this farm; use reactivate")
	}

	fromFarm := worker.FarmID

	w, closed, anomalous := ledger.CloseForTransfer(worker, "transferred")
	if anomalous {
		s.metrics.IncAnomalousClosure()
		s.logger.WarnContext(ctx, "closed lingering open period without exit date",
			"worker_id", w.ID,
			"old_farm", fromFarm,
		)
	}

	w, err = ledger.OpenPeriod(w, cmd.ToFarmID, cmd.Room, cmd.Sector, cmd.EntryDate)
	if err != nil {
		s.metrics.ObserveOperation("transfer", "error", start)
		return err
	}
	w.Status = models.WorkerStatusActive
	w.ReturnCount++
	w.UpdatedAt = requestcontext.Now(ctx)

	writes := make([]docstore.Write, 0, 2)
	if roomWrite := s.attemptRoomAdd(ctx, w); roomWrite != nil {
		writes = append(writes, *roomWrite)
	}
	writes = append(writes, s.workers.Write(w))

	if err := s.batch.BatchWrite(ctx, writes); err != nil {
		s.metrics.ObserveOperation("transfer", "error", start)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist transfer")
	}

	s.logger.InfoContext(ctx, "worker transferred",
		"worker_id", w.ID,
		"from_farm", fromFarm,
		"to_farm", cmd.ToFarmID,
		"closed_lingering_period", closed,
		"anomalous_closure", anomalous,
	)
	s.metrics.ObserveOperation("transfer", "ok", start)
	return nil
}
