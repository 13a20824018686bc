// Package occupancy enforces the room occupancy invariant: a room's recorded
// occupant set equals the set of active workers assigned to that room whose
// gender matches the room's category. Single-worker transitions go through
// ApplyDelta; ReconcileRoom and ReconcileAll recompute from ground truth and
// are the system's self-healing pass.
//
// All functions here are pure - they return updated copies and the
// coordinator persists them.
package occupancy

import (
	"context"
	"slices"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	farmmodels "bunkhouse/internal/farm/models"
	"bunkhouse/internal/residency/models"
	id "bunkhouse/pkg/domain"
	dErrors "bunkhouse/pkg/domain-errors"
)

// DeltaOp is a single-worker occupancy transition.
type DeltaOp string

const (
	DeltaAdd    DeltaOp = "add"
	DeltaRemove DeltaOp = "remove"
)

// reconcileConcurrency bounds the repair fan-out.
const reconcileConcurrency = 8

// ApplyDelta computes the room's new occupant set for one worker transition.
//
// Errors on add: CodeCapacityExceeded when the room is full,
// CodeGenderMismatch when the worker's gender does not match the room's
// category, CodeInvariantViolation when the room belongs to another farm.
// Callers treat these as non-fatal: the worker's room assignment is cleared
// and the lifecycle operation continues. Remove never fails; removing an
// absent worker is a no-op.
func ApplyDelta(room *farmmodels.Room, w *models.Worker, op DeltaOp) (*farmmodels.Room, error) {
	out := room.Clone()
	switch op {
	case DeltaAdd:
		if room.FarmID != w.FarmID {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "room belongs to a different farm")
		}
		if w.Gender != room.GenderCategory {
			return nil, dErrors.Newf(dErrors.CodeGenderMismatch,
				"room %s only houses %s workers", room.Number, room.GenderCategory)
		}
		if room.Contains(w.ID) {
			return out, nil
		}
		if room.OccupantCount >= room.Capacity {
			return nil, dErrors.Newf(dErrors.CodeCapacityExceeded,
				"room %s is at capacity (%d)", room.Number, room.Capacity)
		}
		out.Occupants = append(out.Occupants, w.ID)
		sortOccupants(out.Occupants)
	case DeltaRemove:
		out.Occupants = slices.DeleteFunc(out.Occupants, func(occupant id.WorkerID) bool {
			return occupant == w.ID
		})
	}
	out.OccupantCount = len(out.Occupants)
	return out, nil
}

// Detail records one corrected room for the reconciliation report.
type Detail struct {
	RoomID     string   `json:"roomId"`
	RoomNumber string   `json:"roomNumber"`
	FarmID     string   `json:"farmId"`
	OldCount   int      `json:"oldCount"`
	NewCount   int      `json:"newCount"`
	Workers    []string `json:"workers"`
}

// Report summarizes a reconciliation pass.
type Report struct {
	RoomsChecked int      `json:"roomsChecked"`
	RoomsUpdated int      `json:"roomsUpdated"`
	Details      []Detail `json:"details"`
}

// ReconcileRoom recomputes the room's true occupant set from the active
// workers of its farm. Idempotent: unchanged inputs produce changed=false
// and no new room value worth persisting.
func ReconcileRoom(room *farmmodels.Room, activeWorkers []models.Worker) (*farmmodels.Room, bool, Detail) {
	names := make([]string, 0, len(activeWorkers))
	trueSet := make([]id.WorkerID, 0, len(room.Occupants))
	for i := range activeWorkers {
		w := &activeWorkers[i]
		if !w.IsActive() || w.FarmID != room.FarmID || w.Room != room.Number || w.Gender != room.GenderCategory {
			continue
		}
		trueSet = append(trueSet, w.ID)
		names = append(names, w.FullName)
	}
	sortOccupants(trueSet)

	detail := Detail{
		RoomID:     room.ID.String(),
		RoomNumber: room.Number,
		FarmID:     room.FarmID.String(),
		OldCount:   room.OccupantCount,
		NewCount:   len(trueSet),
		Workers:    names,
	}

	stored := slices.Clone(room.Occupants)
	sortOccupants(stored)
	if room.OccupantCount == len(trueSet) && slices.Equal(stored, trueSet) {
		return room, false, detail
	}

	out := room.Clone()
	out.Occupants = trueSet
	out.OccupantCount = len(trueSet)
	return out, true, detail
}

// ReconcileAll runs ReconcileRoom for every room with bounded concurrency.
// Returns the corrected rooms to persist and a change report. Safe to run
// concurrently with live traffic: it recomputes from current worker state
// rather than diffing against a remembered baseline.
func ReconcileAll(ctx context.Context, rooms []farmmodels.Room, workers []models.Worker) ([]farmmodels.Room, *Report, error) {
	report := &Report{RoomsChecked: len(rooms)}
	var (
		mu      sync.Mutex
		updated []farmmodels.Room
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)
	for i := range rooms {
		room := &rooms[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fixed, changed, detail := ReconcileRoom(room, workers)
			if !changed {
				return nil
			}
			mu.Lock()
			updated = append(updated, *fixed)
			report.Details = append(report.Details, detail)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(report.Details, func(i, j int) bool {
		return report.Details[i].RoomID < report.Details[j].RoomID
	})
	report.RoomsUpdated = len(updated)
	return updated, report, nil
}

func sortOccupants(ids []id.WorkerID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
