// Package ledger maintains the ordered, non-overlapping stay-period history
// of one worker. All operations are pure: they take a worker snapshot,
// perform no I/O, and return an updated copy for the coordinator to persist.
package ledger

import (
	"sort"
	"time"

	"bunkhouse/internal/residency/models"
	id "bunkhouse/pkg/domain"
	dErrors "bunkhouse/pkg/domain-errors"
)

// OpenPeriod appends a new open period and updates the worker's current
// assignment fields.
//
// Errors: CodeOverlap when an open period already exists or the entry date
// falls inside an earlier period; no other errors are expected.
func OpenPeriod(w *models.Worker, farmID id.FarmID, room, sector string, entryDate time.Time) (*models.Worker, error) {
	if w.OpenPeriodIndex() != -1 {
		return nil, dErrors.New(dErrors.CodeOverlap, "worker already has an open stay period")
	}
	if last := w.LastPeriod(); last != nil && last.ExitDate != nil && entryDate.Before(*last.ExitDate) {
		return nil, dErrors.New(dErrors.CodeOverlap, "entry date overlaps the previous stay period")
	}

	out := w.Clone()
	out.History = append(out.History, models.StayPeriod{
		FarmID:    farmID,
		Room:      room,
		Sector:    sector,
		EntryDate: entryDate,
	})
	sortHistory(out)

	out.FarmID = farmID
	out.Room = room
	out.Sector = sector
	out.CurrentEntryDate = entryDate
	out.CurrentExitDate = nil
	out.CurrentExitReason = ""
	return out, nil
}

// ClosePeriod sets the exit date and reason on the worker's open period.
// When history has drifted and no period is open, it falls back to the
// period matching the worker's current entry date, reconciling the drift
// transparently.
//
// Errors: CodeNotFound when neither an open nor a matching period exists;
// CodeValidation when the exit date precedes the period's entry date.
func ClosePeriod(w *models.Worker, exitDate time.Time, exitReason string) (*models.Worker, error) {
	idx := w.OpenPeriodIndex()
	if idx == -1 {
		idx = periodIndexByEntry(w, w.CurrentEntryDate)
	}
	if idx == -1 {
		return nil, dErrors.New(dErrors.CodeNotFound, "worker has no open stay period")
	}
	if exitDate.Before(w.History[idx].EntryDate) {
		return nil, dErrors.New(dErrors.CodeValidation, "exit date cannot precede entry date")
	}

	out := w.Clone()
	exit := exitDate
	out.History[idx].ExitDate = &exit
	out.History[idx].ExitReason = exitReason
	out.CurrentExitDate = &exit
	out.CurrentExitReason = exitReason
	return out, nil
}

// EditOpenPeriodStart rewrites the open period's entry date and re-sorts
// history chronologically.
//
// Errors: CodeNotFound when no period is open; CodeOverlap when the new date
// falls inside the previous period.
func EditOpenPeriodStart(w *models.Worker, newEntryDate time.Time) (*models.Worker, error) {
	idx := w.OpenPeriodIndex()
	if idx == -1 {
		return nil, dErrors.New(dErrors.CodeNotFound, "worker has no open stay period")
	}
	if idx > 0 {
		prev := w.History[idx-1]
		if prev.ExitDate != nil && newEntryDate.Before(*prev.ExitDate) {
			return nil, dErrors.New(dErrors.CodeOverlap, "new entry date overlaps the previous stay period")
		}
	}

	out := w.Clone()
	out.History[idx].EntryDate = newEntryDate
	sortHistory(out)
	out.CurrentEntryDate = newEntryDate
	return out, nil
}

// CloseForTransfer closes a lingering open period that still belongs to the
// worker's old farm. The exit date already on record is preferred; when
// absent, the period is closed at its own entry date and flagged anomalous
// instead of silently fabricating a duration.
//
// Returns the updated worker, whether a period was closed, and whether the
// closure was synthetic. A worker with no open period passes through
// unchanged.
func CloseForTransfer(w *models.Worker, exitReason string) (*models.Worker, bool, bool) {
	idx := w.OpenPeriodIndex()
	if idx == -1 {
		return w.Clone(), false, false
	}

	out := w.Clone()
	period := &out.History[idx]

	anomalous := false
	exit := period.EntryDate
	if w.CurrentExitDate != nil && !w.CurrentExitDate.Before(period.EntryDate) {
		exit = *w.CurrentExitDate
	} else {
		anomalous = true
	}

	period.ExitDate = &exit
	period.Anomalous = anomalous
	if period.ExitReason == "" {
		period.ExitReason = exitReason
	}
	out.CurrentExitDate = &exit
	if out.CurrentExitReason == "" {
		out.CurrentExitReason = exitReason
	}
	return out, true, anomalous
}

// Validate checks the history invariants. Used by tests and the repair
// report, not on the hot path.
func Validate(w *models.Worker) error {
	open := 0
	for i := range w.History {
		p := w.History[i]
		if p.ExitDate != nil && p.ExitDate.Before(p.EntryDate) {
			return dErrors.New(dErrors.CodeInvariantViolation, "stay period exits before it enters")
		}
		if i > 0 && p.EntryDate.Before(w.History[i-1].EntryDate) {
			return dErrors.New(dErrors.CodeInvariantViolation, "history is not chronological")
		}
		if p.IsOpen() {
			open++
			if i != len(w.History)-1 {
				return dErrors.New(dErrors.CodeInvariantViolation, "open period is not the last entry")
			}
		}
	}
	if open > 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "worker has more than one open period")
	}
	if w.IsActive() && open == 1 {
		last := w.History[len(w.History)-1]
		if last.FarmID != w.FarmID || last.Room != w.Room || !last.EntryDate.Equal(w.CurrentEntryDate) {
			return dErrors.New(dErrors.CodeInvariantViolation, "open period does not match current assignment")
		}
	}
	return nil
}

func periodIndexByEntry(w *models.Worker, entryDate time.Time) int {
	if entryDate.IsZero() {
		return -1
	}
	for i := range w.History {
		if w.History[i].EntryDate.Equal(entryDate) {
			return i
		}
	}
	return -1
}

func sortHistory(w *models.Worker) {
	sort.SliceStable(w.History, func(i, j int) bool {
		return w.History[i].EntryDate.Before(w.History[j].EntryDate)
	})
}
