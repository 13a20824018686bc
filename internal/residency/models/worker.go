package models

import (
	"slices"
	"time"

	id "bunkhouse/pkg/domain"
	dErrors "bunkhouse/pkg/domain-errors"
)

// WorkerStatus tracks the lifecycle state machine:
// Unregistered → Active → Inactive → Active → …
type WorkerStatus string

const (
	WorkerStatusActive   WorkerStatus = "active"
	WorkerStatusInactive WorkerStatus = "inactive"
)

// StayPeriod is one closed or open residency interval at one farm/room.
//
// Invariants:
//   - ExitDate >= EntryDate when both are present
//   - periods of one worker never overlap in time
//
// Anomalous marks synthetic closures: a transfer found a lingering open
// period with no exit date on record and closed it with a zero-day duration
// rather than fabricating one silently.
type StayPeriod struct {
	FarmID     id.FarmID  `json:"farmId"`
	Room       string     `json:"room,omitempty"`
	Sector     string     `json:"sector,omitempty"`
	EntryDate  time.Time  `json:"entryDate"`
	ExitDate   *time.Time `json:"exitDate,omitempty"`
	ExitReason string     `json:"exitReason,omitempty"`
	Anomalous  bool       `json:"anomalous,omitempty"`
}

// IsOpen reports whether the period has no exit date yet.
func (p StayPeriod) IsOpen() bool { return p.ExitDate == nil }

// Worker is the aggregate root for one network-wide identity. There is one
// record per national ID across all farms; transfers mutate FarmID in place
// and the ID never changes.
//
// Invariants:
//   - History is chronological by entry date
//   - at most one period in History is open, and if present it is the
//     chronologically last entry
//   - when Status is active, the open period matches the worker's current
//     (FarmID, Room, CurrentEntryDate)
type Worker struct {
	ID                id.WorkerID   `json:"id"`
	NationalID        id.NationalID `json:"nationalId"`
	FullName          string        `json:"fullName"`
	Gender            id.Gender     `json:"gender"`
	FarmID            id.FarmID     `json:"farmId"`
	Room              string        `json:"room,omitempty"`
	Sector            string        `json:"sector,omitempty"`
	Status            WorkerStatus  `json:"status"`
	CurrentEntryDate  time.Time     `json:"currentEntryDate"`
	CurrentExitDate   *time.Time    `json:"currentExitDate,omitempty"`
	CurrentExitReason string        `json:"currentExitReason,omitempty"`
	History           []StayPeriod  `json:"history"`
	ReturnCount       int           `json:"returnCount"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func NewWorker(workerID id.WorkerID, nationalID id.NationalID, fullName string, gender id.Gender, farmID id.FarmID, now time.Time) (*Worker, error) {
	if nationalID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "worker national id cannot be empty")
	}
	if fullName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "worker full name cannot be empty")
	}
	if !gender.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "worker gender is invalid")
	}
	if farmID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "worker farm id cannot be nil")
	}
	return &Worker{
		ID:         workerID,
		NationalID: nationalID,
		FullName:   fullName,
		Gender:     gender,
		FarmID:     farmID,
		Status:     WorkerStatusInactive,
		History:    []StayPeriod{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (w *Worker) IsActive() bool { return w.Status == WorkerStatusActive }

// OpenPeriodIndex returns the index of the open period in History, or -1.
func (w *Worker) OpenPeriodIndex() int {
	for i := range w.History {
		if w.History[i].IsOpen() {
			return i
		}
	}
	return -1
}

// LastPeriod returns the chronologically last period, or nil when History is
// empty.
func (w *Worker) LastPeriod() *StayPeriod {
	if len(w.History) == 0 {
		return nil
	}
	return &w.History[len(w.History)-1]
}

// Clone returns a deep copy so ledger operations can stay pure.
func (w *Worker) Clone() *Worker {
	c := *w
	c.History = slices.Clone(w.History)
	if w.CurrentExitDate != nil {
		t := *w.CurrentExitDate
		c.CurrentExitDate = &t
	}
	return &c
}
