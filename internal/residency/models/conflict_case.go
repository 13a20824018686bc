package models

import (
	"time"

	id "bunkhouse/pkg/domain"
)

// ConflictAction is the resolver's verdict on a registration attempt that
// collided with an existing worker sharing the national ID.
type ConflictAction string

const (
	// ActionCreate: no collision, proceed with a normal registration.
	ActionCreate ConflictAction = "create"
	// ActionRejectDuplicateLocal: same farm already holds the worker active.
	ActionRejectDuplicateLocal ConflictAction = "reject_duplicate_local"
	// ActionBlockAndNotify: another farm holds the worker active; the
	// registration is refused and that farm's admins are informed.
	ActionBlockAndNotify ConflictAction = "block_and_notify"
	// ActionReactivate: same farm, inactive worker; caller may confirm a
	// reactivation.
	ActionReactivate ConflictAction = "reactivate"
	// ActionTransfer: different farm, inactive worker; caller may confirm a
	// cross-farm transfer.
	ActionTransfer ConflictAction = "transfer"
)

// WorkerRef is the snapshot of the existing worker carried on a conflict
// case. Enough detail for the blocked farm's admins to locate the record and
// close the conflict by recording an exit.
type WorkerRef struct {
	ID         id.WorkerID   `json:"id"`
	NationalID id.NationalID `json:"nationalId"`
	FullName   string        `json:"fullName"`
	FarmID     id.FarmID     `json:"farmId"`
	Status     WorkerStatus  `json:"status"`
}

// ConflictCase is the transient decision record produced when a registration
// attempt collides with an existing worker. It is returned to the caller and
// never persisted.
type ConflictCase struct {
	Action             ConflictAction `json:"action"`
	Existing           WorkerRef      `json:"existing"`
	RequestingFarmID   id.FarmID      `json:"requestingFarmId"`
	RequestedEntryDate time.Time      `json:"requestedEntryDate"`
	// Warnings carries advisory findings, such as name-similarity matches.
	// They never block an action.
	Warnings []string `json:"warnings,omitempty"`
}
