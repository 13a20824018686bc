// Package notify is the fire-and-forget side channel the coordinator uses to
// inform farm administrators of relevant state changes. Delivery is
// best-effort and at-most-once: sends never block or fail the lifecycle
// operation that triggered them, and no invariant depends on a message
// arriving.
package notify

import (
	"time"

	id "bunkhouse/pkg/domain"
)

// Kind classifies a notification payload.
type Kind string

const (
	// KindConflictBlocked: a registration at another farm was refused
	// because this farm still holds the worker active.
	KindConflictBlocked Kind = "conflict_blocked"
	// KindExitRecorded: an exit was recorded for a worker of this farm.
	KindExitRecorded Kind = "exit_recorded"
	// KindWorkerAvailable: a worker elsewhere became inactive and may now
	// be registered or transferred.
	KindWorkerAvailable Kind = "worker_available"
	// KindEntryDateChanged: informational, the open period's entry date was
	// edited.
	KindEntryDateChanged Kind = "entry_date_changed"
)

// Payload is the message body delivered to each recipient. It carries enough
// detail for a blocked farm's admins to locate the worker and close the
// conflict by recording an exit date.
type Payload struct {
	Kind             Kind          `json:"kind"`
	WorkerName       string        `json:"workerName"`
	NationalID       id.NationalID `json:"nationalId"`
	FarmID           id.FarmID     `json:"farmId"`
	RequestingFarmID *id.FarmID    `json:"requestingFarmId,omitempty"`
	EntryDate        *time.Time    `json:"entryDate,omitempty"`
	ExitDate         *time.Time    `json:"exitDate,omitempty"`
	Note             string        `json:"note,omitempty"`
}

// Message is one payload addressed to one recipient.
type Message struct {
	Recipient id.PrincipalID
	Payload   Payload
}
