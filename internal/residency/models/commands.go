package models

import (
	"time"

	id "bunkhouse/pkg/domain"
	dErrors "bunkhouse/pkg/domain-errors"
)

// Lifecycle operations take closed command structs validated at the boundary.
// Handlers parse loose request payloads into these; nothing loosely-typed
// crosses into the engine.

// RegisterCommand attempts to register a worker at a farm.
type RegisterCommand struct {
	FarmID     id.FarmID
	NationalID id.NationalID
	FullName   string
	Gender     id.Gender
	Room       string
	Sector     string
	EntryDate  time.Time
}

func (c RegisterCommand) Validate() error {
	if c.FarmID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "farm id is required")
	}
	if c.NationalID.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "national id is required")
	}
	if c.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "full name is required")
	}
	if !c.Gender.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "gender is required")
	}
	if c.EntryDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "entry date is required")
	}
	return nil
}

// RecordExitCommand closes the active stay of a worker.
type RecordExitCommand struct {
	WorkerID   id.WorkerID
	ExitDate   time.Time
	ExitReason string
}

func (c RecordExitCommand) Validate() error {
	if c.WorkerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "worker id is required")
	}
	if c.ExitDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "exit date is required")
	}
	if c.ExitReason == "" {
		return dErrors.New(dErrors.CodeValidation, "exit reason is required")
	}
	return nil
}

// ReactivateCommand reopens a stay for an inactive worker at the same farm.
// Issued only after the caller explicitly confirmed the conflict case.
type ReactivateCommand struct {
	WorkerID  id.WorkerID
	FarmID    id.FarmID
	Room      string
	Sector    string
	EntryDate time.Time
}

func (c ReactivateCommand) Validate() error {
	if c.WorkerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "worker id is required")
	}
	if c.FarmID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "farm id is required")
	}
	if c.EntryDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "entry date is required")
	}
	return nil
}

// TransferCommand moves an inactive worker to a different farm, preserving
// the worker id and full history. Issued only after explicit confirmation.
type TransferCommand struct {
	WorkerID  id.WorkerID
	ToFarmID  id.FarmID
	Room      string
	Sector    string
	EntryDate time.Time
}

func (c TransferCommand) Validate() error {
	if c.WorkerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "worker id is required")
	}
	if c.ToFarmID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "destination farm id is required")
	}
	if c.EntryDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "entry date is required")
	}
	return nil
}

// EditEntryDateCommand rewrites the open period's entry date.
type EditEntryDateCommand struct {
	WorkerID     id.WorkerID
	NewEntryDate time.Time
}

func (c EditEntryDateCommand) Validate() error {
	if c.WorkerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "worker id is required")
	}
	if c.NewEntryDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "new entry date is required")
	}
	return nil
}

// RemoveCommand hard-deletes a worker record. Administrative use only.
type RemoveCommand struct {
	WorkerID id.WorkerID
}

func (c RemoveCommand) Validate() error {
	if c.WorkerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "worker id is required")
	}
	return nil
}
