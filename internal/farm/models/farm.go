package models

import (
	"slices"
	"time"

	id "bunkhouse/pkg/domain"
	dErrors "bunkhouse/pkg/domain-errors"
)

// Farm is the tenant boundary. It owns rooms, carries the admin principals
// that conflict and exit notifications route to, and keeps an aggregate
// worker counter that is recomputed, never incremented blindly.
type Farm struct {
	ID          id.FarmID        `json:"id"`
	Name        string           `json:"name"`
	Admins      []id.PrincipalID `json:"admins"`
	WorkerCount int              `json:"workerCount"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func NewFarm(farmID id.FarmID, name string, now time.Time) (*Farm, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "farm name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "farm name must be 128 characters or less")
	}
	return &Farm{
		ID:        farmID,
		Name:      name,
		Admins:    []id.PrincipalID{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// AddAdmin registers a principal for notification routing. Duplicates are
// ignored.
func (f *Farm) AddAdmin(principal id.PrincipalID) {
	if slices.Contains(f.Admins, principal) {
		return
	}
	f.Admins = append(f.Admins, principal)
}
