// Package conflict classifies registration attempts against the existing
// network-wide worker sharing the same national ID. This is pure domain
// logic - no I/O, no side effects. The coordinator drives the side effects
// the chosen action requires.
package conflict

import (
	"strings"
	"time"

	"bunkhouse/internal/residency/models"
	id "bunkhouse/pkg/domain"
)

// Registration is the subset of a register command the resolver needs.
type Registration struct {
	FarmID    id.FarmID
	FullName  string
	EntryDate time.Time
}

// Classify applies the decision table, evaluated in order on
// (existing, existing.Status, existing.FarmID == requester.FarmID):
//
//  1. no existing worker                  → ActionCreate
//  2. existing, active, same farm        → ActionRejectDuplicateLocal
//  3. existing, active, different farm   → ActionBlockAndNotify
//  4. existing, inactive, same farm      → ActionReactivate (confirm)
//  5. existing, inactive, different farm → ActionTransfer (confirm)
//
// A nil case accompanies ActionCreate; every other action carries the
// conflict case describing the collision.
func Classify(existing *models.Worker, req Registration) (models.ConflictAction, *models.ConflictCase) {
	if existing == nil {
		return models.ActionCreate, nil
	}

	action := models.ActionTransfer
	switch {
	case existing.IsActive() && existing.FarmID == req.FarmID:
		action = models.ActionRejectDuplicateLocal
	case existing.IsActive():
		action = models.ActionBlockAndNotify
	case existing.FarmID == req.FarmID:
		action = models.ActionReactivate
	}

	return action, &models.ConflictCase{
		Action: action,
		Existing: models.WorkerRef{
			ID:         existing.ID,
			NationalID: existing.NationalID,
			FullName:   existing.FullName,
			FarmID:     existing.FarmID,
			Status:     existing.Status,
		},
		RequestingFarmID:   req.FarmID,
		RequestedEntryDate: req.EntryDate,
	}
}

// AdvisoryNameMatches returns a warning per worker whose full name matches
// the registration's but whose national ID differs. This is a deliberate
// soft check: it surfaces on the result and never blocks.
func AdvisoryNameMatches(candidates []models.Worker, fullName string, nationalID id.NationalID) []string {
	want := normalizeName(fullName)
	if want == "" {
		return nil
	}

	var warnings []string
	for i := range candidates {
		c := &candidates[i]
		if c.NationalID == nationalID {
			continue
		}
		if normalizeName(c.FullName) == want {
			warnings = append(warnings,
				"a worker named "+c.FullName+" already exists with national id "+c.NationalID.String())
		}
	}
	return warnings
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
