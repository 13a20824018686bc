package models

import (
	"slices"
	"time"

	id "bunkhouse/pkg/domain"
	dErrors "bunkhouse/pkg/domain-errors"
)

// Room is a gendered, capacity-bounded dormitory room owned by exactly one
// farm.
//
// Invariants:
//   - Number is non-empty and unique within the owning farm
//   - Capacity is at least 1
//   - OccupantCount == len(Occupants)
//   - every occupant is an active worker assigned to exactly this room/farm
//     whose gender matches GenderCategory
//
// The occupant fields are derived state. Only the occupancy reconciler ever
// writes them; form edits that touch capacity or gender trigger a
// re-derivation instead of editing occupants by hand.
type Room struct {
	ID             id.RoomID     `json:"id"`
	FarmID         id.FarmID     `json:"farmId"`
	Number         string        `json:"number"`
	GenderCategory id.Gender     `json:"genderCategory"`
	Capacity       int           `json:"capacity"`
	Occupants      []id.WorkerID `json:"occupants"`
	OccupantCount  int           `json:"occupantCount"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func NewRoom(roomID id.RoomID, farmID id.FarmID, number string, gender id.Gender, capacity int, now time.Time) (*Room, error) {
	if number == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "room number cannot be empty")
	}
	if !gender.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "room gender category is invalid")
	}
	if capacity < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "room capacity must be at least 1")
	}
	return &Room{
		ID:             roomID,
		FarmID:         farmID,
		Number:         number,
		GenderCategory: gender,
		Capacity:       capacity,
		Occupants:      []id.WorkerID{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Contains reports whether the worker is in the recorded occupant set.
func (r *Room) Contains(workerID id.WorkerID) bool {
	return slices.Contains(r.Occupants, workerID)
}

// IsFull reports whether the recorded occupant count has reached capacity.
func (r *Room) IsFull() bool {
	return r.OccupantCount >= r.Capacity
}

// Clone returns a deep copy so reconciler operations can stay pure.
func (r *Room) Clone() *Room {
	c := *r
	c.Occupants = slices.Clone(r.Occupants)
	return &c
}
