package domain

import (
	"github.com/google/uuid"

	dErrors "bunkhouse/pkg/domain-errors"
)

// Typed IDs keep worker, farm, room, and principal identifiers from being
// mixed up at compile time. Construct via the Parse helpers at trust
// boundaries; direct casting bypasses validation.
type (
	WorkerID    uuid.UUID
	FarmID      uuid.UUID
	RoomID      uuid.UUID
	PrincipalID uuid.UUID
)

func NewWorkerID() WorkerID       { return WorkerID(uuid.New()) }
func NewFarmID() FarmID           { return FarmID(uuid.New()) }
func NewRoomID() RoomID           { return RoomID(uuid.New()) }
func NewPrincipalID() PrincipalID { return PrincipalID(uuid.New()) }

func (id WorkerID) String() string    { return uuid.UUID(id).String() }
func (id FarmID) String() string      { return uuid.UUID(id).String() }
func (id RoomID) String() string      { return uuid.UUID(id).String() }
func (id PrincipalID) String() string { return uuid.UUID(id).String() }

func (id WorkerID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id FarmID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id RoomID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id PrincipalID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id WorkerID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id FarmID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id RoomID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id PrincipalID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *WorkerID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = WorkerID(u)
	return nil
}

func (id *FarmID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = FarmID(u)
	return nil
}

func (id *RoomID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = RoomID(u)
	return nil
}

func (id *PrincipalID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = PrincipalID(u)
	return nil
}

// ParseWorkerID constructs a WorkerID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or the
// nil UUID; no other errors are expected.
func ParseWorkerID(s string) (WorkerID, error) {
	u, err := parseUUID(s, "worker id")
	if err != nil {
		return WorkerID{}, err
	}
	return WorkerID(u), nil
}

// ParseFarmID constructs a FarmID from external input.
func ParseFarmID(s string) (FarmID, error) {
	u, err := parseUUID(s, "farm id")
	if err != nil {
		return FarmID{}, err
	}
	return FarmID(u), nil
}

// ParseRoomID constructs a RoomID from external input.
func ParseRoomID(s string) (RoomID, error) {
	u, err := parseUUID(s, "room id")
	if err != nil {
		return RoomID{}, err
	}
	return RoomID(u), nil
}

// ParsePrincipalID constructs a PrincipalID from external input.
func ParsePrincipalID(s string) (PrincipalID, error) {
	u, err := parseUUID(s, "principal id")
	if err != nil {
		return PrincipalID{}, err
	}
	return PrincipalID(u), nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be the nil UUID")
	}
	return u, nil
}
