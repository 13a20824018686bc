package httptransport

import (
	"time"

	"bunkhouse/internal/residency/models"
	id "bunkhouse/pkg/domain"
	dErrors "bunkhouse/pkg/domain-errors"
)

// Request payloads are loose JSON shapes; each converts into the closed
// command struct the engine accepts. Dates arrive as "2006-01-02" and are
// interpreted as UTC midnight.

const dateLayout = "2006-01-02"

func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, dErrors.Newf(dErrors.CodeValidation, "%s is required", field)
	}
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, dErrors.Newf(dErrors.CodeValidation, "%s must be a YYYY-MM-DD date", field)
	}
	return t, nil
}

type RegisterRequest struct {
	NationalID string `json:"nationalId"`
	FullName   string `json:"fullName"`
	Gender     string `json:"gender"`
	Room       string `json:"room,omitempty"`
	Sector     string `json:"sector,omitempty"`
	EntryDate  string `json:"entryDate"`
}

// Command builds the register command scoped to the caller's farm.
func (r RegisterRequest) Command(farmID id.FarmID) (models.RegisterCommand, error) {
	nationalID, err := id.ParseNationalID(r.NationalID)
	if err != nil {
		return models.RegisterCommand{}, err
	}
	gender, err := id.ParseGender(r.Gender)
	if err != nil {
		return models.RegisterCommand{}, err
	}
	entryDate, err := parseDate("entryDate", r.EntryDate)
	if err != nil {
		return models.RegisterCommand{}, err
	}
	return models.RegisterCommand{
		FarmID:     farmID,
		NationalID: nationalID,
		FullName:   r.FullName,
		Gender:     gender,
		Room:       r.Room,
		Sector:     r.Sector,
		EntryDate:  entryDate,
	}, nil
}

type RecordExitRequest struct {
	ExitDate   string `json:"exitDate"`
	ExitReason string `json:"exitReason"`
}

func (r RecordExitRequest) Command(workerID id.WorkerID) (models.RecordExitCommand, error) {
	exitDate, err := parseDate("exitDate", r.ExitDate)
	if err != nil {
		return models.RecordExitCommand{}, err
	}
	return models.RecordExitCommand{
		WorkerID:   workerID,
		ExitDate:   exitDate,
		ExitReason: r.ExitReason,
	}, nil
}

type ReactivateRequest struct {
	Room      string `json:"room,omitempty"`
	Sector    string `json:"sector,omitempty"`
	EntryDate string `json:"entryDate"`
}

func (r ReactivateRequest) Command(workerID id.WorkerID, farmID id.FarmID) (models.ReactivateCommand, error) {
	entryDate, err := parseDate("entryDate", r.EntryDate)
	if err != nil {
		return models.ReactivateCommand{}, err
	}
	return models.ReactivateCommand{
		WorkerID:  workerID,
		FarmID:    farmID,
		Room:      r.Room,
		Sector:    r.Sector,
		EntryDate: entryDate,
	}, nil
}

type TransferRequest struct {
	Room      string `json:"room,omitempty"`
	Sector    string `json:"sector,omitempty"`
	EntryDate string `json:"entryDate"`
}

// Command builds the transfer command; the destination is always the
// caller's own farm.
func (r TransferRequest) Command(workerID id.WorkerID, toFarmID id.FarmID) (models.TransferCommand, error) {
	entryDate, err := parseDate("entryDate", r.EntryDate)
	if err != nil {
		return models.TransferCommand{}, err
	}
	return models.TransferCommand{
		WorkerID:  workerID,
		ToFarmID:  toFarmID,
		Room:      r.Room,
		Sector:    r.Sector,
		EntryDate: entryDate,
	}, nil
}

type EditEntryDateRequest struct {
	EntryDate string `json:"entryDate"`
}

func (r EditEntryDateRequest) Command(workerID id.WorkerID) (models.EditEntryDateCommand, error) {
	entryDate, err := parseDate("entryDate", r.EntryDate)
	if err != nil {
		return models.EditEntryDateCommand{}, err
	}
	return models.EditEntryDateCommand{
		WorkerID:     workerID,
		NewEntryDate: entryDate,
	}, nil
}
