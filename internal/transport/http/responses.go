package httptransport

import (
	"time"

	"bunkhouse/internal/occupancy"
	"bunkhouse/internal/residency/models"
	"bunkhouse/internal/residency/service"
)

type StayPeriodResponse struct {
	FarmID     string  `json:"farmId"`
	Room       string  `json:"room,omitempty"`
	Sector     string  `json:"sector,omitempty"`
	EntryDate  string  `json:"entryDate"`
	ExitDate   *string `json:"exitDate,omitempty"`
	ExitReason string  `json:"exitReason,omitempty"`
	Anomalous  bool    `json:"anomalous,omitempty"`
}

type WorkerResponse struct {
	ID          string               `json:"id"`
	NationalID  string               `json:"nationalId"`
	FullName    string               `json:"fullName"`
	Gender      string               `json:"gender"`
	FarmID      string               `json:"farmId"`
	Room        string               `json:"room,omitempty"`
	Sector      string               `json:"sector,omitempty"`
	Status      string               `json:"status"`
	EntryDate   string               `json:"entryDate"`
	ExitDate    *string              `json:"exitDate,omitempty"`
	ReturnCount int                  `json:"returnCount"`
	History     []StayPeriodResponse `json:"history"`
}

type ConflictResponse struct {
	Action             string   `json:"action"`
	ExistingWorkerID   string   `json:"existingWorkerId"`
	ExistingFarmID     string   `json:"existingFarmId"`
	ExistingStatus     string   `json:"existingStatus"`
	WorkerName         string   `json:"workerName"`
	RequestedEntryDate string   `json:"requestedEntryDate"`
	Warnings           []string `json:"warnings,omitempty"`
}

type RegisterResponse struct {
	Worker   *WorkerResponse   `json:"worker,omitempty"`
	Conflict *ConflictResponse `json:"conflict,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

type RepairResponse struct {
	RoomsChecked int                `json:"roomsChecked"`
	RoomsUpdated int                `json:"roomsUpdated"`
	Details      []occupancy.Detail `json:"details,omitempty"`
}

func formatDate(t time.Time) string { return t.Format(dateLayout) }

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

func FromWorker(w *models.Worker) *WorkerResponse {
	history := make([]StayPeriodResponse, 0, len(w.History))
	for _, p := range w.History {
		history = append(history, StayPeriodResponse{
			FarmID:     p.FarmID.String(),
			Room:       p.Room,
			Sector:     p.Sector,
			EntryDate:  formatDate(p.EntryDate),
			ExitDate:   formatDatePtr(p.ExitDate),
			ExitReason: p.ExitReason,
			Anomalous:  p.Anomalous,
		})
	}
	return &WorkerResponse{
		ID:          w.ID.String(),
		NationalID:  string(w.NationalID),
		FullName:    w.FullName,
		Gender:      string(w.Gender),
		FarmID:      w.FarmID.String(),
		Room:        w.Room,
		Sector:      w.Sector,
		Status:      string(w.Status),
		EntryDate:   formatDate(w.CurrentEntryDate),
		ExitDate:    formatDatePtr(w.CurrentExitDate),
		ReturnCount: w.ReturnCount,
		History:     history,
	}
}

func FromConflict(c *models.ConflictCase) *ConflictResponse {
	return &ConflictResponse{
		Action:             string(c.Action),
		ExistingWorkerID:   c.Existing.ID.String(),
		ExistingFarmID:     c.Existing.FarmID.String(),
		ExistingStatus:     string(c.Existing.Status),
		WorkerName:         c.Existing.FullName,
		RequestedEntryDate: formatDate(c.RequestedEntryDate),
		Warnings:           c.Warnings,
	}
}

func FromRegisterResult(res *service.RegisterResult) RegisterResponse {
	out := RegisterResponse{Warnings: res.Warnings}
	if res.Worker != nil {
		out.Worker = FromWorker(res.Worker)
	}
	if res.Conflict != nil {
		out.Conflict = FromConflict(res.Conflict)
	}
	return out
}

func FromReport(r *occupancy.Report) RepairResponse {
	return RepairResponse{
		RoomsChecked: r.RoomsChecked,
		RoomsUpdated: r.RoomsUpdated,
		Details:      r.Details,
	}
}
