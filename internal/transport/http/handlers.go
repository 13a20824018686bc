package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bunkhouse/internal/occupancy"
	"bunkhouse/internal/residency/models"
	"bunkhouse/internal/residency/service"
	id "bunkhouse/pkg/domain"
	dErrors "bunkhouse/pkg/domain-errors"
	"bunkhouse/pkg/platform/httputil"
	"bunkhouse/pkg/requestcontext"
)

// Service defines the lifecycle operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, cmd models.RegisterCommand) (*service.RegisterResult, error)
	RecordExit(ctx context.Context, cmd models.RecordExitCommand) error
	Reactivate(ctx context.Context, cmd models.ReactivateCommand) error
	Transfer(ctx context.Context, cmd models.TransferCommand) error
	EditEntryDate(ctx context.Context, cmd models.EditEntryDateCommand) error
	Remove(ctx context.Context, cmd models.RemoveCommand) error
	Repair(ctx context.Context) (*occupancy.Report, error)
}

// Handler wires worker lifecycle endpoints to the residency service. Tenant
// scope comes from the authenticated principal, never from the payload: a
// farm admin can only register into, and transfer workers to, their own farm.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs the handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the worker endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/workers", h.HandleRegister)
	r.Post("/workers/{workerID}/exit", h.HandleRecordExit)
	r.Post("/workers/{workerID}/reactivate", h.HandleReactivate)
	r.Post("/workers/{workerID}/transfer", h.HandleTransfer)
	r.Patch("/workers/{workerID}/entry-date", h.HandleEditEntryDate)
	r.Delete("/workers/{workerID}", h.HandleRemove)
	r.Post("/repair", h.HandleRepair)
}

// HandleRegister handles POST /workers.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[RegisterRequest](w, r, h.logger)
	if !ok {
		return
	}
	cmd, err := req.Command(principal.FarmID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Register(ctx, cmd)
	if err != nil {
		h.logError(ctx, "registration failed", err)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Conflict != nil {
		// A blocked or confirmable conflict is a resolved outcome, not an
		// error; 409 signals no worker was created.
		status = http.StatusConflict
	}

	h.logger.InfoContext(ctx, "registration handled",
		"request_id", requestcontext.RequestID(ctx),
		"farm_id", principal.FarmID,
		"created", result.Worker != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, status, FromRegisterResult(result))
}

// HandleRecordExit handles POST /workers/{workerID}/exit.
func (h *Handler) HandleRecordExit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := h.requirePrincipal(w, ctx); !ok {
		return
	}
	workerID, ok := h.workerIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[RecordExitRequest](w, r, h.logger)
	if !ok {
		return
	}
	cmd, err := req.Command(workerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.RecordExit(ctx, cmd); err != nil {
		h.logError(ctx, "exit recording failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReactivate handles POST /workers/{workerID}/reactivate.
func (h *Handler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	workerID, ok := h.workerIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[ReactivateRequest](w, r, h.logger)
	if !ok {
		return
	}
	cmd, err := req.Command(workerID, principal.FarmID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Reactivate(ctx, cmd); err != nil {
		h.logError(ctx, "reactivation failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTransfer handles POST /workers/{workerID}/transfer. The destination
// farm is the caller's: transfer is the receiving farm's confirmation step.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	workerID, ok := h.workerIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[TransferRequest](w, r, h.logger)
	if !ok {
		return
	}
	cmd, err := req.Command(workerID, principal.FarmID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Transfer(ctx, cmd); err != nil {
		h.logError(ctx, "transfer failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEditEntryDate handles PATCH /workers/{workerID}/entry-date.
func (h *Handler) HandleEditEntryDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := h.requirePrincipal(w, ctx); !ok {
		return
	}
	workerID, ok := h.workerIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[EditEntryDateRequest](w, r, h.logger)
	if !ok {
		return
	}
	cmd, err := req.Command(workerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.EditEntryDate(ctx, cmd); err != nil {
		h.logError(ctx, "entry date edit failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemove handles DELETE /workers/{workerID}.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := h.requirePrincipal(w, ctx); !ok {
		return
	}
	workerID, ok := h.workerIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(ctx, models.RemoveCommand{WorkerID: workerID}); err != nil {
		h.logError(ctx, "worker removal failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRepair handles POST /repair: an on-demand reconciliation pass in
// addition to the periodic one.
func (h *Handler) HandleRepair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := h.requirePrincipal(w, ctx); !ok {
		return
	}

	report, err := h.service.Repair(ctx)
	if err != nil {
		h.logError(ctx, "repair pass failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReport(report))
}

func (h *Handler) requirePrincipal(w http.ResponseWriter, ctx context.Context) (requestcontext.PrincipalInfo, bool) {
	principal := requestcontext.Principal(ctx)
	if principal.ID.IsNil() || principal.FarmID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return requestcontext.PrincipalInfo{}, false
	}
	return principal, true
}

func (h *Handler) workerIDParam(w http.ResponseWriter, r *http.Request) (id.WorkerID, bool) {
	workerID, err := id.ParseWorkerID(chi.URLParam(r, "workerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.WorkerID{}, false
	}
	return workerID, true
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
