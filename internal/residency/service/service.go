// Package service hosts the lifecycle coordinator: the public entry point
// that orchestrates the stay-period ledger, the conflict resolver, and the
// occupancy reconciler for the worker operations, and runs the periodic
// repair pass.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"bunkhouse/internal/docstore"
	farmmodels "bunkhouse/internal/farm/models"
	"bunkhouse/internal/identity"
	"bunkhouse/internal/notify"
	"bunkhouse/internal/residency/metrics"
	"bunkhouse/internal/residency/models"
	id "bunkhouse/pkg/domain"
	dErrors "bunkhouse/pkg/domain-errors"
	"bunkhouse/pkg/platform/sentinel"
)

// WorkerStore is the worker persistence the coordinator needs. Implemented
// by internal/residency/store; declared here so tests can swap it.
type WorkerStore interface {
	FindByID(ctx context.Context, workerID id.WorkerID) (*models.Worker, error)
	FindByNationalID(ctx context.Context, nationalID id.NationalID) (*models.Worker, error)
	FindByFullName(ctx context.Context, fullName string) ([]models.Worker, error)
	ListByFarm(ctx context.Context, farmID id.FarmID) ([]models.Worker, error)
	ListAll(ctx context.Context) ([]models.Worker, error)
	Write(w *models.Worker) docstore.Write
	DeleteWrite(workerID id.WorkerID) docstore.Write
}

// RoomStore is the room persistence the coordinator needs.
type RoomStore interface {
	FindByNumber(ctx context.Context, farmID id.FarmID, number string) (*farmmodels.Room, error)
	ListAll(ctx context.Context) ([]farmmodels.Room, error)
	Write(r *farmmodels.Room) docstore.Write
}

// FarmStore is the farm persistence the coordinator needs.
type FarmStore interface {
	FindByID(ctx context.Context, farmID id.FarmID) (*farmmodels.Farm, error)
	ListAll(ctx context.Context) ([]farmmodels.Farm, error)
	Write(f *farmmodels.Farm) docstore.Write
}

// Batcher commits one atomic multi-document batch. The docstore satisfies
// this directly.
type Batcher interface {
	BatchWrite(ctx context.Context, writes []docstore.Write) error
}

// Notifier is the fire-and-forget side channel. Send returns nothing:
// notifications are decoupled side effects, not part of any invariant.
type Notifier interface {
	Send(ctx context.Context, recipients []id.PrincipalID, payload notify.Payload)
}

// Service coordinates worker lifecycle operations. Dependencies are injected
// explicitly; the engine never reads ambient global state.
type Service struct {
	workers  WorkerStore
	rooms    RoomStore
	farms    FarmStore
	batch    Batcher
	index    identity.Index
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	// pendingConflicts remembers which farm was blocked from registering a
	// national ID, so the exit that resolves the conflict can notify that
	// farm specifically. Transient by design: a lost entry downgrades the
	// targeted notification to the broadcast path.
	mu               sync.Mutex
	pendingConflicts map[id.NationalID]id.FarmID
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithIdentityIndex enables the national-ID reservation guard that narrows
// the optimistic registration race.
func WithIdentityIndex(index identity.Index) Option {
	return func(s *Service) { s.index = index }
}

// New constructs the coordinator.
func New(workers WorkerStore, rooms RoomStore, farms FarmStore, batch Batcher, opts ...Option) *Service {
	s := &Service{
		workers:          workers,
		rooms:            rooms,
		farms:            farms,
		batch:            batch,
		logger:           slog.Default(),
		tracer:           otel.Tracer("bunkhouse/residency"),
		pendingConflicts: make(map[id.NationalID]id.FarmID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) rememberConflict(nationalID id.NationalID, requester id.FarmID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingConflicts[nationalID] = requester
}

// takeConflict returns and clears the farm blocked on this national ID.
func (s *Service) takeConflict(nationalID id.NationalID) (id.FarmID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	requester, ok := s.pendingConflicts[nationalID]
	if ok {
		delete(s.pendingConflicts, nationalID)
	}
	return requester, ok
}

// loadWorker translates store sentinels into domain errors.
func (s *Service) loadWorker(ctx context.Context, workerID id.WorkerID) (*models.Worker, error) {
	worker, err := s.workers.FindByID(ctx, workerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "worker not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load worker")
	}
	return worker, nil
}

// notifyFarmAdmins routes a payload to every admin of the farm. Lookup
// failures are logged, never surfaced: notification is best-effort.
func (s *Service) notifyFarmAdmins(ctx context.Context, farmID id.FarmID, payload notify.Payload) {
	if s.notifier == nil {
		return
	}
	farm, err := s.farms.FindByID(ctx, farmID)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping notification, farm lookup failed",
			"farm_id", farmID,
			"kind", payload.Kind,
			"error", err,
		)
		return
	}
	if len(farm.Admins) == 0 {
		return
	}
	s.notifier.Send(ctx, farm.Admins, payload)
}
