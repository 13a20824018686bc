package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"bunkhouse/internal/docstore"
	farmstore "bunkhouse/internal/farm/store"
	"bunkhouse/internal/identity"
	jwttoken "bunkhouse/internal/jwt_token"
	"bunkhouse/internal/notify"
	notifykafka "bunkhouse/internal/notify/kafka"
	"bunkhouse/internal/platform/config"
	"bunkhouse/internal/platform/httpserver"
	"bunkhouse/internal/platform/logger"
	platformredis "bunkhouse/internal/platform/redis"
	"bunkhouse/internal/residency/metrics"
	"bunkhouse/internal/residency/service"
	residencystore "bunkhouse/internal/residency/store"
	httptransport "bunkhouse/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, db, err := buildDocstore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize document store", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	workerStore := residencystore.NewWorkerStore(docs)
	roomStore := farmstore.NewRoomStore(docs)
	farmStore := farmstore.NewFarmStore(docs)

	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
	}

	redisClient, err := platformredis.New(cfg.Redis())
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		svcOpts = append(svcOpts, service.WithIdentityIndex(identity.NewRedis(redisClient.Client)))
		log.Info("national-id index enabled", "backend", "redis")
	}

	dispatcher, closeTransport, err := buildDispatcher(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize notification transport", "error", err)
		os.Exit(1)
	}
	defer closeTransport()
	svcOpts = append(svcOpts, service.WithNotifier(dispatcher))

	svc := service.New(workerStore, roomStore, farmStore, docs, svcOpts...)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	handler := httptransport.New(svc, log)
	router := httptransport.NewRouter(handler, jwtService, log, healthChecks(db, redisClient)...)

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting bunkhouse", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := dispatcher.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return runRepairLoop(ctx, svc, cfg.RepairInterval, log)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func buildDocstore(ctx context.Context, cfg config.Server, log *slog.Logger) (docstore.Store, *sql.DB, error) {
	if cfg.PostgresDSN == "" {
		log.Warn("no postgres DSN configured, using in-memory store")
		return docstore.NewMemory(), nil, nil
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	store := docstore.NewPostgres(db, cfg.PostgresDSN, docstore.WithLogger(log))
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("document store ready", "backend", "postgres")
	return store, db, nil
}

func buildDispatcher(ctx context.Context, cfg config.Server, log *slog.Logger) (*notify.Dispatcher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Warn("no kafka brokers configured, notifications go to the log")
		d := notify.NewDispatcher(notify.NewLogTransport(log),
			notify.WithLogger(log),
			notify.WithMetrics(notify.NewMetrics()),
		)
		return d, func() {}, nil
	}

	transport, err := notifykafka.New(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, nil, err
	}
	d := notify.NewDispatcher(transport,
		notify.WithLogger(log),
		notify.WithMetrics(notify.NewMetrics()),
	)
	log.Info("notification transport ready", "backend", "kafka", "topic", cfg.KafkaTopic)
	return d, transport.Close, nil
}

// runRepairLoop runs the occupancy repair pass on a fixed interval. A zero
// interval disables it.
func runRepairLoop(ctx context.Context, svc *service.Service, interval time.Duration, log *slog.Logger) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := svc.Repair(ctx); err != nil {
				log.ErrorContext(ctx, "scheduled repair pass failed", "error", err)
			}
		}
	}
}

func healthChecks(db *sql.DB, redisClient *platformredis.Client) []httptransport.Health {
	var checks []httptransport.Health
	if db != nil {
		checks = append(checks, func(r *http.Request) error {
			return db.PingContext(r.Context())
		})
	}
	if redisClient != nil {
		checks = append(checks, func(r *http.Request) error {
			return redisClient.Health(r.Context())
		})
	}
	return checks
}
