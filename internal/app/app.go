// Package app wires Switchyard's infrastructure (database, redis,
// telemetry, migrations) to its domain components and runs the process in
// either "api" or "worker" mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/coreshift/switchyard/internal/config"
	"github.com/coreshift/switchyard/internal/httpserver"
	"github.com/coreshift/switchyard/internal/platform"
	"github.com/coreshift/switchyard/internal/telemetry"
	"github.com/coreshift/switchyard/pkg/broker/delivery"
	"github.com/coreshift/switchyard/pkg/broker/dlq"
	"github.com/coreshift/switchyard/pkg/broker/health"
	brokerregistry "github.com/coreshift/switchyard/pkg/broker/registry"
	brokerrouter "github.com/coreshift/switchyard/pkg/broker/router"
	"github.com/coreshift/switchyard/pkg/broker/service"
	"github.com/coreshift/switchyard/pkg/broker/storage"
	"github.com/coreshift/switchyard/pkg/clustermetrics"
	"github.com/coreshift/switchyard/pkg/deploy/pipeline"
	"github.com/coreshift/switchyard/pkg/deploy/strategy"
	"github.com/coreshift/switchyard/pkg/kernelnode"
	"github.com/coreshift/switchyard/pkg/lock"
	"github.com/coreshift/switchyard/pkg/notify"
	"github.com/coreshift/switchyard/pkg/schema/approval"
	schemaregistry "github.com/coreshift/switchyard/pkg/schema/registry"
	"github.com/coreshift/switchyard/pkg/stabilization"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// Run reads config, connects to infrastructure, and starts the appropriate
// mode (api or worker).
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting switchyard",
		"mode", cfg.Mode,
		"listen", cfg.ListenAddr(),
	)

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, "switchyard", version)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("shutting down tracer", "error", err)
		}
	}()

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg)
	case "worker":
		return runWorker(ctx, cfg, logger, db, rdb, metricsReg)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// components bundles everything built by buildDomain that both runAPI
// (mounting HTTP handlers) and runWorker (starting background loops) need.
type components struct {
	brokerSvc       *service.Broker
	brokerHandler   *service.Handler
	dlqHandler      *dlq.Handler
	healthMonitor   *health.Monitor
	ackMonitor      *dlq.AckTimeoutMonitor
	registryHandler *schemaregistry.Handler
	approvalHandler *approval.Handler
	pipelineHandler *pipeline.Handler
}

// buildDomain constructs every domain component shared by API and worker
// mode: the broker stack (registry/storage/router/delivery/DLQ/health), the
// schema registry and approval workflow, and the deployment pipeline with
// its per-environment clusters and strategies.
func buildDomain(cfg *config.Config, db *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger) *components {
	// --- Broker stack ---
	topics := brokerregistry.NewTopics()
	subs := brokerregistry.NewSubscriptions()
	persistStore := storage.NewPGStore(db)
	queue := storage.NewMemQueue()
	rtr := brokerrouter.New()
	dlqSvc := dlq.New(queue)

	distLock := lock.DistributedLock(lock.NewRedisLock(rdb, "switchyard:lock:"))
	idempotency := lock.IdempotencyStore(lock.NewRedisIdempotencyStore(rdb, "switchyard:idempotency:", 24*time.Hour))

	deliverySvc := delivery.NewService(dlqSvc, delivery.RetryConfig{
		MaxRetries:     cfg.DeliveryMaxRetries,
		InitialBackoff: cfg.DeliveryInitialBackoff,
		MaxBackoff:     cfg.DeliveryMaxBackoff,
		Multiplier:     cfg.DeliveryBackoffMult,
	}, logger)
	exactlyOnce := delivery.NewExactlyOnceService(deliverySvc, distLock, idempotency, cfg.LockTimeout)

	broker := service.New(topics, subs, persistStore, queue, rtr, exactlyOnce, logger)
	brokerHandler := service.NewHandler(broker, logger)
	dlqHandler := dlq.NewHandler(dlqSvc, logger)

	healthMonitor := health.NewMonitor(queue, cfg.HealthCheckInterval, logger)
	ackMonitor := dlq.NewAckTimeoutMonitor(queue, cfg.AckTimeout, cfg.AckMonitorInterval, 100, logger)

	// --- Schema stack ---
	// No durable persister is wired for the schema registry yet; a nil
	// Persister keeps schemas in memory only.
	schemaReg := schemaregistry.New(nil)
	slackNotifier := notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackOpsChannel, logger)
	approvalSvc := approval.New(schemaReg, slackNotifier)

	registryHandler := schemaregistry.NewHandler(schemaReg, logger)
	approvalHandler := approval.NewHandler(approvalSvc, logger)

	// --- Deployment stack ---
	tracker := pipeline.NewTracker()
	gate := pipeline.NewApprovalGate()
	// No real metrics backend is wired in yet; FakeProvider keeps the
	// stabilization gate functional against whatever node readings the
	// deploy flow records via SetNode/SetAll.
	stabilizationSvc := stabilization.New(clustermetrics.NewFakeProvider(), logger)

	strategyOpts := strategy.Options{
		Stabilization:    stabilizationSvc,
		SmokeTestTimeout: cfg.SmokeTestTimeout,
	}

	orchestrator := pipeline.New(tracker, gate, slackNotifier, logger, pipeline.Options{
		ApprovalTimeout: cfg.ApprovalGateTimeout,
		StrategyOptions: strategyOpts,
	})
	orchestrator.RegisterStrategy(strategy.DirectStrategy{})
	orchestrator.RegisterStrategy(strategy.RollingStrategy{})
	orchestrator.RegisterStrategy(strategy.CanaryStrategy{})
	orchestrator.RegisterStrategy(strategy.BlueGreenStrategy{})

	for _, env := range []string{"staging", "production"} {
		orchestrator.RegisterCluster(kernelnode.NewEnvironmentCluster(env))
	}

	pipelineHandler := pipeline.NewHandler(orchestrator, gate, logger)

	return &components{
		brokerSvc:       broker,
		brokerHandler:   brokerHandler,
		dlqHandler:      dlqHandler,
		healthMonitor:   healthMonitor,
		ackMonitor:      ackMonitor,
		registryHandler: registryHandler,
		approvalHandler: approvalHandler,
		pipelineHandler: pipelineHandler,
	}
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	c := buildDomain(cfg, db, rdb, logger)

	go c.healthMonitor.Run(ctx)
	go c.ackMonitor.Run(ctx)

	srv := httpserver.NewServer(httpserver.ServerConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger, db, rdb, metricsReg)

	srv.APIRouter.Mount("/messages", c.brokerHandler.Routes())
	srv.APIRouter.Mount("/dlq", c.dlqHandler.Routes())
	srv.APIRouter.Mount("/schemas", c.registryHandler.Routes())
	srv.APIRouter.Mount("/schema-approvals", c.approvalHandler.Routes())
	srv.APIRouter.Mount("/deployments", c.pipelineHandler.Routes())

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runWorker starts the background loops (broker health sampling, ack-timeout
// requeue) without exposing an HTTP surface — used for a dedicated worker
// deployment that shares infrastructure with the API process.
func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, _ *prometheus.Registry) error {
	logger.Info("worker started")

	c := buildDomain(cfg, db, rdb, logger)

	go c.healthMonitor.Run(ctx)
	c.ackMonitor.Run(ctx)
	return ctx.Err()
}
