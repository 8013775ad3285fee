package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"botfleet/internal/auth"
	"botfleet/internal/artifact"
	"botfleet/internal/botconfig"
	"botfleet/internal/callback"
	"botfleet/internal/chatqueue"
	"botfleet/internal/config"
	"botfleet/internal/deploy"
	"botfleet/internal/eventbus"
	"botfleet/internal/monitor"
	"botfleet/internal/orchestrator"
	"botfleet/internal/platformprovider"
	"botfleet/internal/pool"
	"botfleet/internal/queue"
	"botfleet/internal/quota"
	"botfleet/internal/recovery"
	"botfleet/internal/rpc"
	"botfleet/internal/storage"

	"github.com/hibiken/asynq"
)

const (
	taskRecoverySweep = "recovery:sweep"
	taskQueueDrain    = "queue:drain"
)

// Server owns the HTTP API, the metrics endpoint, and the asynq-backed
// background processing (periodic recovery sweep + queue drain), wiring
// every domain package the reference layout's Server composes ad hoc.
type Server struct {
	cfg             *config.Config
	deps            *Dependency
	httpServer      *http.Server
	asynqServer     *asynq.Server
	asynqMux        *asynq.ServeMux
	periodicManager *asynq.PeriodicTaskManager
	logger          *slog.Logger
}

func NewServer(cfg *config.Config, deps *Dependency) (*Server, error) {
	logger := deps.Logger

	bots := storage.NewBotRepository(deps.PG, deps.Redis)
	slots := storage.NewSlotRepository(deps.PG)
	events := storage.NewEventRepository(deps.PG)
	queueRepo := storage.NewQueueRepository(deps.PG)
	usage := storage.NewUsageRepository(deps.PG)
	tenants := storage.NewTenantRepository(deps.PG)
	apiKeys := storage.NewAPIKeyRepository(deps.PG)
	screenshots := storage.NewScreenshotRepository(deps.PG)

	var adapter orchestrator.Adapter
	if cfg.Orchestrator.Backend == "docker" {
		adapter = orchestrator.NewDockerAdapter(deps.Docker, logger, cfg.Pool, cfg.Orchestrator)
	} else {
		adapter = orchestrator.NewLocalAdapter(logger, cfg.Worker)
	}

	bus := eventbus.NewRedisBus(deps.Redis, logger)

	poolMgr := pool.NewManager(slots, adapter, cfg.Pool, logger)
	envBuilder := botconfig.NewBuilder(bots, cfg.Orchestrator.ControlPlaneURL, "")
	queueMgr := queue.NewManager(queueRepo, bots, events, poolMgr, bus, envBuilder, cfg.Queue, logger)
	gate := quota.NewGate(usage)
	coordinator := deploy.NewCoordinator(bots, events, poolMgr, queueMgr, envBuilder, adapter, cfg.Worker, cfg.Queue, bus, logger)
	recoveryWorker := recovery.NewWorker(slots, adapter, cfg.Recovery, logger)

	operatorAuth := auth.NewAPIKeyAuthenticator(apiKeys)
	agentAuth := auth.NewBotSystemTokenAuthenticator(bots)

	callbacks := callback.NewDispatcher(logger)
	artifacts := artifact.NewStore(cfg.Artifact.Root, cfg.Artifact.PublicURL, cfg.Artifact.Secret)
	chat := chatqueue.NewQueue(deps.Redis)

	agentHandler := rpc.NewAgentHandler(bots, events, screenshots, chat, artifacts, callbacks, deps.Redis)
	operatorHandler := rpc.NewOperatorHandler(bots, screenshots, tenants, gate, coordinator, poolMgr, queueMgr, chat, bus, deps.Redis, logger)
	router := rpc.NewRouter(agentHandler, operatorHandler, operatorAuth, agentAuth, logger)

	_ = platformprovider.NewRegistry() // validated here; actually consumed by the Bot Agent Runtime process, not the control plane

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	asynqServer := asynq.NewServer(deps.AsynqRedis, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Logger:      newAsynqLogger(logger),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(taskRecoverySweep, func(ctx context.Context, _ *asynq.Task) error {
		recoveryWorker.Tick(ctx)
		return nil
	})
	mux.HandleFunc(taskQueueDrain, func(ctx context.Context, _ *asynq.Task) error {
		_, err := queueMgr.Drain(ctx, bots.GetByID)
		return err
	})

	periodicManager, err := asynq.NewPeriodicTaskManager(asynq.PeriodicTaskManagerOpts{
		RedisConnOpt: deps.AsynqRedis,
		PeriodicTaskConfigProvider: staticPeriodicTasks{
			{cronspec: "*/5 * * * *", taskType: taskRecoverySweep},
			{cronspec: "* * * * *", taskType: taskQueueDrain},
		},
		SyncInterval: time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("new periodic task manager: %w", err)
	}

	return &Server{
		cfg:             cfg,
		deps:            deps,
		httpServer:      httpServer,
		asynqServer:     asynqServer,
		asynqMux:        mux,
		periodicManager: periodicManager,
		logger:          logger,
	}, nil
}

// staticPeriodicTasks implements asynq.PeriodicTaskConfigProvider over a
// fixed list: the Queue Manager's drain and the Slot Recovery Worker's
// sweep are the only two periodic background jobs this system runs
// (§4.3, §4.5), so a static provider needs no hot-reload machinery.
type staticPeriodicTasks []periodicTaskSpec

type periodicTaskSpec struct {
	cronspec string
	taskType string
}

func (s staticPeriodicTasks) GetConfigs() ([]*asynq.PeriodicTaskConfig, error) {
	configs := make([]*asynq.PeriodicTaskConfig, 0, len(s))
	for _, spec := range s {
		configs = append(configs, &asynq.PeriodicTaskConfig{
			Cronspec: spec.cronspec,
			Task:     asynq.NewTask(spec.taskType, nil),
		})
	}
	return configs, nil
}

// Start runs the HTTP API, the Prometheus metrics endpoint, the asynq
// worker server, and the periodic task manager until ctx is cancelled,
// then drains everything gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.logger.Info("starting asynq worker", "concurrency", s.cfg.Worker.Concurrency)
		if err := s.asynqServer.Start(s.asynqMux); err != nil {
			s.logger.Error("asynq worker failed", "error", err)
		}
	}()

	go func() {
		if err := s.periodicManager.Start(); err != nil {
			s.logger.Error("periodic task manager failed", "error", err)
		}
	}()

	go func() {
		if err := monitor.StartMetricsServer(ctx, s.cfg.Metrics.Addr, s.logger); err != nil {
			s.logger.Error("metrics server failed", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting control-plane API server", "addr", s.cfg.Server.Addr)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining")
	case err := <-errCh:
		return err
	}

	return s.Shutdown()
}

func (s *Server) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown error", "error", err)
	}

	s.periodicManager.Shutdown()
	s.asynqServer.Shutdown()

	s.logger.Info("server stopped gracefully")
	return nil
}

type asynqLogger struct {
	l *slog.Logger
}

func newAsynqLogger(l *slog.Logger) *asynqLogger {
	return &asynqLogger{l: l.With("component", "asynq")}
}

func (a *asynqLogger) Debug(args ...any) { a.l.Debug("", "msg", args) }
func (a *asynqLogger) Info(args ...any)  { a.l.Info("", "msg", args) }
func (a *asynqLogger) Warn(args ...any)  { a.l.Warn("", "msg", args) }
func (a *asynqLogger) Error(args ...any) { a.l.Error("", "msg", args) }
func (a *asynqLogger) Fatal(args ...any) { a.l.Error("FATAL", "msg", args) }
