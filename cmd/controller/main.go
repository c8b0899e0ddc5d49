package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/blackkolly/rollback-controller/internal/api/middleware"
	"github.com/blackkolly/rollback-controller/internal/api/rest"
	"github.com/blackkolly/rollback-controller/internal/api/websocket"
	"github.com/blackkolly/rollback-controller/internal/config"
	"github.com/blackkolly/rollback-controller/internal/monitor"
	"github.com/blackkolly/rollback-controller/internal/orchestrator"
	"github.com/blackkolly/rollback-controller/internal/pkg/logger"
	"github.com/blackkolly/rollback-controller/internal/pkg/tracing"
	"github.com/blackkolly/rollback-controller/internal/probe"
	"github.com/blackkolly/rollback-controller/internal/repository"
	"github.com/blackkolly/rollback-controller/internal/rollback"
	"github.com/blackkolly/rollback-controller/migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)
	log.Info("rollback controller starting",
		"port", cfg.Port,
		"targets", len(cfg.Targets),
		"auto_rollback", cfg.AutoRollback,
	)

	if cfg.OTLPEndpoint != "" {
		shutdownTracing, err := tracing.Init("rollback-controller", cfg.OTLPEndpoint, cfg.TraceSamplingRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdownTracing()
	}

	repo, err := openRepository(cfg)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer repo.Close()
	if err := runMigrations(repo); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		KubeconfigPath: cfg.KubeconfigPath,
		Namespace:      cfg.Namespace,
		Timeout:        time.Duration(cfg.K8sTimeoutSec) * time.Second,
		RatePerSec:     cfg.K8sRateLimitPerSec,
		RateBurst:      cfg.K8sRateLimitBurst,
	})
	if err != nil {
		return fmt.Errorf("connect to orchestrator: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prober := probe.New(orch, cfg.ProbeTimeout(), log)
	executor := rollback.NewExecutor(orch, repo, repo, prober, cfg.RollbackWaitTimeout(), log)
	snapshotter := rollback.NewSnapshotter(orch, repo, prober, log)

	hub := websocket.NewHub(ctx, log)
	go hub.Run()
	defer hub.Stop()

	engine := monitor.NewEngine(cfg.ErrorThreshold, cfg.CriticalErrorThreshold)
	supervisor := monitor.NewSupervisor(
		cfg.PollInterval(), cfg.AutoRollback,
		prober, engine, snapshotter, executor, hub, log,
	)

	// Monitoring runs for the life of the process: every window fans out one
	// monitor task per target and joins, so the error rate always reflects
	// recent behavior and a triggered target starts its next window fresh.
	var monitors sync.WaitGroup
	monitors.Add(1)
	go func() {
		defer monitors.Done()
		for ctx.Err() == nil {
			supervisor.MonitorAll(ctx, cfg.Targets, cfg.MonitorWindow())
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      buildHandler(ctx, cfg, executor, supervisor, repo, hub, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		stop()
		monitors.Wait()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")

	// Stop accepting triggers first. In-flight rollbacks are not cancelled;
	// the executor detaches from ctx once it starts mutating.
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", "error", err)
	}

	monitors.Wait()
	log.Info("shutdown complete")
	return nil
}

func openRepository(cfg *config.Config) (repository.Repository, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		return repository.NewPostgresRepository(cfg.DatabaseURL)
	default:
		return repository.NewSQLiteRepository(cfg.DatabasePath)
	}
}

// runMigrations applies every embedded migration in filename order.
func runMigrations(repo repository.Repository) error {
	entries, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(entries)
	for _, name := range entries {
		sql, err := migrations.FS.ReadFile(name)
		if err != nil {
			return err
		}
		if err := repo.RunMigrations(string(sql)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func buildHandler(
	ctx context.Context,
	cfg *config.Config,
	executor *rollback.Executor,
	supervisor *monitor.Supervisor,
	repo repository.Repository,
	hub *websocket.Hub,
	log *slog.Logger,
) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.StructuredLog)
	router.Use(middleware.MaxBodySize(int64(cfg.MaxBodyBytes)))

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	handler := rest.NewHandler(cfg, executor, supervisor, repo)
	rest.SetupRoutes(apiRouter, handler)

	healthz := rest.NewHealthzHandler(repo)
	router.HandleFunc("/healthz/live", healthz.Live).Methods("GET")
	router.HandleFunc("/healthz/ready", healthz.Ready).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	wsHandler := websocket.NewHandler(ctx, hub, cfg.AllowedOrigins, log)
	router.HandleFunc("/ws/events", wsHandler.ServeWS).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return otelhttp.NewHandler(c.Handler(router), "rollback-controller")
}
