// workflowkit-server boots the Workflow & Project Execution Engine as a
// long-running process: Postgres/Redis-backed stores, the Project and
// Workflow Execution Engines, and the cron trigger scheduler. It exposes no
// wire API — CRUD/HTTP/gRPC surfaces are out of this engine's scope; this
// binary's only job is to keep the engine and its triggers alive.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/workflowkit/engine/internal/config"
	"github.com/workflowkit/engine/internal/langrunner"
	"github.com/workflowkit/engine/internal/logger"
	"github.com/workflowkit/engine/internal/observer"
	"github.com/workflowkit/engine/internal/procrun"
	"github.com/workflowkit/engine/internal/project"
	"github.com/workflowkit/engine/internal/storage"
	"github.com/workflowkit/engine/internal/trigger"
	"github.com/workflowkit/engine/internal/userctx"
	"github.com/workflowkit/engine/internal/validate"
	"github.com/workflowkit/engine/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Logging)
	log.Info("starting workflowkit-server")

	db, err := storage.NewDB(cfg.Database, cfg.Logging.Level == "debug")
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer storage.Close(db)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = storage.InitSchema(initCtx, db)
	initCancel()
	if err != nil {
		log.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	var executionStore workflow.ExecutionStore = storage.NewExecutionStore(db)
	if redisClient, err := storage.NewRedisClient(cfg.Redis); err != nil {
		log.Warn("redis cache unavailable, running without it", "error", err)
	} else {
		defer redisClient.Close()
		executionStore = storage.NewCachedExecutionStore(executionStore, redisClient, 30*time.Second)
		log.Info("redis execution cache connected")
	}

	workflowStore := storage.NewWorkflowStore(db)
	projectStore := storage.NewProjectStore(db)
	triggerStore := storage.NewTriggerStore(db)

	validator := validate.New()

	observerManager := observer.NewManager(
		observer.WithLogger(log),
		observer.WithBufferSize(cfg.Observer.BufferSize),
	)
	if cfg.Observer.EnableLogger {
		if err := observerManager.Register(observer.NewLoggerObserver(observer.WithLoggerInstance(log))); err != nil {
			log.Error("failed to register logger observer", "error", err)
		}
	}
	if cfg.Observer.EnableHTTP && cfg.Observer.HTTPCallbackURL != "" {
		httpObserver := observer.NewHTTPCallbackObserver(
			cfg.Observer.HTTPCallbackURL,
			observer.WithHTTPMethod(cfg.Observer.HTTPMethod),
			observer.WithHTTPHeaders(cfg.Observer.HTTPHeaders),
			observer.WithHTTPTimeout(cfg.Observer.HTTPTimeout),
			observer.WithHTTPRetry(cfg.Observer.HTTPMaxRetries, cfg.Observer.HTTPRetryDelay, 2.0),
		)
		if err := observerManager.Register(httpObserver); err != nil {
			log.Error("failed to register HTTP callback observer", "error", err)
		}
	}
	log.Info("observers registered", "count", observerManager.Count())

	procRunner := procrun.New()
	registry := langrunner.NewRegistry()
	for _, runner := range []langrunner.Runner{
		langrunner.NewJavaRunner(procRunner),
		langrunner.NewNodeRunner(procRunner),
		langrunner.NewPythonRunner(procRunner),
		langrunner.NewDotNetRunner(procRunner),
		langrunner.NewScriptRunner(procRunner),
	} {
		if err := registry.Register(runner); err != nil {
			log.Error("failed to register language runner", "error", err)
			os.Exit(1)
		}
	}
	log.Info("language runners registered", "languages", registry.List())

	sourceStore, err := project.NewLocalSourceStore(filepath.Join(cfg.ProjectRun.SandboxRoot, "sources"))
	if err != nil {
		log.Error("failed to initialize project source store", "error", err)
		os.Exit(1)
	}
	projectEngine := project.New(sourceStore, registry, filepath.Join(cfg.ProjectRun.SandboxRoot, "work"), project.WithLogger(log))

	decoder := userctx.NewDecoder(cfg.Auth.JWTSecret)
	permChecker := userctx.NewPermissionChecker(decoder, workflowStore)

	wfEngine := workflow.New(
		executionStore,
		workflowStore,
		projectStore,
		permChecker,
		projectEngine,
		validator,
		observerManager,
		log,
		workflow.Options{
			MaxConcurrentExecutions: cfg.ProjectRun.MaxConcurrentRuns,
			NodeTimeoutCeilingMs:    cfg.ProjectRun.DefaultTimeout.Milliseconds(),
		},
	)
	log.Info("workflow execution engine initialized")

	var scheduler *trigger.Scheduler
	if cfg.Trigger.Enabled {
		scheduler = trigger.NewScheduler(triggerStore, wfEngine, log)
		startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := scheduler.Start(startCtx)
		startCancel()
		if err != nil {
			log.Error("failed to start trigger scheduler", "error", err)
			os.Exit(1)
		}
		log.Info("trigger scheduler started", "entries", len(scheduler.Entries()))
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	log.Info("shutdown initiated", "signal", sig)

	if scheduler != nil {
		scheduler.Stop()
		log.Info("trigger scheduler stopped")
	}

	log.Info("workflowkit-server stopped")
}
