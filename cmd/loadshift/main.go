package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/icclab/loadshift/internal/api"
	"github.com/icclab/loadshift/internal/config"
	"github.com/icclab/loadshift/internal/db"
	"github.com/icclab/loadshift/internal/engine"
	"github.com/icclab/loadshift/internal/prices"
	"github.com/icclab/loadshift/internal/repository"
	"github.com/icclab/loadshift/internal/security"
	"github.com/icclab/loadshift/internal/services"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		serve()
		return
	}
	fmt.Println("loadshift v0.1.0")
	fmt.Println("Usage: loadshift serve")
}

func serve() {
	godotenv.Load()

	cfg, err := config.LoadDefault()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		workloads repository.WorkloadRepository
		triggers  repository.TriggerRepository
		workflows repository.WorkflowRepository
	)
	if cfg.Database.URL != "" {
		database, err := db.New(ctx, cfg.Database.URL)
		if err != nil {
			slog.Error("database error", "err", err)
			os.Exit(1)
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			slog.Error("migration error", "err", err)
			os.Exit(1)
		}
		workloads = repository.NewPersistentWorkloadRepository(database)
		triggers = repository.NewPersistentTriggerRepository(database)
		workflows = repository.NewPersistentWorkflowRepository(database)
	} else {
		slog.Info("no database configured, using in-memory stores")
		workloads = repository.NewMemoryWorkloadRepository()
		triggers = repository.NewMemoryTriggerRepository()
		workflows = repository.NewMemoryWorkflowRepository()
	}

	sec := security.New(cfg.Security.SigningKey)
	eng := engine.NewClient(cfg.Engine.URL, &http.Client{Timeout: cfg.Engine.Timeout})
	oracle := prices.New(cfg.Prices.URL, cfg.Prices.Timeout)

	trigSvc := services.NewTriggerService(triggers, nil)
	dtwSvc := services.NewDTWService(workloads, workflows, sec, nil)
	workflowSvc := services.NewWorkflowService(workflows, nil)
	runner := services.NewRunner(cfg.Scheduler, workloads, trigSvc, eng, sec, oracle, nil)
	srv := api.NewServer(dtwSvc, workflowSvc)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("starting loadshift server", "addr", addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
