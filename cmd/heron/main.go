// Heron - Claims processing that deploys in 60 seconds.
// Copyright (c) 2025 opensource.insurance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-insurance/heron/internal/api"
	"github.com/opensource-insurance/heron/internal/approval"
	"github.com/opensource-insurance/heron/internal/automation"
	"github.com/opensource-insurance/heron/internal/bus"
	"github.com/opensource-insurance/heron/internal/cache"
	"github.com/opensource-insurance/heron/internal/claimstats"
	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/gateway"
	"github.com/opensource-insurance/heron/internal/repository"
	"github.com/opensource-insurance/heron/internal/service"
	"github.com/opensource-insurance/heron/internal/worker"
	"github.com/opensource-insurance/heron/internal/workflow"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HERON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HERON_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize claim statistics service
	statsSvc := claimstats.NewService(repo, cacheImpl)
	slog.Info("claim statistics service initialized")

	// Initialize workflow state machine
	machine := workflow.NewMachine()

	// Initialize Automation Engine with bus-backed notifications
	engine, err := automation.NewEngine(machine, gateway.NewBusNotificationGateway(busImpl))
	if err != nil {
		slog.Error("failed to initialize automation engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// Load rules from database (no hardcoded defaults - seed via cmd/seed or POST /rules)
	tenantIDs := tenantList()
	if err := loadRulesFromDatabase(ctx, repo, engine, tenantIDs); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("automation engine initialized", "rules_count", engine.RuleCount())

	// Initialize Approval Engine
	approvals := approval.NewEngine(repo, busImpl)
	slog.Info("approval engine initialized")

	// Payment gateway: external processor when configured, local settlement
	// otherwise.
	var payments domain.PaymentGateway
	if baseURL := os.Getenv("HERON_PAYMENT_URL"); baseURL != "" {
		payments = gateway.NewHTTPPaymentGateway(baseURL, os.Getenv("HERON_PAYMENT_API_KEY"))
		slog.Info("payment gateway initialized", "mode", "http", "url", baseURL)
	} else {
		payments = gateway.NewLocalPaymentGateway()
		slog.Info("payment gateway initialized", "mode", "local")
	}

	// Initialize Claim Service
	svc := service.New(service.Deps{
		Repo:       repo,
		Cache:      cacheImpl,
		Bus:        busImpl,
		Machine:    machine,
		Automation: engine,
		Approvals:  approvals,
		Stats:      statsSvc,
		Documents:  gateway.NewDocumentStore(),
		Payments:   payments,
		Insurer:    gateway.NewBusInsurerGateway(busImpl),
	})
	slog.Info("claim service initialized")

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HERON_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, svc)

		workerCfg := worker.Config{
			TenantIDs:          tenantIDs,
			SweepInterval:      time.Duration(cfg.Workflow.SweepIntervalSecs) * time.Second,
			StuckThresholdDays: cfg.Workflow.StuckThresholdDays,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, svc, repo, cacheImpl, engine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("heron shutdown complete")
}

// tenantList reads the tenants to serve from the environment.
func tenantList() []string {
	env := os.Getenv("HERON_TENANTS")
	if env == "" {
		return nil
	}
	var tenants []string
	for _, t := range strings.Split(env, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tenants = append(tenants, t)
		}
	}
	return tenants
}

// loadRulesFromDatabase loads each tenant's automation rules into the engine.
// Rules are configured via cmd/seed or POST /rules - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *automation.Engine, tenantIDs []string) error {
	var all []*domain.AutomationRule
	for _, tenantID := range tenantIDs {
		dbRules, err := repo.ListAutomationRules(ctx, tenantID)
		if err != nil {
			slog.Warn("failed to list rules from database",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		all = append(all, dbRules...)
	}

	if len(all) > 0 {
		slog.Info("loading rules from database", "count", len(all))
		return engine.LoadRules(all)
	}

	slog.Info("no rules in database - seed via cmd/seed or POST /rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 HERON                    ║")
	fmt.Println("  ║       Claims Processing Engine            ║")
	fmt.Println("  ║      Every claim, start to settled.       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /claims                    - File a new claim")
	fmt.Println("    GET  /claims/{id}               - Get claim by ID")
	fmt.Println("    GET  /claims/{id}/history       - Get claim audit trail")
	fmt.Println("    POST /claims/{id}/submit        - Submit a draft claim")
	fmt.Println("    POST /claims/{id}/documents     - Attach a document")
	fmt.Println("    POST /claims/{id}/approve       - Approve a claim")
	fmt.Println("    POST /claims/{id}/pay           - Settle an approved claim")
	fmt.Println("    POST /claims/{id}/process       - Run the automation pipeline")
	fmt.Println("    POST /claims/{id}/fraud         - Score a claim for fraud")
	fmt.Println("    POST /approvals/{id}/approve    - Record an approver sign-off")
	fmt.Println("    GET  /rules                     - List automation rules")
	fmt.Println("    POST /rules                     - Create an automation rule")
	fmt.Println("    POST /rules/reload              - Hot-reload rules from database")
	fmt.Println("    GET  /health                    - Health check")
	fmt.Println()
}
