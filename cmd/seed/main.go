// Heron seed - installs the default automation rule set for a tenant.
// Copyright (c) 2025 opensource.insurance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/opensource-insurance/heron/internal/automation"
	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	tenantID := flag.String("tenant", "default", "tenant to seed rules for")
	sqlitePath := flag.String("db", "./heron.db", "SQLite database path (ignored for pro tier)")
	flag.Parse()

	cfg := domain.DefaultConfig().Repository
	cfg.SQLitePath = *sqlitePath
	if os.Getenv("HERON_TIER") == "pro" {
		cfg = domain.ProConfig().Repository
	}

	repo, err := repository.New(cfg)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rules := automation.DefaultRules(*tenantID)
	for _, rule := range rules {
		if err := repo.SaveAutomationRule(ctx, *tenantID, rule); err != nil {
			slog.Error("failed to save rule", "id", rule.ID, "error", err)
			os.Exit(1)
		}
		slog.Info("rule installed", "id", rule.ID, "name", rule.Name)
	}

	slog.Info("seed complete", "tenant_id", *tenantID, "rules", len(rules))
}
