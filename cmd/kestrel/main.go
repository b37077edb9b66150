// Kestrel - Transaction risk scoring that deploys in 60 seconds.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/opensource-finance/kestrel/internal/alert"
	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/batch"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/store"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load .env if present; real environment variables take precedence.
	_ = godotenv.Load()

	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.ConfigFromEnv()

	slog.Info("configuration loaded",
		"rules", rulesSource(cfg),
		"workers", cfg.Workers,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
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

	// Initialize the rule set: compiled-in defaults, or a YAML file
	ruleSet := domain.DefaultRuleSet()
	var loader *rules.Loader
	if cfg.RulesPath != "" {
		var err error
		loader, err = rules.NewLoader(cfg.RulesPath)
		if err != nil {
			slog.Error("failed to load rules file", "path", cfg.RulesPath, "error", err)
			os.Exit(1)
		}
		ruleSet = loader.RuleSet()
		slog.Info("rules loaded from file", "path", cfg.RulesPath)
	}

	// Initialize scoring engine
	engine, err := rules.NewEngine(ruleSet)
	if err != nil {
		slog.Error("failed to initialize scoring engine", "error", err)
		os.Exit(1)
	}
	slog.Info("scoring engine initialized",
		"categories", len(engine.RuleSet().Categories),
		"high_risk_countries", len(engine.RuleSet().HighRiskCountries),
	)

	// Hot-reload the engine on rules file changes
	if loader != nil {
		loader.OnChange(func(rs *domain.RuleSet) {
			if err := engine.Reload(rs); err != nil {
				slog.Error("failed to apply reloaded rules", "error", err)
			}
		})
		stopWatch, err := loader.Watch()
		if err != nil {
			slog.Error("failed to watch rules file", "path", cfg.RulesPath, "error", err)
			os.Exit(1)
		}
		defer stopWatch()
		slog.Info("rules watcher started", "path", cfg.RulesPath)
	}

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize result store
	resultStore := store.New(cfg.Store.MaxEntries, time.Duration(cfg.Store.TTLSeconds)*time.Second)
	slog.Info("result store initialized",
		"max_entries", cfg.Store.MaxEntries,
		"ttl_seconds", cfg.Store.TTLSeconds,
	)

	// Initialize batch processor
	processor := batch.NewProcessor(engine, cfg.Workers, cfg.TopN)
	slog.Info("batch processor initialized",
		"workers", cfg.Workers,
		"top_n", cfg.TopN,
	)

	// Initialize alert listener
	listener := alert.NewListener(busImpl)
	if err := listener.Start(); err != nil {
		slog.Error("failed to start alert listener", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	srv := api.NewServer(*cfg, resultStore, busImpl, engine, loader, processor, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop alert listener first
	if err := listener.Stop(); err != nil {
		slog.Error("failed to stop alert listener", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

func rulesSource(cfg *domain.Config) string {
	if cfg.RulesPath != "" {
		return cfg.RulesPath
	}
	return "built-in defaults"
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║     Transaction Risk Scoring Engine       ║")
	fmt.Println("  ║        Every transaction, scored.         ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Rules:    %s\n", rulesSource(cfg))
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /v1/score               - Score a single transaction")
	fmt.Println("    POST /v1/batches             - Score a batch (JSON or CSV)")
	fmt.Println("    GET  /v1/batches/{id}        - Get a stored batch summary")
	fmt.Println("    GET  /v1/batches/{id}/export - Download the scored CSV")
	fmt.Println("    GET  /v1/rules               - Show the active rule set")
	fmt.Println("    POST /v1/rules/reload        - Hot-reload the rules file")
	fmt.Println("    GET  /health                 - Health check")
	fmt.Println("    GET  /metrics                - Prometheus metrics")
	fmt.Println()
}
