package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/signalworks/sibyl/internal/api"
	"github.com/signalworks/sibyl/internal/bus"
	"github.com/signalworks/sibyl/internal/config"
	"github.com/signalworks/sibyl/internal/crm"
	"github.com/signalworks/sibyl/internal/engine"
	"github.com/signalworks/sibyl/internal/scoring"
	"github.com/signalworks/sibyl/internal/state"
	"github.com/signalworks/sibyl/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("sibyl starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database (optional — without it qualifications stay in memory only)
	var db *store.Store
	if cfg.DatabaseURL != "" {
		var err error
		db, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set — running without persistence")
	}

	// Conversation state
	st, err := state.NewStore(cfg.ArchiveSize, slog.Default())
	if err != nil {
		slog.Error("failed to create state store", "error", err)
		os.Exit(1)
	}

	// Scoring model — load the latest persisted snapshot if there is one,
	// otherwise serve degraded rule-only until the first retrain.
	model := scoring.NewModel(scoring.Config{
		Alpha:               cfg.BlendAlpha,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		TopSignals:          cfg.TopSignals,
	}, slog.Default())
	trainer := scoring.NewTrainer(slog.Default())

	if db != nil {
		if snap, err := db.LatestSnapshot(ctx); err == nil {
			model.Swap(snap)
		} else {
			slog.Warn("no persisted snapshot — serving rule-only until first retrain", "error", err)
		}
	}

	// CRM connectors
	crmMgr := crm.NewManager(slog.Default(),
		crm.NewHubSpot(cfg.HubSpotAPIKey, cfg.CRMMockMode, slog.Default()),
		crm.NewSalesforce(cfg.SalesforceAPIKey, cfg.SalesforceBaseURL, cfg.CRMMockMode, slog.Default()),
	)

	// NATS (optional — HTTP-only operation without it)
	var busClient *bus.Client
	if cfg.NatsURL != "" {
		busClient, err = bus.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer busClient.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS_URL not set — running without event fabric")
	}

	// Engine — the main pipeline
	var persister engine.Persister
	if db != nil {
		persister = db
	}
	eng := engine.New(st, model, trainer, persister, crmMgr, busClient, slog.Default())

	// Retrain on startup when historical data is configured.
	if cfg.TrainingDataPath != "" {
		if snap, err := eng.RetrainFromFile(ctx, cfg.TrainingDataPath); err != nil {
			slog.Warn("startup retrain failed — continuing degraded", "error", err)
		} else {
			slog.Info("startup retrain complete", "version", snap.Version)
		}
	}

	if busClient != nil {
		if err := busClient.Subscribe(bus.SubjectTurn, eng.HandleTurnEvent); err != nil {
			slog.Error("failed to subscribe to turn events", "error", err)
			os.Exit(1)
		}
		if err := busClient.Subscribe(bus.SubjectEnded, eng.HandleConversationEnded); err != nil {
			slog.Error("failed to subscribe to ended events", "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, eng, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("sibyl ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("sibyl stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
