package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mvrezende/event-pipeline/internal/config"
	"github.com/mvrezende/event-pipeline/internal/db"
	"github.com/mvrezende/event-pipeline/internal/events"
	"github.com/mvrezende/event-pipeline/internal/i18n"
	"github.com/mvrezende/event-pipeline/internal/importer"
	"github.com/mvrezende/event-pipeline/internal/notify"
	"github.com/mvrezende/event-pipeline/pkg/infra"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Fatal error connecting to Postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	catalog := i18n.Default(cfg.DefaultLocale)

	bus := events.NewBus(logger)
	store := events.NewEventStore(pool, logger)
	bus.Subscribe(events.GlobalChannel(), store.Listener())

	broker := notify.NewReconnector(cfg.RabbitMQURL, logger)
	go broker.Run(ctx)

	// The fan-out pool is built exactly once for the process lifetime
	dispatcher := notify.NewDispatcher(
		notify.NewTokenDirectory(pool),
		broker,
		notify.DispatcherConfig{
			Workers:   cfg.NotifyWorkers,
			QueueSize: cfg.NotifyQueueSize,
		},
		logger,
	)
	defer dispatcher.Close()

	gate := events.NewGate(bus, dispatcher, logger)
	resolver := events.NewResolver(catalog, cfg.DefaultLocale)

	rowRepo := importer.NewTxRowRepository(
		pool, importer.CustomerSave, resolver, gate, importer.CustomerMappings, "Import", logger)
	engine := importer.NewEngine(rowRepo, importer.CustomerSchema, bus, broker, catalog, logger)

	registry := importer.NewRegistry()
	var csvStrategy importer.Strategy = importer.NewCSVStrategy(engine)
	if cfg.PremiumImports {
		csvStrategy = importer.NewPremiumGate(csvStrategy, importer.NewCompanyPlans(pool))
	}
	registry.Register("csv", csvStrategy)

	go serveMetrics(cfg.MetricsAddr)

	slog.Info("🚀 Backoffice event pipeline started", "pid", os.Getpid())

	runImportLoop(ctx, cfg, registry, logger)

	slog.Info("✅ Shutdown complete")
}

// runImportLoop keeps an import consumer attached to the queue, restoring
// the link with backoff when it drops
func runImportLoop(ctx context.Context, cfg *config.Config, registry *importer.Registry, logger *slog.Logger) {
	backoff := infra.NewBackoff(1*time.Second, 60*time.Second, 2.0)

	for {
		select {
		case <-ctx.Done():
			slog.Info("👋 Shutting down import loop...")
			return
		default:
		}

		consumer, err := importer.NewConsumer(cfg.RabbitMQURL, registry, cfg.ImportWorkers, cfg.ImportDeadline, logger)
		if err != nil {
			wait := backoff.Next()
			slog.Error("Import queue link failure, retrying", "wait", wait, "error", err)

			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return
			}
		}

		backoff.Reset()
		if err := consumer.Listen(ctx); err != nil {
			slog.Error("Import consumer stopped", "error", err)
		}
		consumer.Close()
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("Metrics server stopped", "error", err)
	}
}
