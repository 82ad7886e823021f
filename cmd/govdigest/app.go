package main

import (
	"fmt"

	"github.com/pevans/govdigest"
	"github.com/pevans/govdigest/config"
	"github.com/pevans/govdigest/discovery"
	"github.com/pevans/govdigest/logging"
	"github.com/pevans/govdigest/scraper"
	"github.com/pevans/govdigest/sources"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// app holds everything a command needs, built once from the configuration.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	adapters []scraper.Adapter
	status   *sources.StatusStore
	registry *prometheus.Registry
	service  *govdigest.Service
}

// newApp loads .env and the config file, then wires the scraper, the
// service and the optional status store.
func newApp(path string) (*app, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	adapters, err := loadAdapters(cfg.AdaptersPath)
	if err != nil {
		return nil, err
	}

	fetcher := discovery.NewHTTPFetcher(cfg.RequestTimeout, cfg.UserAgent)
	runner := discovery.NewScraper(fetcher, cfg.ContentLength, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	service := govdigest.NewService(adapters, runner, &govdigest.ServiceConfig{
		DaysAgo:     cfg.DaysAgo,
		Retries:     cfg.Retries,
		RetryDelay:  cfg.RetryDelay,
		Concurrency: cfg.Concurrency,
	}, logger).WithMetrics(govdigest.NewMetrics(registry))

	a := &app{
		cfg:      cfg,
		logger:   logger,
		adapters: adapters,
		registry: registry,
		service:  service,
	}

	if cfg.StatusDSN != "" {
		logger.Info("Opening status store", zap.String("dsn", cfg.StatusDSN))
		store, err := sources.NewStatusStore(cfg.StatusDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open status store: %w", err)
		}
		a.status = store
		service.WithStatus(store)

		if err := pruneStatuses(store, adapters, logger); err != nil {
			logger.Warn("Failed to prune source statuses", zap.Error(err))
		}
	}

	return a, nil
}

// statusReader returns the status store as a reader, or nil when none is
// configured.
func (a *app) statusReader() sources.StatusReader {
	if a.status == nil {
		return nil
	}
	return a.status
}

func (a *app) Close() {
	if a.status != nil {
		if err := a.status.Close(); err != nil {
			a.logger.Warn("Failed to close status store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func loadAdapters(path string) ([]scraper.Adapter, error) {
	if path == "" {
		return scraper.Builtin()
	}
	return scraper.LoadRegistryFile(path)
}

// pruneStatuses deletes the stored status of every source that is no
// longer in the registry.
func pruneStatuses(store *sources.StatusStore, adapters []scraper.Adapter, logger *zap.Logger) error {
	statuses, err := store.ListStatuses()
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(adapters))
	for _, a := range adapters {
		known[a.Name] = true
	}

	for _, status := range statuses {
		if known[status.Name] {
			continue
		}
		if err := store.DeleteStatus(status.Name); err != nil {
			return fmt.Errorf("failed to delete status of %s: %w", status.Name, err)
		}
		logger.Info("Removed status of unregistered source", zap.String("source", status.Name))
	}

	return nil
}
