// Package govdigest runs the province adapters and serves their digests.
package govdigest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pevans/govdigest/discovery"
	"github.com/pevans/govdigest/scraper"
	"github.com/pevans/govdigest/sources"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SourceRunner runs one adapter's full pipeline. *discovery.Scraper is the
// production implementation.
type SourceRunner interface {
	ScrapeAdapter(ctx context.Context, adapter scraper.Adapter, window discovery.TimeWindow) ([]string, error)
}

// StatusRecorder receives the outcome of every source run.
type StatusRecorder interface {
	Record(outcome sources.RunOutcome) error
}

// ServiceConfig holds configuration for the digest service.
type ServiceConfig struct {
	// Recency window in days; today counts as day zero
	DaysAgo int
	// Attempts per source before it contributes nothing
	Retries int
	// Fixed pause between attempts
	RetryDelay time.Duration
	// Maximum number of adapters run in parallel
	Concurrency int
	// Clock used for the recency window
	Now func() time.Time
}

// DefaultServiceConfig returns the default configuration.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		DaysAgo:     7,
		Retries:     3,
		RetryDelay:  2 * time.Second,
		Concurrency: 4,
		Now:         time.Now,
	}
}

// Service runs every registered adapter and merges their digests. A source
// that keeps failing is logged and contributes nothing; it never fails the
// whole run.
type Service struct {
	adapters []scraper.Adapter
	runner   SourceRunner
	config   *ServiceConfig
	status   StatusRecorder
	metrics  *Metrics
	logger   *zap.Logger
}

// NewService creates a new digest service. Missing config fields fall back
// to DefaultServiceConfig; config itself is not modified.
func NewService(
	adapters []scraper.Adapter,
	runner SourceRunner,
	config *ServiceConfig,
	logger *zap.Logger,
) *Service {
	defaults := DefaultServiceConfig()
	if config == nil {
		config = defaults
	}
	c := *config
	if c.Retries < 1 {
		c.Retries = defaults.Retries
	}
	if c.Concurrency < 1 {
		c.Concurrency = defaults.Concurrency
	}
	if c.Now == nil {
		c.Now = defaults.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		adapters: adapters,
		runner:   runner,
		config:   &c,
		logger:   logger,
	}
}

// WithStatus makes the service report each source run to recorder.
func (s *Service) WithStatus(recorder StatusRecorder) *Service {
	s.status = recorder
	return s
}

// WithMetrics makes the service update m after each source run.
func (s *Service) WithMetrics(m *Metrics) *Service {
	s.metrics = m
	return s
}

// RunAll runs every enabled adapter and returns their digests concatenated
// in registration order. The result is never nil.
func (s *Service) RunAll(ctx context.Context) []string {
	runID := uuid.New()
	window := discovery.NewTimeWindow(s.config.Now(), s.config.DaysAgo)
	adapters := scraper.Enabled(s.adapters)
	logger := s.logger.With(zap.String("run_id", runID.String()))

	logger.Info("Starting digest run",
		zap.Int("sources", len(adapters)),
		zap.Time("cutoff", window.Cutoff()),
	)
	start := time.Now()

	results := make([][]string, len(adapters))

	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for i, adapter := range adapters {
		g.Go(func() error {
			results[i], _ = s.runSource(ctx, runID, adapter, window)
			return nil
		})
	}
	_ = g.Wait()

	digests := []string{}
	for _, r := range results {
		digests = append(digests, r...)
	}

	logger.Info("Digest run finished",
		zap.Int("digests", len(digests)),
		zap.Duration("duration", time.Since(start)),
	)

	return digests
}

// RunSource runs a single adapter by name. Unlike RunAll it reports the
// source failure to the caller.
func (s *Service) RunSource(ctx context.Context, name string) ([]string, error) {
	adapter, err := scraper.Find(s.adapters, name)
	if err != nil {
		return nil, err
	}

	window := discovery.NewTimeWindow(s.config.Now(), s.config.DaysAgo)
	return s.runSource(ctx, uuid.New(), adapter, window)
}

// runSource wraps safeFetch with logging, status and metrics. On failure
// the digests are an empty, non-nil slice.
func (s *Service) runSource(
	ctx context.Context,
	runID uuid.UUID,
	adapter scraper.Adapter,
	window discovery.TimeWindow,
) ([]string, error) {
	logger := s.logger.With(
		zap.String("run_id", runID.String()),
		zap.String("source", adapter.Name),
	)

	start := time.Now()
	digests, attempts, err := s.safeFetch(ctx, adapter, window, logger)
	elapsed := time.Since(start)

	if err != nil {
		s.handleFetchError(runID, adapter, attempts, err, logger)
	} else {
		s.handleFetchSuccess(runID, adapter, attempts, len(digests), logger)
	}
	s.metrics.observe(adapter.Name, attempts, len(digests), elapsed, err)

	if err != nil {
		return []string{}, err
	}
	return digests, nil
}

// safeFetch calls the runner until it succeeds or Retries attempts have
// been made, sleeping RetryDelay between attempts but not after the last
// one.
func (s *Service) safeFetch(
	ctx context.Context,
	adapter scraper.Adapter,
	window discovery.TimeWindow,
	logger *zap.Logger,
) ([]string, int, error) {
	var digests []string
	attempts := 0

	operation := func() error {
		attempts++
		result, err := s.runner.ScrapeAdapter(ctx, adapter, window)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			logger.Warn("Source attempt failed",
				zap.Int("attempt", attempts),
				zap.Int("max_attempts", s.config.Retries),
				zap.Error(err),
			)
			return err
		}
		digests = result
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(s.config.RetryDelay),
			uint64(s.config.Retries-1),
		),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, attempts, fmt.Errorf("%s: %w", adapter.Name, err)
		}
		return nil, attempts, fmt.Errorf("%s: giving up after %d attempts: %w", adapter.Name, attempts, err)
	}

	if digests == nil {
		digests = []string{}
	}
	return digests, attempts, nil
}

// handleFetchSuccess records a successful source run.
func (s *Service) handleFetchSuccess(runID uuid.UUID, adapter scraper.Adapter, attempts, count int, logger *zap.Logger) {
	logger.Info("Source fetched",
		zap.Int("attempts", attempts),
		zap.Int("digests", count),
	)

	s.record(sources.RunOutcome{
		Name:       adapter.Name,
		Label:      adapter.Label,
		RunID:      runID,
		Attempts:   attempts,
		Digests:    count,
		FinishedAt: time.Now(),
	}, logger)
}

// handleFetchError records a source that contributed nothing.
func (s *Service) handleFetchError(runID uuid.UUID, adapter scraper.Adapter, attempts int, err error, logger *zap.Logger) {
	logger.Error("Source failed, contributing no digests",
		zap.Int("attempts", attempts),
		zap.Error(err),
	)

	s.record(sources.RunOutcome{
		Name:       adapter.Name,
		Label:      adapter.Label,
		RunID:      runID,
		Attempts:   attempts,
		Err:        err,
		FinishedAt: time.Now(),
	}, logger)
}

func (s *Service) record(outcome sources.RunOutcome, logger *zap.Logger) {
	if s.status == nil {
		return
	}
	if err := s.status.Record(outcome); err != nil {
		logger.Warn("Failed to record source status", zap.Error(err))
	}
}
