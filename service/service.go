// Package service exposes the scan-and-download pipeline to external
// callers: the two-stage run, the single-image variant, the progress and
// completion streams, and cancellation.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fetchpix/fetchpix/batch"
	"github.com/fetchpix/fetchpix/config"
	"github.com/fetchpix/fetchpix/download"
	"github.com/fetchpix/fetchpix/models"
	"github.com/fetchpix/fetchpix/normalize"
	"github.com/fetchpix/fetchpix/progress"
	"github.com/fetchpix/fetchpix/resolver"
	"github.com/fetchpix/fetchpix/session"
)

// Service orchestrates the pipeline. It is safe for one run at a time; the
// cancellation flag resets at the start of each run.
type Service struct {
	cfg     *config.Config
	factory session.Factory
	bus     *progress.Bus
	done    chan models.RunStatus
	cache   *lru.Cache[string, []models.ImageDescriptor]
	Metrics *Metrics

	mu sync.Mutex
	rc *batch.RunContext
}

// New builds a service around the configured session factory.
func New(cfg *config.Config, factory session.Factory) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	cache, err := lru.New[string, []models.ImageDescriptor](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create resolve cache: %w", err)
	}

	return &Service{
		cfg:     cfg,
		factory: factory,
		bus:     progress.NewBus(cfg.ProgressBufferSize),
		done:    make(chan models.RunStatus, 4),
		cache:   cache,
		Metrics: NewMetrics(),
	}, nil
}

// Events returns the progress stream. The channel closes on Close.
func (s *Service) Events() <-chan models.ProgressEvent {
	return s.bus.Events()
}

// Done returns the completion stream; one status per finished run.
func (s *Service) Done() <-chan models.RunStatus {
	return s.done
}

// Close ends both streams. No runs may be started afterwards.
func (s *Service) Close() {
	s.bus.Close()
	close(s.done)
}

// RequestCancel sets the current run's cancellation flag. Fire-and-forget;
// a no-op when no run is active.
func (s *Service) RequestCancel() {
	s.mu.Lock()
	rc := s.rc
	s.mu.Unlock()
	if rc == nil {
		return
	}
	rc.RequestCancel()
	s.Metrics.IncCancellation()
	slog.Info("cancellation requested")
}

// DefaultStorageFolder returns the configured storage root, falling back to
// a folder under the user's home directory.
func (s *Service) DefaultStorageFolder() string {
	if s.cfg.StorageRoot != "" {
		return s.cfg.StorageRoot
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "product-images"
	}
	return filepath.Join(home, "Pictures", "product-images")
}

// CreateDestinationFolder ensures {root}/{domain} exists and returns it.
func (s *Service) CreateDestinationFolder(root, domain string) (string, error) {
	return download.Destination(root, domain)
}

// CheckImages normalizes rows into a work list and resolves every page,
// returning the discovered descriptors. Input errors (missing identifier
// field, unusable sample URL) abort before any network activity.
func (s *Service) CheckImages(ctx context.Context, rows []map[string]string, sampleURL, field string) models.CheckResult {
	items, err := normalize.WorkItems(rows, field, sampleURL)
	if err != nil {
		return models.CheckResult{Success: false, Message: err.Error()}
	}

	rc := s.beginRun()
	descriptors, stats := s.checkStage(ctx, rc, items)
	return models.CheckResult{
		Success:     true,
		Message:     fmt.Sprintf("checked %d pages, found %d images (%d failures)", stats.Total, len(descriptors), stats.Failed),
		Descriptors: descriptors,
	}
}

// DownloadImages downloads every descriptor under {root}/{domain of
// sampleURL} and pushes one completion status. Folder creation failure is a
// run-level error; individual download failures are not.
func (s *Service) DownloadImages(ctx context.Context, descriptors []models.ImageDescriptor, root, sampleURL string) models.RunStatus {
	rc := s.beginRun()
	status := s.downloadRun(ctx, rc, descriptors, root, sampleURL)
	s.complete(status)
	return status
}

// Run executes the full two-stage pipeline for rows and pushes exactly one
// completion status.
func (s *Service) Run(ctx context.Context, rows []map[string]string, sampleURL, field, root string) models.RunStatus {
	items, err := normalize.WorkItems(rows, field, sampleURL)
	if err != nil {
		status := models.RunStatus{Success: false, Message: err.Error()}
		s.complete(status)
		return status
	}

	rc := s.beginRun()

	descriptors, checkStats := s.checkStage(ctx, rc, items)
	slog.Info("checking stage finished",
		slog.Int("pages", checkStats.Total),
		slog.Int("images", len(descriptors)),
		slog.Int("failures", checkStats.Failed),
	)

	status := s.downloadRun(ctx, rc, descriptors, root, sampleURL)
	s.complete(status)
	return status
}

// DownloadSingleImage downloads one descriptor outside the scheduler, using
// a dedicated session.
func (s *Service) DownloadSingleImage(ctx context.Context, desc models.ImageDescriptor, root, sampleURL string) models.DownloadOutcome {
	fail := func(msg string) models.DownloadOutcome {
		return models.DownloadOutcome{Identifier: desc.Identifier, Suffix: desc.Suffix, Success: false, Error: msg}
	}

	domain, err := normalize.DomainName(sampleURL)
	if err != nil {
		return fail(err.Error())
	}
	dest, err := download.Destination(root, domain)
	if err != nil {
		return fail(err.Error())
	}

	sess, err := s.factory.NewSession(ctx)
	if err != nil {
		return fail(fmt.Sprintf("session launch: %v", err))
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			slog.Warn("session close failed", slog.Any("error", cerr))
		}
	}()

	outcome := download.Run(ctx, sess, download.NewNamer(), nil, desc, dest, s.cfg.PerIdentifierDirs)
	if outcome.Success {
		s.Metrics.IncDownload("success")
	} else {
		s.Metrics.IncDownload("failure")
	}
	return outcome
}

// beginRun installs a fresh run context, clearing any previous run's
// cancellation flag.
func (s *Service) beginRun() *batch.RunContext {
	rc := batch.NewRunContext(s.bus)
	s.mu.Lock()
	s.rc = rc
	s.mu.Unlock()
	return rc
}

func (s *Service) complete(status models.RunStatus) {
	select {
	case s.done <- status:
	default:
		slog.Warn("completion status dropped", slog.String("message", status.Message))
	}
}

func (s *Service) checkStage(ctx context.Context, rc *batch.RunContext, items []models.WorkItem) ([]models.ImageDescriptor, models.BatchStats) {
	fn := func(ctx context.Context, sess session.PageSession, item models.WorkItem) ([]models.ImageDescriptor, error) {
		if cached, ok := s.cache.Get(item.SourceURL); ok {
			slog.Debug("resolve cache hit", slog.String("url", item.SourceURL))
			return cached, nil
		}
		descriptors, err := resolver.Resolve(ctx, sess, item, s.cfg.Fingerprint)
		if err != nil {
			s.Metrics.IncResolveError(session.ErrorLabel(err))
			return nil, err
		}
		s.cache.Add(item.SourceURL, descriptors)
		return descriptors, nil
	}

	outcomes := batch.Run(ctx, s.factory, rc, models.StageChecking, items, s.cfg.Concurrency, fn)

	stats := models.BatchStats{Total: len(items)}
	var descriptors []models.ImageDescriptor
	for _, outcome := range outcomes {
		s.Metrics.IncPageChecked()
		if outcome.Err != nil {
			stats.Failed++
			continue
		}
		stats.Succeeded++
		descriptors = append(descriptors, outcome.Value...)
	}
	s.Metrics.AddImagesFound(len(descriptors))
	return descriptors, stats
}

func (s *Service) downloadRun(ctx context.Context, rc *batch.RunContext, descriptors []models.ImageDescriptor, root, sampleURL string) models.RunStatus {
	domain, err := normalize.DomainName(sampleURL)
	if err != nil {
		return models.RunStatus{Success: false, Message: err.Error()}
	}
	dest, err := download.Destination(root, domain)
	if err != nil {
		return models.RunStatus{Success: false, Message: err.Error()}
	}

	stats := s.downloadStage(ctx, rc, descriptors, dest)

	if rc.Cancelled() {
		return models.RunStatus{
			Success: false,
			Message: fmt.Sprintf("cancelled: %d of %d images downloaded", stats.Succeeded, stats.Total),
		}
	}
	return models.RunStatus{
		Success: true,
		Message: fmt.Sprintf("downloaded %d of %d images (%d failures)", stats.Succeeded, stats.Total, stats.Failed),
	}
}

func (s *Service) downloadStage(ctx context.Context, rc *batch.RunContext, descriptors []models.ImageDescriptor, dest string) models.BatchStats {
	namer := download.NewNamer()

	fn := func(ctx context.Context, sess session.PageSession, desc models.ImageDescriptor) (models.DownloadOutcome, error) {
		start := time.Now()
		outcome := download.Run(ctx, sess, namer, rc, desc, dest, s.cfg.PerIdentifierDirs)
		s.Metrics.ObserveFetch(time.Since(start))
		return outcome, nil
	}

	outcomes := batch.Run(ctx, s.factory, rc, models.StageDownloading, descriptors, s.cfg.Concurrency, fn)

	stats := models.BatchStats{Total: len(descriptors)}
	for i, outcome := range outcomes {
		result := outcome.Value
		if outcome.Err != nil {
			// Session launch failure or item panic: synthesize a failed
			// outcome for the descriptor.
			result = models.DownloadOutcome{
				Identifier: descriptors[i].Identifier,
				Suffix:     descriptors[i].Suffix,
				Success:    false,
				Error:      outcome.Err.Error(),
			}
		}
		if result.Success {
			stats.Succeeded++
			s.Metrics.IncDownload("success")
		} else {
			stats.Failed++
			s.Metrics.IncDownload("failure")
			slog.Debug("download failed",
				slog.String("identifier", result.Identifier),
				slog.String("suffix", result.Suffix),
				slog.String("error", result.Error),
			)
		}
	}
	return stats
}
