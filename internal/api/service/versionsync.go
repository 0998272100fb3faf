package service

import (
	"context"
	"log/slog"
	"time"
)

// DefaultVersionSyncInterval is used when no interval is configured.
const DefaultVersionSyncInterval = 30 * time.Second

// VersionFlusher is the part of revocation.Registry the sync loop needs.
type VersionFlusher interface {
	Flush(ctx context.Context) error
	Dirty() int
}

// VersionSyncService periodically retries version writes the journal
// rejected, so a database hiccup does not leave the stored counters behind
// the in-memory ones after a restart.
type VersionSyncService struct {
	Registry VersionFlusher
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewVersionSyncService falls back to DefaultVersionSyncInterval for a
// non-positive interval.
func NewVersionSyncService(registry VersionFlusher, logger *slog.Logger, interval time.Duration) *VersionSyncService {
	if interval <= 0 {
		interval = DefaultVersionSyncInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &VersionSyncService{
		Registry: registry,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background loop. Call Stop to end it.
func (s *VersionSyncService) Start() {
	go s.run()
	s.Logger.Info("version sync started", "interval", s.Interval)
}

// Stop ends the loop after one last flush and waits for it to return.
func (s *VersionSyncService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("version sync stopped")
}

func (s *VersionSyncService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sync(context.Background())
		case <-s.stopCh:
			s.Sync(context.Background())
			return
		}
	}
}

// Sync flushes dirty versions once. It is a no-op when nothing is pending.
func (s *VersionSyncService) Sync(ctx context.Context) {
	pending := s.Registry.Dirty()
	if pending == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.Interval)
	defer cancel()

	if err := s.Registry.Flush(ctx); err != nil {
		s.Logger.Error("failed to flush token versions",
			"pending", pending,
			"remaining", s.Registry.Dirty(),
			"err", err,
		)
		return
	}
	s.Logger.Info("flushed token versions", "count", pending)
}
