package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/innkeep/authcore/internal/auth/store"
)

// HousekeepingService periodically deletes expired one-time codes, reset
// grants, and refresh sessions so the tables don't grow without bound.
// Correctness never depends on it: every read already filters on expiry and
// session pruning happens inline at issuance.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	Now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the service. An interval of 0 or less
// defaults to 1 hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background worker. Non-blocking; call Stop to shut it
// down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until any in-progress sweep finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep deletes expired rows. Each deletion is independent; a failure in one
// table doesn't stop the others.
func (s *HousekeepingService) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}

	if err := s.Store.OneTimeCodes().DeleteExpired(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired one-time codes", "error", err)
	}
	if err := s.Store.ResetGrants().DeleteExpired(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired reset grants", "error", err)
	}
	if err := s.Store.RefreshSessions().DeleteExpired(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired refresh sessions", "error", err)
	}

	s.Logger.Debug("housekeeping sweep completed")
}
