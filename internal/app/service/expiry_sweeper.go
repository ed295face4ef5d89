package service

import (
	"context"
	"time"

	"github.com/shrinkray-io/shrinkray/internal/app/repository"
	"go.uber.org/zap"
)

// ExpirySweeper periodically deletes short links whose expires_at has passed.
// Reads already filter expired rows, so the sweeper only reclaims storage and
// frees the codes for reuse.
type ExpirySweeper struct {
	logger   *zap.Logger
	repo     repository.LinkRepository
	interval time.Duration
	stopChan chan struct{}
}

// NewExpirySweeper creates a sweeper over the link repository.
func NewExpirySweeper(logger *zap.Logger, repo repository.LinkRepository, interval time.Duration) *ExpirySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirySweeper{
		logger:   logger,
		repo:     repo,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (s *ExpirySweeper) Start() {
	go s.run()
}

// Stop halts the sweep loop.
func (s *ExpirySweeper) Stop() {
	close(s.stopChan)
}

func (s *ExpirySweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopChan:
			s.logger.Info("expiry sweeper stopped")
			return
		}
	}
}

func (s *ExpirySweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), asyncOpTimeout)
	defer cancel()

	deleted, err := s.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to delete expired links", zap.Error(err))
		return
	}

	if deleted > 0 {
		s.logger.Info("deleted expired links", zap.Int64("count", deleted))
	}
}
