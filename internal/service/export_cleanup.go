package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type exportCleaner interface {
	Cleanup(ttl time.Duration) ([]string, error)
}

type documentSweeper interface {
	Sweep() int
}

// Janitor periodically removes expired exports and in-memory proposals.
type Janitor struct {
	exports  exportCleaner
	docs     documentSweeper
	interval time.Duration
	logger   *zap.Logger
}

// NewJanitor builds a janitor. A nil exports cleaner skips file cleanup.
func NewJanitor(exports exportCleaner, svc *TimetableService, interval time.Duration, logger *zap.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Janitor{exports: exports, interval: interval, logger: logger}
	if svc != nil {
		j.docs = svc.store
	}
	return j
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep performs a single cleanup pass.
func (j *Janitor) Sweep() {
	if j.exports != nil {
		deleted, err := j.exports.Cleanup(0)
		if err != nil {
			j.logger.Warn("export cleanup failed", zap.Error(err))
		} else if len(deleted) > 0 {
			j.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
		}
	}
	if j.docs != nil {
		if removed := j.docs.Sweep(); removed > 0 {
			j.logger.Debug("expired proposals dropped", zap.Int("count", removed))
		}
	}
}
