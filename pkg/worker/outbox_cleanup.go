package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/doctorconnect-api/pkg/logger"
)

// OutboxCleanupWorker purges processed outbox events older than retention.
type OutboxCleanupWorker struct {
	store     OutboxStore
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
}

func NewOutboxCleanupWorker(store OutboxStore, retention, interval time.Duration, logger *logger.Logger) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		store:     store,
		retention: retention,
		interval:  interval,
		logger:    logger.With("outbox-cleanup"),
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				// Log error but continue
				w.logger.Error(err, "Error cleaning up outbox events")
			}
		}
	}
}

func (w *OutboxCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-w.retention)

	rows, err := w.store.Outbox().DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup outbox events: %w", err)
	}

	if rows > 0 {
		w.logger.Info("Cleaned up processed outbox events", "rows", rows, "cutoff", cutoff)
	}
	return rows, nil
}
