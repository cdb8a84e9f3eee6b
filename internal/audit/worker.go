package audit

import (
	"context"
	"log/slog"
	"time"

	"warikan/internal/platform/metrics"
)

const drainBatchSize = 100

// Worker drains the outbox to the publisher on an interval. Publish failures
// leave events pending, so delivery is at-least-once; consumers dedupe on
// event ID.
type Worker struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
}

func NewWorker(store Store, publisher Publisher, logger *slog.Logger, m *metrics.Metrics, interval time.Duration) *Worker {
	return &Worker{
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		interval:  interval,
	}
}

// Run loops until ctx is canceled, draining once per tick and once more on
// shutdown so a clean stop leaves nothing behind.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), w.interval)
			w.drain(drainCtx)
			cancel()
			return nil
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		events, err := w.store.Pending(ctx, drainBatchSize)
		if err != nil {
			w.logger.ErrorContext(ctx, "audit outbox read failed", "error", err)
			return
		}
		if len(events) == 0 {
			return
		}

		if err := w.publisher.Publish(ctx, events); err != nil {
			w.metrics.AuditPublishFailures.Inc()
			w.logger.ErrorContext(ctx, "audit publish failed, will retry",
				"error", err,
				"events", len(events),
			)
			return
		}

		ids := make([]string, len(events))
		for i, e := range events {
			ids[i] = e.ID
		}
		if err := w.store.MarkPublished(ctx, ids); err != nil {
			// Events will be re-published next tick; consumers dedupe.
			w.logger.ErrorContext(ctx, "audit outbox mark failed", "error", err)
			return
		}
		w.metrics.AuditEventsPublished.Add(float64(len(events)))

		if len(events) < drainBatchSize {
			return
		}
	}
}
