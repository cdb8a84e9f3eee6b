package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warikan/internal/domain"
	"warikan/internal/platform/metrics"
)

// capturePublisher records published events and can be told to fail.
type capturePublisher struct {
	mu        sync.Mutex
	published []Event
	fail      bool
}

func (p *capturePublisher) Publish(_ context.Context, events []Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.published = append(p.published, events...)
	return nil
}

func (p *capturePublisher) Close() {}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func appendEvents(t *testing.T, store Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		event := NewEvent(ActionGroupCreated, domain.NewUserID(), "subject", "")
		require.NoError(t, store.Append(context.Background(), event))
	}
}

func TestWorkerDrainsOutbox(t *testing.T) {
	store := NewMemoryStore()
	publisher := &capturePublisher{}
	worker := NewWorker(store, publisher, discard(), metrics.New(), 10*time.Millisecond)

	appendEvents(t, store, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	require.Eventually(t, func() bool {
		return publisher.count() == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	pending, err := store.Pending(context.Background(), drainBatchSize)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestWorkerDrainsOnShutdown(t *testing.T) {
	store := NewMemoryStore()
	publisher := &capturePublisher{}
	// Interval far beyond the test's lifetime: only the shutdown drain can
	// deliver these.
	worker := NewWorker(store, publisher, discard(), metrics.New(), time.Hour)

	appendEvents(t, store, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 2, publisher.count())
}

func TestPublishFailureLeavesEventsPending(t *testing.T) {
	store := NewMemoryStore()
	publisher := &capturePublisher{fail: true}
	worker := NewWorker(store, publisher, discard(), metrics.New(), time.Hour)

	appendEvents(t, store, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, worker.Run(ctx))

	pending, err := store.Pending(context.Background(), drainBatchSize)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestMemoryStorePendingAndMark(t *testing.T) {
	store := NewMemoryStore()
	appendEvents(t, store, 5)

	pending, err := store.Pending(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	ids := []string{pending[0].ID, pending[1].ID, pending[2].ID}
	require.NoError(t, store.MarkPublished(context.Background(), ids))

	rest, err := store.Pending(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
	for _, e := range rest {
		assert.NotContains(t, ids, e.ID)
	}
}
