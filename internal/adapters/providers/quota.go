package providers

import (
	"context"
	"sync"
	"time"

	"restaurant_catalog/internal/domain"
)

// MemoryCounter is a process-local RequestCounter with fixed windows, the
// same bucketing as the Redis counter. Used when Redis is not configured.
type MemoryCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	window  time.Duration
	buckets map[string]bucket // per source; only the current window is kept
}

type bucket struct {
	start time.Time
	count int64
}

func NewMemoryCounter(window time.Duration) *MemoryCounter {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &MemoryCounter{now: time.Now, window: window, buckets: map[string]bucket{}}
}

func (m *MemoryCounter) Incr(_ context.Context, source string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := m.now().UTC().Truncate(m.window)
	b := m.buckets[source]
	if !b.start.Equal(start) {
		b = bucket{start: start}
	}
	b.count++
	m.buckets[source] = b
	return b.count, nil
}

// Default returns the adapters in the order the indexer iterates them.
// On merges, later adapters overwrite fields written by earlier ones.
func Default(yelp, google Config) []domain.Adapter {
	return []domain.Adapter{NewYelp(yelp), NewGoogle(google)}
}
