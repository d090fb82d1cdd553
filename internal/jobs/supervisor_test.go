package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"restaurant_catalog/internal/domain"
)

type stubAdapter struct{ domain.Adapter }

type fakeIndexer struct {
	adapters []domain.Adapter
	gate     chan struct{} // closed to let blocked runs finish
	mu       sync.Mutex
	calls    []string
	err      error
	panicMsg string
	stats    domain.IndexStats
}

func newIndexer() *fakeIndexer {
	return &fakeIndexer{adapters: []domain.Adapter{stubAdapter{}}, gate: make(chan struct{})}
}

func (f *fakeIndexer) Configured() []domain.Adapter { return f.adapters }

func (f *fakeIndexer) IndexArea(ctx context.Context, location, category string) (domain.IndexStats, error) {
	f.mu.Lock()
	f.calls = append(f.calls, location)
	f.mu.Unlock()
	select {
	case <-f.gate:
	case <-ctx.Done():
		return domain.IndexStats{}, ctx.Err()
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.stats, f.err
}

func waitStatus(t *testing.T, s *Supervisor, id string, want domain.JobStatus) domain.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		j, err := s.Registry().Get(id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if j.Status == want {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	j, _ := s.Registry().Get(id)
	t.Fatalf("job %s status = %s, want %s", id, j.Status, want)
	return j
}

func TestSubmit_CompletesWithStats(t *testing.T) {
	idx := newIndexer()
	idx.stats = domain.IndexStats{Total: 3, Created: 2, Merged: 1}
	s := NewSupervisor(idx, DefaultOptions())

	job, err := s.Submit("San Francisco", "bakeries")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.ID == "" || job.Status != domain.JobPending {
		t.Fatalf("unexpected job: %+v", job)
	}
	waitStatus(t, s, job.ID, domain.JobRunning)

	close(idx.gate)
	done := waitStatus(t, s, job.ID, domain.JobCompleted)
	if done.Result == nil || *done.Result != idx.stats {
		t.Fatalf("result = %+v", done.Result)
	}
	if done.StartedAt == nil || done.FinishedAt == nil || done.FinishedAt.Before(*done.StartedAt) {
		t.Fatalf("timestamps not set: %+v", done)
	}
	if done.Error != "" {
		t.Fatalf("unexpected error %q", done.Error)
	}
}

func TestSubmit_RejectsWhenPoolFull(t *testing.T) {
	idx := newIndexer()
	s := NewSupervisor(idx, Options{Workers: 3})

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		j, err := s.Submit("loc", "")
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		ids = append(ids, j.ID)
	}
	for _, id := range ids {
		waitStatus(t, s, id, domain.JobRunning)
	}

	if _, err := s.Submit("loc", ""); !errors.Is(err, domain.ErrTooManyJobs) {
		t.Fatalf("4th submit: want ErrTooManyJobs, got %v", err)
	}
	if got := s.Registry().Len(); got != 3 {
		t.Fatalf("rejected job was recorded: %d jobs", got)
	}

	close(idx.gate)
	for _, id := range ids {
		waitStatus(t, s, id, domain.JobCompleted)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	// slots are released once jobs finish
	if _, err := s.Submit("loc", ""); err != nil {
		t.Fatalf("submit after drain: %v", err)
	}
}

func TestSubmit_NoAdapters(t *testing.T) {
	idx := newIndexer()
	idx.adapters = nil
	s := NewSupervisor(idx, DefaultOptions())
	if _, err := s.Submit("loc", ""); !errors.Is(err, domain.ErrNoAdaptersConfigured) {
		t.Fatalf("want ErrNoAdaptersConfigured, got %v", err)
	}
	if s.Registry().Len() != 0 {
		t.Fatalf("job recorded without adapters")
	}
}

func TestSubmit_EmptyLocation(t *testing.T) {
	s := NewSupervisor(newIndexer(), DefaultOptions())
	if _, err := s.Submit("  ", ""); !errors.Is(err, ErrLocationRequired) {
		t.Fatalf("want ErrLocationRequired, got %v", err)
	}
}

func TestJob_FailureRecorded(t *testing.T) {
	idx := newIndexer()
	idx.err = &domain.APIError{Source: "yelp", Status: 500}
	close(idx.gate)
	s := NewSupervisor(idx, DefaultOptions())

	j, _ := s.Submit("loc", "")
	failed := waitStatus(t, s, j.ID, domain.JobFailed)
	if failed.Error == "" || failed.Result != nil {
		t.Fatalf("unexpected failed job: %+v", failed)
	}
}

func TestJob_PanicRecorded(t *testing.T) {
	idx := newIndexer()
	idx.panicMsg = "boom"
	close(idx.gate)
	s := NewSupervisor(idx, DefaultOptions())

	j, _ := s.Submit("loc", "")
	failed := waitStatus(t, s, j.ID, domain.JobFailed)
	if failed.Error != "index job panicked: boom" {
		t.Fatalf("error = %q", failed.Error)
	}
}

func TestJob_Timeout(t *testing.T) {
	idx := newIndexer()
	s := NewSupervisor(idx, Options{Timeout: 20 * time.Millisecond})

	j, _ := s.Submit("loc", "")
	failed := waitStatus(t, s, j.ID, domain.JobFailed)
	if failed.Error != context.DeadlineExceeded.Error() {
		t.Fatalf("error = %q", failed.Error)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry(time.Hour)
	if _, err := r.Get("nope"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("want ErrJobNotFound, got %v", err)
	}
}

func TestRegistry_ListOrderedByCreation(t *testing.T) {
	r := NewRegistry(time.Hour)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.add(domain.Job{ID: "b", CreatedAt: base.Add(time.Minute)})
	r.add(domain.Job{ID: "a", CreatedAt: base.Add(2 * time.Minute)})
	r.add(domain.Job{ID: "c", CreatedAt: base})

	got := r.List()
	if len(got) != 3 || got[0].ID != "c" || got[1].ID != "b" || got[2].ID != "a" {
		t.Fatalf("order = %+v", got)
	}
}

func TestRegistry_SweepDropsOnlyExpiredTerminal(t *testing.T) {
	r := NewRegistry(time.Hour)
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	old := now.Add(-2 * time.Hour)
	recent := now.Add(-10 * time.Minute)

	r.add(domain.Job{ID: "old-done", Status: domain.JobCompleted, CreatedAt: old, FinishedAt: &old})
	r.add(domain.Job{ID: "old-failed", Status: domain.JobFailed, CreatedAt: old, FinishedAt: &old})
	r.add(domain.Job{ID: "recent", Status: domain.JobCompleted, CreatedAt: recent, FinishedAt: &recent})
	r.add(domain.Job{ID: "running", Status: domain.JobRunning, CreatedAt: old})

	if n := r.Sweep(now); n != 2 {
		t.Fatalf("swept %d, want 2", n)
	}
	for _, id := range []string{"recent", "running"} {
		if _, err := r.Get(id); err != nil {
			t.Fatalf("%s swept: %v", id, err)
		}
	}
	if _, err := r.Get("old-done"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("old-done survived")
	}
}

func TestShutdown_HonoursContext(t *testing.T) {
	idx := newIndexer()
	s := NewSupervisor(idx, DefaultOptions())
	if _, err := s.Submit("loc", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	close(idx.gate)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSubmit_RejectedAfterShutdown(t *testing.T) {
	idx := newIndexer()
	close(idx.gate)
	s := NewSupervisor(idx, DefaultOptions())
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if _, err := s.Submit("loc", ""); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("want ErrShuttingDown, got %v", err)
	}
	if n := s.Registry().Len(); n != 0 {
		t.Fatalf("rejected submit recorded %d jobs", n)
	}
}

func TestSubmit_ConcurrentWithShutdown(t *testing.T) {
	idx := newIndexer()
	close(idx.gate)
	s := NewSupervisor(idx, Options{Workers: 64})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Submit("loc", "")
		}()
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	wg.Wait()
	// every accepted job finished before Shutdown returned or was refused
	for _, j := range s.Registry().List() {
		if j.Status != domain.JobCompleted {
			t.Fatalf("job %s left %s after shutdown", j.ID, j.Status)
		}
	}
}
