package jobs

import (
	"sort"
	"sync"
	"time"

	"restaurant_catalog/internal/domain"
)

// Registry holds job records in memory. Records are lost on restart.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
	ttl  time.Duration
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{jobs: map[string]*domain.Job{}, ttl: ttl}
}

func (r *Registry) add(j domain.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = &j
}

func (r *Registry) update(id string, fn func(*domain.Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		fn(j)
	}
}

// Get returns a snapshot of job id.
func (r *Registry) Get(id string) (domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return *j, nil
}

// List returns snapshots ordered by creation time.
func (r *Registry) List() []domain.Job {
	r.mu.RLock()
	out := make([]domain.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, *j)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out
}

// Sweep drops terminal jobs that finished more than ttl before now and
// reports how many were removed. Pending and running jobs are never swept.
func (r *Registry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, j := range r.jobs {
		if !j.Status.Terminal() || j.FinishedAt == nil {
			continue
		}
		if now.Sub(*j.FinishedAt) > r.ttl {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
