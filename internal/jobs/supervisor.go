// Package jobs runs area index runs in the background with bounded
// concurrency and keeps their status for polling.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"restaurant_catalog/internal/adapters/observability"
	"restaurant_catalog/internal/domain"
)

var (
	ErrLocationRequired = errors.New("location is required")
	ErrShuttingDown     = errors.New("job supervisor is shutting down")
)

// Indexer is the slice of the indexing service a job needs.
type Indexer interface {
	Configured() []domain.Adapter
	IndexArea(ctx context.Context, location, category string) (domain.IndexStats, error)
}

type Options struct {
	Workers       int           // concurrent jobs; submits beyond this are rejected
	Timeout       time.Duration // per-job deadline
	TTL           time.Duration // retention of finished jobs
	SweepInterval time.Duration
}

func DefaultOptions() Options {
	return Options{Workers: 3, Timeout: 10 * time.Minute, TTL: 24 * time.Hour, SweepInterval: 10 * time.Minute}
}

type Supervisor struct {
	idx  Indexer
	reg  *Registry
	sem  *semaphore.Weighted
	opts Options
	now  func() time.Time
	wg   sync.WaitGroup

	mu     sync.Mutex // guards closed and orders wg.Add before Shutdown's Wait
	closed bool
}

func NewSupervisor(idx Indexer, opts Options) *Supervisor {
	def := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.TTL <= 0 {
		opts.TTL = def.TTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = def.SweepInterval
	}
	return &Supervisor{
		idx:  idx,
		reg:  NewRegistry(opts.TTL),
		sem:  semaphore.NewWeighted(int64(opts.Workers)),
		opts: opts,
		now:  time.Now,
	}
}

func (s *Supervisor) Registry() *Registry { return s.reg }

// Submit starts an index run for location. It never blocks: a full pool
// returns ErrTooManyJobs and records nothing.
func (s *Supervisor) Submit(location, category string) (domain.Job, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return domain.Job{}, ErrLocationRequired
	}
	if len(s.idx.Configured()) == 0 {
		return domain.Job{}, domain.ErrNoAdaptersConfigured
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Job{}, ErrShuttingDown
	}
	if !s.sem.TryAcquire(1) {
		observability.JobsRejected.Inc()
		return domain.Job{}, domain.ErrTooManyJobs
	}

	job := domain.Job{
		ID:        uuid.NewString(),
		Status:    domain.JobPending,
		Location:  location,
		Category:  category,
		CreatedAt: s.now().UTC(),
	}
	s.reg.add(job)

	s.wg.Add(1)
	go s.run(job.ID, location, category)
	return job, nil
}

func (s *Supervisor) run(id, location, category string) {
	defer s.wg.Done()
	defer s.sem.Release(1)

	started := s.now().UTC()
	s.reg.update(id, func(j *domain.Job) {
		j.Status = domain.JobRunning
		j.StartedAt = &started
	})
	observability.JobsRunning.Inc()
	defer observability.JobsRunning.Dec()

	stats, err := s.execute(location, category)

	finished := s.now().UTC()
	status := domain.JobCompleted
	if err != nil {
		status = domain.JobFailed
	}
	s.reg.update(id, func(j *domain.Job) {
		j.Status = status
		j.FinishedAt = &finished
		if err != nil {
			j.Error = err.Error()
			return
		}
		j.Result = &stats
	})
	observability.ObserveJobFinished(string(status))

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("job_id", id).
		Str("location", location).
		Str("status", string(status)).
		Dur("took", finished.Sub(started)).
		Msg("index job finished")
}

// execute runs one index pass under the job deadline. A panic becomes the
// job's error.
func (s *Supervisor) execute(location, category string) (stats domain.IndexStats, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("index job panicked: %v", r)
		}
	}()
	return s.idx.IndexArea(ctx, location, category)
}

// Run sweeps expired jobs until ctx is done.
func (s *Supervisor) Run(ctx context.Context) {
	t := time.NewTicker(s.opts.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.reg.Sweep(s.now()); n > 0 {
				log.Debug().Int("removed", n).Msg("job registry swept")
			}
		}
	}
}

// Shutdown stops accepting jobs, then waits for in-flight ones or for ctx
// to end.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
