package scheduler

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/z-wentao/docscribe/pkg/models"
	"github.com/z-wentao/docscribe/pkg/queue"
	"github.com/z-wentao/docscribe/pkg/worker"
)

var (
	ErrShutdown        = errors.New("scheduler is shut down")
	ErrShutdownTimeout = errors.New("timed out waiting for running jobs")
)

const DefaultRetention = 5 * time.Minute

// Options configure a Scheduler. Zero values get defaults.
type Options struct {
	Category   string
	PoolSize   int
	QueueSize  int
	Retention  time.Duration
	JobTimeout time.Duration
}

type entry struct {
	job   *models.Job
	seq   uint64
	timer *time.Timer
}

// Scheduler tracks the jobs of one category, at most one active job per
// key, and feeds them to a worker pool.
type Scheduler struct {
	category  string
	retention time.Duration
	queue     queue.Queue
	worker    *worker.Worker
	log       zerolog.Logger

	mu       sync.RWMutex
	jobs     map[models.JobKey]*entry
	seq      uint64
	shutdown bool
}

// New starts the worker pool right away.
func New(runner worker.Runner, opts Options, log zerolog.Logger) *Scheduler {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}

	s := &Scheduler{
		category:  opts.Category,
		retention: opts.Retention,
		queue:     queue.NewMemoryQueue(opts.QueueSize),
		log:       log.With().Str("component", "scheduler").Str("category", opts.Category).Logger(),
		jobs:      make(map[models.JobKey]*entry),
	}
	s.worker = worker.NewWorker(s.queue, runner, worker.Options{
		PoolSize:   opts.PoolSize,
		JobTimeout: opts.JobTimeout,
		OnDone:     s.jobDone,
	}, log)
	s.worker.Start()
	return s
}

// Submit schedules the job for key. When a job with the same key is still
// active it is returned with created == false. Terminal and suspended
// leftovers are replaced.
func (s *Scheduler) Submit(key models.JobKey) (job *models.Job, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return nil, false, ErrShutdown
	}
	old, tracked := s.jobs[key]
	if tracked && old.job.State().Active() {
		return old.job, false, nil
	}

	job = models.NewJob(key, s.category)
	if err := s.queue.Enqueue(job); err != nil {
		return nil, false, err
	}
	if tracked && old.timer != nil {
		old.timer.Stop()
	}
	s.seq++
	s.jobs[key] = &entry{job: job, seq: s.seq}
	s.log.Info().Str("job", key.String()).Msg("job scheduled")
	return job, true, nil
}

// Find returns a snapshot of the job for key and its 1-based position among
// the jobs still waiting to run. The position is 0 once the job started.
func (s *Scheduler) Find(key models.JobKey) (models.JobSnapshot, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.jobs[key]
	if !ok {
		return models.JobSnapshot{}, 0, false
	}
	snap := e.job.Snapshot()
	pos, _ := s.positionLocked(e, snap.State)
	return snap, pos, true
}

// Status returns the polling view of the job for key.
func (s *Scheduler) Status(key models.JobKey) (*models.JobStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.jobs[key]
	if !ok {
		return nil, false
	}
	snap := e.job.Snapshot()
	pos, size := s.positionLocked(e, snap.State)
	return models.StatusFromSnapshot(snap, pos, size), true
}

func (s *Scheduler) positionLocked(target *entry, state models.JobState) (position, queued int) {
	for _, e := range s.jobs {
		if e.job.State() != models.StateScheduled {
			continue
		}
		queued++
		if e.seq < target.seq {
			position++
		}
	}
	if state != models.StateScheduled {
		return 0, queued
	}
	return position + 1, queued
}

// Cancel drops a scheduled job or asks a running one to suspend. It
// returns false when nothing was active for key.
func (s *Scheduler) Cancel(key models.JobKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[key]
	if !ok {
		return false
	}
	prev := e.job.State()
	switch e.job.RequestSuspend() {
	case models.StateSuspended:
		if prev != models.StateScheduled {
			return false
		}
		delete(s.jobs, key)
		s.log.Info().Str("job", key.String()).Msg("scheduled job cancelled")
		return true
	case models.StateSuspending:
		s.log.Info().Str("job", key.String()).Msg("running job asked to suspend")
		return true
	default:
		return false
	}
}

// List snapshots every tracked job in submission order.
func (s *Scheduler) List() []models.JobSnapshot {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]models.JobSnapshot, len(entries))
	for i, e := range entries {
		out[i] = e.job.Snapshot()
	}
	return out
}

// Shutdown stops accepting work, suspends waiting jobs, asks running ones to
// stop at their next checkpoint and waits up to timeout for them.
func (s *Scheduler) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	suspended := 0
	for _, e := range s.jobs {
		if e.job.State().Active() {
			e.job.RequestSuspend()
			suspended++
		}
	}
	s.mu.Unlock()

	s.log.Info().Int("jobs", suspended).Dur("timeout", timeout).Msg("shutting down")
	s.queue.Close()

	select {
	case <-s.worker.Done():
		s.worker.Stop()
		s.log.Info().Msg("all workers stopped")
		return nil
	case <-time.After(timeout):
		// jobs still running are left to finish on their own
		s.log.Warn().Msg("workers still busy after shutdown timeout")
		return ErrShutdownTimeout
	}
}

// jobDone keeps a finished job queryable for the retention window.
func (s *Scheduler) jobDone(job *models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[job.Key]
	if !ok || e.job != job {
		return
	}
	e.timer = time.AfterFunc(s.retention, func() { s.expire(job) })
}

func (s *Scheduler) expire(job *models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.jobs[job.Key]; ok && e.job == job {
		delete(s.jobs, job.Key)
	}
}
