package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/z-wentao/docscribe/pkg/models"
	"github.com/z-wentao/docscribe/pkg/queue"
	"github.com/z-wentao/docscribe/pkg/transcription"
)

// Runner executes one job.
type Runner interface {
	Run(ctx context.Context, job *models.Job) error
}

// Options tune a Worker. Zero values get defaults.
type Options struct {
	// PoolSize is the number of jobs run in parallel.
	PoolSize int
	// JobTimeout bounds a single run.
	JobTimeout time.Duration
	// OnDone is called after a job left the Running state.
	OnDone func(job *models.Job)
}

// Worker runs a fixed number of goroutines draining a queue.
type Worker struct {
	queue  queue.Queue
	runner Runner
	opts   Options
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
	start  sync.Once
}

func NewWorker(q queue.Queue, runner Runner, opts Options, log zerolog.Logger) *Worker {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 2
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Minute
	}
	if opts.OnDone == nil {
		opts.OnDone = func(*models.Job) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		queue:  q,
		runner: runner,
		opts:   opts,
		log:    log.With().Str("component", "worker").Logger(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start launches the pool. Calling it again does nothing.
func (w *Worker) Start() {
	w.start.Do(func() {
		for i := range w.opts.PoolSize {
			w.wg.Add(1)
			go w.run(i)
		}
		go func() {
			w.wg.Wait()
			close(w.done)
		}()
	})
}

// Stop cancels the context of every running job.
func (w *Worker) Stop() {
	w.cancel()
}

// Done is closed once every goroutine has returned, which happens after
// the queue is closed and drained or after Stop.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) run(id int) {
	defer w.wg.Done()
	log := w.log.With().Int("worker", id).Logger()
	log.Debug().Msg("worker started")

	for {
		job, err := w.queue.Dequeue(w.ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || w.ctx.Err() != nil {
				log.Debug().Msg("worker stopped")
				return
			}
			log.Error().Err(err).Msg("dequeue failed")
			continue
		}
		w.processJob(log, job)
	}
}

func (w *Worker) processJob(log zerolog.Logger, job *models.Job) {
	// cancelled or suspended while queued
	if !job.Start() {
		log.Debug().Str("job", job.Key.String()).Str("state", string(job.State())).Msg("skipping job")
		return
	}
	defer w.opts.OnDone(job)

	log.Info().Str("job", job.Key.String()).Msg("job started")
	started := time.Now()

	ctx, cancel := context.WithTimeout(w.ctx, w.opts.JobTimeout)
	defer cancel()

	err := w.safeRun(ctx, job)
	stage := job.Snapshot().Label

	switch {
	case err == nil:
		job.Complete("")
		log.Info().Str("job", job.Key.String()).Dur("elapsed", time.Since(started)).Msg("job completed")
	case errors.Is(err, transcription.ErrSuspended):
		job.Suspend()
		log.Info().Str("job", job.Key.String()).Str("stage", stage).Msg("job suspended")
	case errors.Is(err, transcription.ErrUnsupportedLanguage):
		job.Complete(err.Error())
		log.Warn().Str("job", job.Key.String()).Str("stage", stage).Err(err).Msg("job completed without transcript")
	case job.IsSuspending():
		// stopped by a suspend request before reaching a checkpoint
		job.Suspend()
		log.Info().Str("job", job.Key.String()).Str("stage", stage).Err(err).Msg("job suspended")
	default:
		job.Fail(err.Error())
		log.Error().Str("job", job.Key.String()).Str("stage", stage).Err(err).Msg("job failed")
	}
}

// safeRun turns a panic in the runner into an error.
func (w *Worker) safeRun(ctx context.Context, job *models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.runner.Run(ctx, job)
}
