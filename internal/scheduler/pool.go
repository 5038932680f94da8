// Package scheduler runs download jobs on a fixed number of slots with a per-job timeout.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/italolelis/d4sign_downloader/internal/document"
	"github.com/italolelis/d4sign_downloader/internal/logctx"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultCapacity = 50
	DefaultTimeout  = 60 * time.Second
)

// Job is one unit of work. Run must return promptly once ctx is done for the slot to be
// reused without leaking work; the pool does not wait for it either way.
type Job struct {
	Name string
	Run  func(ctx context.Context) document.Result
}

type Options struct {
	Capacity int
	Timeout  time.Duration

	// OnComplete is called once per job that finishes within its timeout.
	OnComplete func(document.Result)
	// OnTimeout is called once per job abandoned at its deadline.
	OnTimeout func(name string)
}

// Pool is a fixed-capacity worker pool. A Pool runs its queue once.
type Pool struct {
	opts Options

	mu    sync.Mutex
	queue []Job

	queued   atomic.Int64
	running  atomic.Int64
	timedOut atomic.Int64
}

func New(opts Options) *Pool {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Pool{opts: opts}
}

// Submit appends jobs to the queue. Jobs submitted after Start has returned are not run.
func (p *Pool) Submit(jobs ...Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queue = append(p.queue, jobs...)
	p.queued.Add(int64(len(jobs)))
}

// Start runs every queued job with at most Capacity running at once and blocks until each
// one has completed or timed out. It returns ctx.Err() if ctx is canceled first.
func (p *Pool) Start(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	p.mu.Lock()
	jobs := p.queue
	p.queue = nil
	p.mu.Unlock()

	var g errgroup.Group

	g.SetLimit(p.opts.Capacity)

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			p.queued.Add(-1)
			p.running.Add(1)
			defer p.running.Add(-1)

			if ctx.Err() != nil {
				return nil
			}

			p.execute(ctx, job, logger)

			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		p.queued.Store(0)

		return err
	}

	return nil
}

func (p *Pool) execute(ctx context.Context, job Job, logger *slog.Logger) {
	jobCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	done := make(chan document.Result, 1)

	go func() {
		done <- job.Run(jobCtx)
	}()

	select {
	case result := <-done:
		p.complete(result)
	case <-jobCtx.Done():
		// A result that raced the deadline still counts.
		select {
		case result := <-done:
			p.complete(result)

			return
		default:
		}

		if ctx.Err() != nil {
			return
		}

		p.timedOut.Add(1)

		logger.WarnContext(ctx, "job timed out", "job", job.Name, "timeout", p.opts.Timeout)

		if p.opts.OnTimeout != nil {
			p.opts.OnTimeout(job.Name)
		}
	}
}

func (p *Pool) complete(result document.Result) {
	if p.opts.OnComplete != nil {
		p.opts.OnComplete(result)
	}
}

// Queued is the number of jobs submitted but not yet admitted to a slot.
func (p *Pool) Queued() int {
	return int(p.queued.Load())
}

// Running is the number of jobs currently holding a slot.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Remaining is queued plus running.
func (p *Pool) Remaining() int {
	return p.Queued() + p.Running()
}

func (p *Pool) TimedOut() int {
	return int(p.timedOut.Load())
}
