// Package orchestrator drives download passes over the full document list and retries
// the passes that hit the vendor's rate limit.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/italolelis/d4sign_downloader/internal/batch"
	"github.com/italolelis/d4sign_downloader/internal/document"
	"github.com/italolelis/d4sign_downloader/internal/logctx"
	"github.com/italolelis/d4sign_downloader/internal/notifier"
	"github.com/italolelis/d4sign_downloader/internal/report"
	"github.com/italolelis/d4sign_downloader/internal/scheduler"
	"github.com/italolelis/d4sign_downloader/internal/telemetry"
)

const (
	DefaultCooldown  = 10 * time.Minute
	DefaultMaxPasses = 12
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseListing
	PhaseRunning
	PhaseEvaluating
	PhaseCoolingDown
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseListing:
		return "listing"
	case PhaseRunning:
		return "running"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseCoolingDown:
		return "cooling_down"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Runner executes the download job of one document.
type Runner interface {
	Run(ctx context.Context, doc *document.Document) document.Result
}

// Sweeper is run before every pass.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Config struct {
	Capacity       int
	JobTimeout     time.Duration
	ReportInterval time.Duration
	Cooldown       time.Duration

	// MaxPasses bounds the number of passes; 0 means unbounded.
	MaxPasses int
	// MaxDuration bounds the wall-clock time of Run; 0 disables the limit.
	MaxDuration time.Duration
}

// RetriesExhaustedError is returned by Run when the retry budget ran out while documents
// were still rate limited.
type RetriesExhaustedError struct {
	Passes      int
	RateLimited int
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d passes with %d documents still rate limited", e.Passes, e.RateLimited)
}

// Status is what the status API reports. Stats always belong to Pass: they are reset when
// the pass starts listing and keep the finished pass's counters while cooling down.
type Status struct {
	Phase       Phase       `json:"phase"`
	Pass        int         `json:"pass"`
	Stats       batch.Stats `json:"stats"`
	NextRetryAt *time.Time  `json:"next_retry_at,omitempty"`
}

type Option func(*Orchestrator)

func WithNotifier(n notifier.Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(o *Orchestrator) {
		o.telemetry = tel
	}
}

func WithSweeper(s Sweeper) Option {
	return func(o *Orchestrator) {
		o.sweeper = s
	}
}

// WithSleep replaces the cooldown wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		o.sleep = sleep
	}
}

// WithOutput sets where the operator messages and status blocks are printed.
func WithOutput(w io.Writer) Option {
	return func(o *Orchestrator) {
		o.output = w
	}
}

type Orchestrator struct {
	lister document.Lister
	runner Runner
	cfg    Config

	notifier  notifier.Notifier
	telemetry *telemetry.Telemetry
	sweeper   Sweeper
	sleep     func(ctx context.Context, d time.Duration) error
	output    io.Writer
	now       func() time.Time

	state *batch.State

	mu          sync.RWMutex
	phase       Phase
	pass        int
	pool        *scheduler.Pool
	nextRetryAt time.Time
}

func New(lister document.Lister, runner Runner, cfg Config, opts ...Option) *Orchestrator {
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}

	o := &Orchestrator{
		lister:   lister,
		runner:   runner,
		cfg:      cfg,
		notifier: notifier.Nop{},
		sleep:    sleepContext,
		output:   os.Stdout,
		now:      time.Now,
		state:    batch.NewState(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run executes passes until no document is rate limited. Listing failures end the run with
// a *document.ListingError; an exhausted retry budget with a *RetriesExhaustedError.
func (o *Orchestrator) Run(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)
	start := o.now()

	fmt.Fprintln(o.output, "Starting process.")

	for pass := 1; ; pass++ {
		stats, err := o.RunPass(ctx, pass)
		if err != nil {
			o.setPhase(PhaseIdle)

			var listErr *document.ListingError
			if errors.As(err, &listErr) {
				o.telemetry.RecordPass("listing_failed")
				o.notify(ctx, fmt.Sprintf("Pass %d aborted: %v", pass, err))
			}

			return err
		}

		o.setPhase(PhaseEvaluating)

		if stats.RateLimited == 0 {
			o.setPhase(PhaseIdle)
			o.telemetry.RecordPass("done")

			fmt.Fprintln(o.output, "Done downloading!")
			logger.InfoContext(ctx, "all documents settled", "passes", pass, "downloaded", stats.Downloaded)
			o.notify(ctx, fmt.Sprintf("Done downloading after %d passes: %d downloaded, %d already downloaded, %d failed.",
				pass, stats.Downloaded, stats.AlreadyDownloaded, stats.Failed))

			return nil
		}

		if o.exhausted(pass, start) {
			o.setPhase(PhaseIdle)
			o.telemetry.RecordPass("exhausted")

			exhaustedErr := &RetriesExhaustedError{Passes: pass, RateLimited: stats.RateLimited}
			logger.ErrorContext(ctx, "giving up on rate limited documents", "passes", pass, "rate_limited", stats.RateLimited)
			o.notify(ctx, "Giving up: "+exhaustedErr.Error())

			return exhaustedErr
		}

		o.telemetry.RecordPass("rate_limited")

		next := o.now().Add(o.cfg.Cooldown)
		o.mu.Lock()
		o.phase = PhaseCoolingDown
		o.nextRetryAt = next
		o.mu.Unlock()

		fmt.Fprintf(o.output, "There are still %d documents blocked due to rate limiting. Trying again in %s.\n",
			stats.RateLimited, o.cfg.Cooldown)
		logger.InfoContext(ctx, "cooling down before next pass", "rate_limited", stats.RateLimited, "next_retry_at", next)
		o.notify(ctx, fmt.Sprintf("Pass %d finished with %d rate limited documents, retrying at %s.",
			pass, stats.RateLimited, next.Format(time.RFC3339)))

		if err := o.sleep(ctx, o.cfg.Cooldown); err != nil {
			o.setPhase(PhaseIdle)

			return err
		}
	}
}

func (o *Orchestrator) exhausted(pass int, start time.Time) bool {
	if o.cfg.MaxPasses > 0 && pass >= o.cfg.MaxPasses {
		return true
	}

	return o.cfg.MaxDuration > 0 && o.now().Add(o.cfg.Cooldown).Sub(start) > o.cfg.MaxDuration
}

// RunPass lists the documents and runs one job per document. Only a listing failure or a
// canceled ctx returns an error; job failures are counted in the stats.
func (o *Orchestrator) RunPass(ctx context.Context, pass int) (batch.Stats, error) {
	ctx = logctx.WithPass(ctx, pass)
	logger := logctx.LoggerFromContext(ctx)

	o.mu.Lock()
	o.pass = pass
	o.phase = PhaseListing
	o.nextRetryAt = time.Time{}
	o.pool = nil
	o.state.Reset(pass, 0)
	o.mu.Unlock()

	if o.sweeper != nil {
		if removed, err := o.sweeper.Sweep(ctx); err != nil {
			logger.WarnContext(ctx, "failed to sweep partial files", "err", err)
		} else if removed > 0 {
			logger.InfoContext(ctx, "swept stale partial files", "removed", removed)
		}
	}

	docs, err := o.lister.ListDocuments(ctx)
	if err != nil {
		var listErr *document.ListingError
		if !errors.As(err, &listErr) {
			err = &document.ListingError{Err: err}
		}

		logger.ErrorContext(ctx, "failed to list documents", "err", err)

		return batch.Stats{}, err
	}

	docs = dedupe(ctx, docs)

	fmt.Fprintln(o.output, "Document list loaded.")

	pool := scheduler.New(scheduler.Options{
		Capacity:   o.cfg.Capacity,
		Timeout:    o.cfg.JobTimeout,
		OnComplete: o.state.Record,
		OnTimeout: func(string) {
			o.state.RecordTimeout()
			o.telemetry.RecordJobTimeout()
		},
	})

	for _, doc := range docs {
		pool.Submit(scheduler.Job{
			Name: doc.ID,
			Run: func(ctx context.Context) document.Result {
				return o.runner.Run(ctx, doc)
			},
		})
	}

	o.state.SetTotal(len(docs))

	o.mu.Lock()
	o.phase = PhaseRunning
	o.pool = pool
	o.mu.Unlock()

	logger.InfoContext(ctx, "starting pass", "documents", len(docs))

	reporter := report.NewReporter(o.state, report.Options{
		Interval:  o.cfg.ReportInterval,
		Output:    o.output,
		Remaining: pool.Remaining,
	})
	reporter.Start(ctx)

	runErr := pool.Start(ctx)

	if runErr == nil {
		reporter.Finish("Task finished.")
	} else {
		reporter.Stop()
	}

	stats := o.state.Stats()
	stats.Remaining = pool.Remaining()

	return stats, runErr
}

// Status returns a consistent view of the current phase and counters.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	st := Status{
		Phase: o.phase,
		Pass:  o.pass,
		Stats: o.state.Stats(),
	}

	if o.pool != nil {
		st.Stats.Remaining = o.pool.Remaining()
	}

	if !o.nextRetryAt.IsZero() {
		next := o.nextRetryAt
		st.NextRetryAt = &next
	}

	return st
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.phase = p
}

func (o *Orchestrator) notify(ctx context.Context, content string) {
	if err := o.notifier.Notify(ctx, content); err != nil {
		logctx.LoggerFromContext(ctx).WarnContext(ctx, "failed to send notification", "err", err)
	}
}

// dedupe keeps the first occurrence of every document id and drops documents without one.
func dedupe(ctx context.Context, docs []*document.Document) []*document.Document {
	logger := logctx.LoggerFromContext(ctx)
	seen := make(map[string]struct{}, len(docs))
	out := docs[:0:0]

	for _, doc := range docs {
		if doc == nil || doc.ID == "" {
			logger.WarnContext(ctx, "dropping document without id")

			continue
		}

		if _, ok := seen[doc.ID]; ok {
			logger.WarnContext(ctx, "dropping duplicate document", "document_id", doc.ID)

			continue
		}

		seen[doc.ID] = struct{}{}
		out = append(out, doc)
	}

	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
