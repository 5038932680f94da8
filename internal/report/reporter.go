// Package report prints the periodic status block of a running pass.
package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/italolelis/d4sign_downloader/internal/batch"
	"github.com/italolelis/d4sign_downloader/internal/logctx"
)

const DefaultInterval = 15 * time.Second

// Source provides the counters to report.
type Source interface {
	Stats() batch.Stats
}

// Options configures the progress reporter.
type Options struct {
	// Interval is how often the status block is printed.
	// Default: 15s
	Interval time.Duration

	// Output is where the status block is written.
	// Default: os.Stdout
	Output io.Writer

	// Remaining returns the number of queued or running jobs.
	Remaining func() int
}

// Reporter prints a status block every Interval and once more on Stop.
type Reporter struct {
	source Source
	opts   Options

	mu      sync.Mutex
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
}

func NewReporter(source Source, opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	return &Reporter{
		source: source,
		opts:   opts,
		logger: slog.Default(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins printing in the background until Stop is called or ctx is done.
func (r *Reporter) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return
	}

	r.started = true
	r.logger = logctx.LoggerFromContext(ctx)

	go r.updateLoop(ctx)
}

// Stop stops the ticker and prints the final status block.
func (r *Reporter) Stop() {
	r.Finish("")
}

// Finish stops the ticker, waits for any in-flight print, then writes line (when not empty)
// followed by the final status block. Output is never written concurrently.
func (r *Reporter) Finish(line string) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()

		return
	}

	r.stopped = true
	started := r.started
	r.mu.Unlock()

	close(r.stopCh)

	if started {
		<-r.doneCh
	}

	if line != "" {
		fmt.Fprintln(r.opts.Output, line)
	}

	r.Print()
}

func (r *Reporter) updateLoop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Print()
		}
	}
}

// Print writes one status block with the current counters.
func (r *Reporter) Print() {
	stats := r.source.Stats()
	if r.opts.Remaining != nil {
		stats.Remaining = r.opts.Remaining()
	}

	fmt.Fprint(r.opts.Output, Format(stats))

	r.mu.Lock()
	logger := r.logger
	r.mu.Unlock()

	logger.Info("progress",
		"elapsed", stats.Elapsed.String(),
		"pass", stats.Pass,
		"total", stats.Total,
		"timeout", stats.Timeout,
		"remaining", stats.Remaining,
		"success", stats.Success,
		"failed", stats.Failed,
		"downloaded", stats.Downloaded,
		"already_downloaded", stats.AlreadyDownloaded,
		"canceled", stats.Canceled,
		"rate_limited", stats.RateLimited,
		"not_found", stats.NotFound,
	)
}

// Format renders the status block, one counter per line.
func Format(stats batch.Stats) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\nRunning for %.3fs.\n", stats.Elapsed.Seconds())
	fmt.Fprintf(&b, "Pass: %d\n", stats.Pass)
	fmt.Fprintf(&b, "TotalCount: %d\n", stats.Total)
	fmt.Fprintf(&b, "Timeout: %d\n", stats.Timeout)
	fmt.Fprintf(&b, "Remaining: %d\n", stats.Remaining)
	fmt.Fprintf(&b, "Success: %d\n", stats.Success)
	fmt.Fprintf(&b, "Failed: %d\n", stats.Failed)
	fmt.Fprintf(&b, "Downloaded: %d\n", stats.Downloaded)
	fmt.Fprintf(&b, "Already downloaded: %d\n", stats.AlreadyDownloaded)
	fmt.Fprintf(&b, "Canceled: %d\n", stats.Canceled)
	fmt.Fprintf(&b, "Rate Limited: %d\n", stats.RateLimited)
	fmt.Fprintf(&b, "Not found: %d\n", stats.NotFound)

	return b.String()
}
