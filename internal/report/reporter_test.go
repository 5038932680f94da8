package report

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/italolelis/d4sign_downloader/internal/batch"
	"github.com/stretchr/testify/assert"
)

type staticSource struct {
	stats batch.Stats
}

func (s staticSource) Stats() batch.Stats {
	return s.stats
}

// syncBuffer guards a bytes.Buffer shared with the reporter goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestFormat(t *testing.T) {
	out := Format(batch.Stats{
		Pass:              1,
		Total:             3,
		Timeout:           0,
		Remaining:         0,
		Success:           2,
		Failed:            1,
		Downloaded:        1,
		AlreadyDownloaded: 0,
		Canceled:          1,
		RateLimited:       1,
		Elapsed:           1500 * time.Millisecond,
	})

	want := "\nRunning for 1.500s.\n" +
		"Pass: 1\n" +
		"TotalCount: 3\n" +
		"Timeout: 0\n" +
		"Remaining: 0\n" +
		"Success: 2\n" +
		"Failed: 1\n" +
		"Downloaded: 1\n" +
		"Already downloaded: 0\n" +
		"Canceled: 1\n" +
		"Rate Limited: 1\n" +
		"Not found: 0\n"

	assert.Equal(t, want, out)
}

func TestReporterStopPrintsFinalBlock(t *testing.T) {
	var out syncBuffer

	r := NewReporter(staticSource{batch.Stats{Total: 5}}, Options{
		Interval:  time.Hour,
		Output:    &out,
		Remaining: func() int { return 2 },
	})

	r.Start(context.Background())
	r.Stop()
	r.Stop()

	assert.Equal(t, 1, strings.Count(out.String(), "Running for"))
	assert.Contains(t, out.String(), "TotalCount: 5\n")
	assert.Contains(t, out.String(), "Remaining: 2\n")
}

func TestReporterTicks(t *testing.T) {
	var out syncBuffer

	r := NewReporter(staticSource{}, Options{Interval: 10 * time.Millisecond, Output: &out})
	r.Start(context.Background())

	assert.Eventually(t, func() bool {
		return strings.Count(out.String(), "Running for") >= 2
	}, time.Second, 5*time.Millisecond)

	r.Stop()
}

func TestReporterStopWithoutStart(t *testing.T) {
	var out syncBuffer

	NewReporter(staticSource{}, Options{Output: &out}).Stop()

	assert.Contains(t, out.String(), "Not found: 0")
}

func TestReporterFinishWritesLineBeforeFinalBlock(t *testing.T) {
	var out bytes.Buffer

	r := NewReporter(staticSource{}, Options{Interval: time.Millisecond, Output: &out})
	r.Start(context.Background())

	time.Sleep(5 * time.Millisecond)
	r.Finish("Task finished.")

	s := out.String()
	last := strings.LastIndex(s, "\nRunning for")

	assert.Equal(t, 1, strings.Count(s, "Task finished.\n"))
	assert.Less(t, strings.Index(s, "Task finished."), last)
	assert.True(t, strings.HasSuffix(s, "Not found: 0\n"))
}
