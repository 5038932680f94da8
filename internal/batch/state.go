// Package batch holds the mutable state of one orchestrator pass and its aggregate counters.
package batch

import (
	"sync"
	"time"

	"github.com/italolelis/d4sign_downloader/internal/document"
)

// Stats aggregates the results of a pass.
type Stats struct {
	Pass              int           `json:"pass"`
	Total             int           `json:"total"`
	Timeout           int           `json:"timeout"`
	Remaining         int           `json:"remaining"`
	Success           int           `json:"success"`
	Failed            int           `json:"failed"`
	Downloaded        int           `json:"downloaded"`
	AlreadyDownloaded int           `json:"already_downloaded"`
	Canceled          int           `json:"canceled"`
	RateLimited       int           `json:"rate_limited"`
	NotFound          int           `json:"not_found"`
	Elapsed           time.Duration `json:"-"`
	ElapsedSeconds    float64       `json:"elapsed_seconds"`
}

// Snapshot is a consistent copy of State.
type Snapshot struct {
	Pass      int
	Total     int
	Timeouts  int
	StartedAt time.Time
	Results   []document.Result
}

// Stats computes the aggregate counters at now.
func (s Snapshot) Stats(now time.Time) Stats {
	stats := Stats{
		Pass:    s.Pass,
		Total:   s.Total,
		Timeout: s.Timeouts,
	}

	if !s.StartedAt.IsZero() {
		stats.Elapsed = now.Sub(s.StartedAt)
		stats.ElapsedSeconds = stats.Elapsed.Seconds()
	}

	for _, r := range s.Results {
		if r.Success {
			stats.Success++
		} else {
			stats.Failed++
		}

		switch r.Status {
		case document.StatusDownloaded:
			stats.Downloaded++
		case document.StatusAlreadyDownloaded:
			stats.AlreadyDownloaded++
		case document.StatusCanceled:
			stats.Canceled++
		case document.StatusRateLimited:
			stats.RateLimited++
		case document.StatusNotFound:
			stats.NotFound++
		}
	}

	return stats
}

// State is safe for concurrent use: jobs record into it while the reporter snapshots it.
type State struct {
	mu sync.RWMutex

	pass      int
	total     int
	timeouts  int
	startedAt time.Time
	results   []document.Result

	now func() time.Time
}

func NewState() *State {
	return &State{now: time.Now}
}

// Reset starts a new pass, discarding the previous pass's results.
func (s *State) Reset(pass, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pass = pass
	s.total = total
	s.timeouts = 0
	s.startedAt = s.now()
	s.results = make([]document.Result, 0, total)
}

// SetTotal sets the number of jobs of the current pass once the listing is known.
func (s *State) SetTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total = total
}

func (s *State) Record(result document.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, result)
}

func (s *State) RecordTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timeouts++
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]document.Result, len(s.results))
	copy(results, s.results)

	return Snapshot{
		Pass:      s.pass,
		Total:     s.total,
		Timeouts:  s.timeouts,
		StartedAt: s.startedAt,
		Results:   results,
	}
}

// Stats is Snapshot().Stats at the current time.
func (s *State) Stats() Stats {
	return s.Snapshot().Stats(s.now())
}
