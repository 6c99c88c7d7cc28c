package scheduler

import (
	"sync"

	"redditdl/pkg/downloader"
	"redditdl/pkg/metrics"
)

// Totals is a plain snapshot of run counters
type Totals struct {
	Processed  int
	Downloaded int
	Skipped    int
	Errors     int
}

// Add folds one listing outcome into t
func (t *Totals) Add(o downloader.Outcome) {
	t.Processed += o.Processed
	t.Downloaded += o.Downloaded
	t.Skipped += o.Skipped
	t.Errors += o.Errors
}

// Plus returns the sum of t and o
func (t Totals) Plus(o Totals) Totals {
	return Totals{
		Processed:  t.Processed + o.Processed,
		Downloaded: t.Downloaded + o.Downloaded,
		Skipped:    t.Skipped + o.Skipped,
		Errors:     t.Errors + o.Errors,
	}
}

// Stats aggregates job totals for a run. The lock is held only for the merge.
type Stats struct {
	mu      sync.Mutex
	totals  Totals
	metrics *metrics.Metrics
}

// NewStats creates an empty aggregate that mirrors merges into m (may be nil)
func NewStats(m *metrics.Metrics) *Stats {
	return &Stats{metrics: m}
}

// Merge adds one finished job's totals
func (s *Stats) Merge(list string, t Totals) {
	s.mu.Lock()
	s.totals = s.totals.Plus(t)
	s.mu.Unlock()

	s.metrics.RecordStats(list, t.Processed, t.Downloaded, t.Skipped, t.Errors)
}

// Snapshot returns the current totals
func (s *Stats) Snapshot() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}
