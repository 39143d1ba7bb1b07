// Package batch turns discovered diagram units and requested formats into
// independent export jobs, runs them under a concurrency policy, and
// aggregates per-job results into a batch summary.
package batch

import (
	"sync"
	"time"
)

// Snapshot is an aggregate view of batch progress, updated after every job
// reaches a terminal status.
type Snapshot struct {
	Total     int
	Completed int // jobs in any terminal status
	Succeeded int
	Failed    int
	Skipped   int

	// Remaining estimates time left from the average duration of completed
	// jobs. Zero until at least one job has finished.
	Remaining time.Duration
}

// Reporter receives progress snapshots. Implementations must tolerate
// being called from multiple goroutines.
type Reporter interface {
	Report(Snapshot)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Snapshot)

func (f ReporterFunc) Report(s Snapshot) { f(s) }

// tracker accumulates per-job outcomes and computes the rolling estimate.
type tracker struct {
	mu        sync.Mutex
	total     int
	succeeded int
	failed    int
	skipped   int
	elapsed   time.Duration // summed durations of finished (non-skip) jobs
	reporter  Reporter
}

func newTracker(total int, reporter Reporter) *tracker {
	return &tracker{total: total, reporter: reporter}
}

// record registers one terminal job status and pushes a snapshot.
func (t *tracker) record(status Status, d time.Duration) {
	t.mu.Lock()
	switch status {
	case StatusSuccess:
		t.succeeded++
	case StatusFailed:
		t.failed++
	case StatusSkipped:
		t.skipped++
	}
	t.elapsed += d
	snap := t.snapshotLocked()
	t.mu.Unlock()

	if t.reporter != nil {
		t.reporter.Report(snap)
	}
}

func (t *tracker) snapshotLocked() Snapshot {
	completed := t.succeeded + t.failed + t.skipped
	snap := Snapshot{
		Total:     t.total,
		Completed: completed,
		Succeeded: t.succeeded,
		Failed:    t.failed,
		Skipped:   t.skipped,
	}
	ran := t.succeeded + t.failed
	if ran > 0 {
		avg := t.elapsed / time.Duration(ran)
		snap.Remaining = avg * time.Duration(t.total-completed)
	}
	return snap
}
