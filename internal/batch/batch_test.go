package batch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankek/mermaid-export/internal/discover"
	"github.com/ankek/mermaid-export/internal/export"
	"github.com/ankek/mermaid-export/internal/render"
)

// fakeExporter routes Export calls to a function, letting tests script
// per-job outcomes and observe dispatch behavior.
type fakeExporter struct {
	fn func(ctx context.Context, req export.Request) (*export.Result, error)
}

func (f *fakeExporter) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	return f.fn(ctx, req)
}

func okExporter() *fakeExporter {
	return &fakeExporter{fn: func(_ context.Context, req export.Request) (*export.Result, error) {
		return &export.Result{
			OutputPath: req.Unit.Source + ".svg",
			Strategy:   "cli",
			Bytes:      10,
			Duration:   time.Millisecond,
		}, nil
	}}
}

func unit(source string) discover.Unit {
	return discover.Unit{Source: source, Text: "graph TD; A-->B;", Type: discover.TypeFlowchart}
}

func TestJobsCrossProduct(t *testing.T) {
	units := []discover.Unit{unit("a.mmd"), unit("b.mmd")}
	formats := []render.Format{render.FormatSVG, render.FormatPNG}

	jobs := Jobs(units, formats)
	require.Len(t, jobs, 4)

	// Unit-major, format-minor.
	assert.Equal(t, "a.mmd", jobs[0].Unit.Source)
	assert.Equal(t, render.FormatSVG, jobs[0].Format)
	assert.Equal(t, "a.mmd", jobs[1].Unit.Source)
	assert.Equal(t, render.FormatPNG, jobs[1].Format)
	assert.Equal(t, "b.mmd", jobs[2].Unit.Source)
}

func TestRunAllSucceed(t *testing.T) {
	jobs := Jobs([]discover.Unit{unit("a.mmd"), unit("b.mmd"), unit("c.mmd")}, []render.Format{render.FormatSVG})

	summary := Run(context.Background(), okExporter(), jobs, Options{Policy: PolicyParallel})
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, OutcomeSuccess, summary.Outcome())

	// Results line up with submission order regardless of interleaving.
	for i, r := range summary.Results {
		assert.Equal(t, jobs[i].Unit.Source, r.Job.Unit.Source, "result %d out of order", i)
		assert.Equal(t, StatusSuccess, r.Status)
	}
}

func TestRunPartialFailure(t *testing.T) {
	exp := &fakeExporter{fn: func(_ context.Context, req export.Request) (*export.Result, error) {
		if req.Unit.Source == "bad.mmd" {
			return nil, render.NewError(render.KindRenderFailure, "cli", errors.New("parse error"))
		}
		return &export.Result{OutputPath: req.Unit.Source + ".svg", Strategy: "cli"}, nil
	}}
	jobs := Jobs([]discover.Unit{unit("a.mmd"), unit("bad.mmd"), unit("c.mmd"), unit("d.mmd")}, []render.Format{render.FormatSVG})

	summary := Run(context.Background(), exp, jobs, Options{})
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, OutcomePartial, summary.Outcome())

	failed := summary.Results[1]
	assert.Equal(t, StatusFailed, failed.Status)
	assert.ErrorContains(t, failed.Err, "parse error")
}

func TestRunAllFail(t *testing.T) {
	exp := &fakeExporter{fn: func(_ context.Context, _ export.Request) (*export.Result, error) {
		return nil, render.NewError(render.KindRenderFailure, "cli", errors.New("boom"))
	}}
	jobs := Jobs([]discover.Unit{unit("a.mmd"), unit("b.mmd")}, []render.Format{render.FormatSVG})

	summary := Run(context.Background(), exp, jobs, Options{})
	assert.Equal(t, 0, summary.Succeeded)
	assert.Equal(t, OutcomeFailure, summary.Outcome())
}

func TestRunPreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := Jobs([]discover.Unit{unit("a.mmd"), unit("b.mmd")}, []render.Format{render.FormatSVG})
	summary := Run(ctx, okExporter(), jobs, Options{})

	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, OutcomeCancelled, summary.Outcome())
	for _, r := range summary.Results {
		assert.Equal(t, StatusSkipped, r.Status)
		assert.Equal(t, "cancelled", r.SkipReason)
	}
}

// Cancelling mid-batch lets the in-flight job finish while every job not
// yet dispatched is skipped.
func TestRunCancellationMidBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exp := &fakeExporter{fn: func(_ context.Context, req export.Request) (*export.Result, error) {
		if req.Unit.Source == "a.mmd" {
			cancel()
			time.Sleep(300 * time.Millisecond)
		}
		return &export.Result{OutputPath: req.Unit.Source + ".svg", Strategy: "cli"}, nil
	}}

	jobs := Jobs([]discover.Unit{unit("a.mmd"), unit("b.mmd"), unit("c.mmd")}, []render.Format{render.FormatSVG})
	summary := Run(ctx, exp, jobs, Options{Policy: PolicySequential})

	assert.Equal(t, StatusSuccess, summary.Results[0].Status, "in-flight job runs to completion")
	assert.Equal(t, StatusSkipped, summary.Results[1].Status)
	assert.Equal(t, StatusSkipped, summary.Results[2].Status)
	assert.Equal(t, OutcomePartial, summary.Outcome())
}

func TestRunCancelledExportIsSkipped(t *testing.T) {
	exp := &fakeExporter{fn: func(_ context.Context, _ export.Request) (*export.Result, error) {
		return nil, render.NewError(render.KindCancelled, "cli", context.Canceled)
	}}
	jobs := Jobs([]discover.Unit{unit("a.mmd")}, []render.Format{render.FormatSVG})

	summary := Run(context.Background(), exp, jobs, Options{})
	require.Len(t, summary.Results, 1)
	assert.Equal(t, StatusSkipped, summary.Results[0].Status)
	assert.Equal(t, "cancelled", summary.Results[0].SkipReason)
}

func TestRunSequentialNeverOverlaps(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0
	exp := &fakeExporter{fn: func(_ context.Context, req export.Request) (*export.Result, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return &export.Result{OutputPath: req.Unit.Source + ".svg"}, nil
	}}

	jobs := Jobs([]discover.Unit{unit("a.mmd"), unit("b.mmd"), unit("c.mmd")}, []render.Format{render.FormatSVG})
	summary := Run(context.Background(), exp, jobs, Options{Policy: PolicySequential, MaxParallel: 8})

	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, peak, "sequential policy must not overlap jobs")
}

// Under the mixed policy a complex diagram claims every slot, so nothing
// else runs alongside it.
func TestRunMixedPolicyIsolatesComplexJobs(t *testing.T) {
	heavy := unit("heavy.mmd")
	heavy.Complexity = discover.Complexity{Score: 60, Category: discover.ComplexityVeryComplex}

	var mu sync.Mutex
	running := 0
	heavyAlone := true
	exp := &fakeExporter{fn: func(_ context.Context, req export.Request) (*export.Result, error) {
		mu.Lock()
		running++
		if req.Unit.Source == "heavy.mmd" && running > 1 {
			heavyAlone = false
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return &export.Result{OutputPath: req.Unit.Source + ".svg"}, nil
	}}

	units := []discover.Unit{unit("a.mmd"), unit("b.mmd"), heavy, unit("c.mmd"), unit("d.mmd")}
	summary := Run(context.Background(), exp, Jobs(units, []render.Format{render.FormatSVG}), Options{
		Policy:      PolicyMixed,
		MaxParallel: 4,
	})

	assert.Equal(t, 5, summary.Succeeded)
	assert.True(t, heavyAlone, "complex job must run with no concurrent neighbors")
}

// Sources in different directories sharing a file stem must not resolve
// to the same output file.
func TestRunDisambiguatesCollidingStems(t *testing.T) {
	exp := &fakeExporter{fn: func(_ context.Context, req export.Request) (*export.Result, error) {
		return &export.Result{OutputPath: req.OutputPath, Strategy: "cli"}, nil
	}}

	units := []discover.Unit{unit("a/diagram.mmd"), unit("b/diagram.mmd")}
	summary := Run(context.Background(), exp, Jobs(units, []render.Format{render.FormatSVG}), Options{
		OutputDir: "out",
		Naming:    export.NamingOverwrite,
	})

	require.Equal(t, 2, summary.Succeeded)
	first := summary.Results[0].OutputPath
	second := summary.Results[1].OutputPath
	assert.Equal(t, filepath.Join("out", "diagram.svg"), first)
	assert.Equal(t, filepath.Join("out", "diagram-1.svg"), second)
	assert.NotEqual(t, first, second)
}

func TestRunReportsProgress(t *testing.T) {
	var mu sync.Mutex
	var snaps []Snapshot
	reporter := ReporterFunc(func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})

	jobs := Jobs([]discover.Unit{unit("a.mmd"), unit("b.mmd"), unit("c.mmd")}, []render.Format{render.FormatSVG})
	Run(context.Background(), okExporter(), jobs, Options{Reporter: reporter})

	require.Len(t, snaps, 3, "one snapshot per terminal job")

	// Reporter calls from concurrent jobs may arrive out of order; the
	// complete snapshot is guaranteed to exist, not to come last.
	var final Snapshot
	for _, s := range snaps {
		if s.Completed == 3 {
			final = s
		}
	}
	assert.Equal(t, 3, final.Total)
	assert.Equal(t, 3, final.Succeeded)
	assert.Equal(t, time.Duration(0), final.Remaining)
}

func TestSummaryOutcome(t *testing.T) {
	tests := []struct {
		name                       string
		succeeded, failed, skipped int
		expected                   Outcome
	}{
		{"all good", 3, 0, 0, OutcomeSuccess},
		{"one failed", 2, 1, 0, OutcomePartial},
		{"one skipped", 2, 0, 1, OutcomePartial},
		{"nothing succeeded", 0, 3, 0, OutcomeFailure},
		{"failures and skips without a success", 0, 2, 1, OutcomeFailure},
		{"all skipped is cancellation, not failure", 0, 0, 3, OutcomeCancelled},
		{"empty batch", 0, 0, 0, OutcomeSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Summary{Succeeded: tt.succeeded, Failed: tt.failed, Skipped: tt.skipped}
			assert.Equal(t, tt.expected, s.Outcome())
		})
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyParallel, p)

	for _, valid := range []string{"sequential", "parallel", "mixed"} {
		p, err := ParsePolicy(valid)
		require.NoError(t, err)
		assert.Equal(t, Policy(valid), p)
	}

	_, err = ParsePolicy("turbo")
	assert.Error(t, err)
}
