package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/semaphore"

	"github.com/ankek/mermaid-export/internal/discover"
	"github.com/ankek/mermaid-export/internal/export"
	"github.com/ankek/mermaid-export/internal/render"
)

// Policy controls how jobs are dispatched.
type Policy string

const (
	// PolicySequential runs jobs one at a time.
	PolicySequential Policy = "sequential"

	// PolicyParallel runs up to MaxParallel jobs concurrently.
	PolicyParallel Policy = "parallel"

	// PolicyMixed runs simple and moderate diagrams concurrently while
	// complex ones take the whole semaphore, bounding peak memory.
	PolicyMixed Policy = "mixed"
)

// ParsePolicy normalizes a user-supplied policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicySequential, PolicyParallel, PolicyMixed:
		return Policy(s), nil
	case "":
		return PolicyParallel, nil
	}
	return "", fmt.Errorf("unknown concurrency policy: %q (want sequential, parallel, or mixed)", s)
}

// DefaultMaxParallel bounds concurrent jobs when the caller does not.
const DefaultMaxParallel = 4

// Status is a job's terminal state.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Job is one (diagram unit × output format) export.
type Job struct {
	Unit   discover.Unit
	Format render.Format
}

// JobResult is the outcome of one job, reported in submission order.
type JobResult struct {
	Job        Job
	Status     Status
	OutputPath string
	Strategy   string
	Duration   time.Duration
	Err        error
	SkipReason string
}

// Outcome classifies a finished batch from its aggregate counts.
type Outcome string

const (
	OutcomeSuccess   Outcome = "fully successful"
	OutcomePartial   Outcome = "partially successful"
	OutcomeFailure   Outcome = "fully failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Summary is the final report of a batch run. Results are always in
// original job-submission order regardless of dispatch interleaving.
type Summary struct {
	Results   []JobResult
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// Total returns the number of jobs in the batch.
func (s *Summary) Total() int { return len(s.Results) }

// Outcome reports whether the batch fully succeeded, partially succeeded,
// fully failed, or was cancelled before anything ran. A batch with any
// failure is never reported as a success; a batch where every job was
// skipped is never blamed as failed.
func (s *Summary) Outcome() Outcome {
	finished := s.Succeeded + s.Failed + s.Skipped
	switch {
	case finished == 0:
		return OutcomeSuccess // empty batch: nothing to fail
	case s.Succeeded == 0 && s.Failed == 0:
		return OutcomeCancelled
	case s.Succeeded == 0:
		return OutcomeFailure
	case s.Failed > 0 || s.Skipped > 0:
		return OutcomePartial
	default:
		return OutcomeSuccess
	}
}

// Options configure a batch run.
type Options struct {
	Policy      Policy
	MaxParallel int
	OutputDir   string
	Naming      export.Naming
	Render      render.Options // per-job format is filled from the job
	Reporter    Reporter
	Logger      hclog.Logger
}

// Exporter is the slice of the export manager the orchestrator needs.
type Exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

// Jobs builds the |units| × |formats| job cross-product in a stable order:
// unit-major, format-minor.
func Jobs(units []discover.Unit, formats []render.Format) []Job {
	jobs := make([]Job, 0, len(units)*len(formats))
	for _, u := range units {
		for _, f := range formats {
			jobs = append(jobs, Job{Unit: u, Format: f})
		}
	}
	return jobs
}

// Run executes the jobs against the export manager. One job's failure
// never aborts the batch. Cancellation is checked between dispatches: jobs
// already in flight finish, jobs not yet started are marked skipped.
func Run(ctx context.Context, mgr Exporter, jobs []Job, opts Options) *Summary {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("batch")

	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	if opts.Policy == PolicySequential {
		maxParallel = 1
	}

	start := time.Now()
	results := make([]JobResult, len(jobs))
	track := newTracker(len(jobs), opts.Reporter)
	outputs := resolveOutputs(jobs, opts)

	sem := semaphore.NewWeighted(int64(maxParallel))
	var wg sync.WaitGroup

	// Cancellation is advisory for not-yet-started jobs and cooperative for
	// in-flight ones: dispatched jobs run on a detached context so they can
	// finish (their own render timeouts still apply).
	jobCtx := context.WithoutCancel(ctx)

	cancelled := false
	for i, job := range jobs {
		// Cancellation gate: once the context is done, no new job starts.
		if cancelled || ctx.Err() != nil {
			cancelled = true
			results[i] = JobResult{Job: job, Status: StatusSkipped, SkipReason: "cancelled"}
			track.record(StatusSkipped, 0)
			continue
		}

		weight := jobWeight(job, opts.Policy, maxParallel)
		if err := sem.Acquire(ctx, weight); err != nil {
			// Context died while waiting for a slot; this job never started.
			cancelled = true
			results[i] = JobResult{Job: job, Status: StatusSkipped, SkipReason: "cancelled"}
			track.record(StatusSkipped, 0)
			continue
		}

		wg.Add(1)
		go func(i int, job Job, weight int64) {
			defer wg.Done()
			defer sem.Release(weight)

			results[i] = runJob(jobCtx, mgr, job, outputs[i], opts)
			track.record(results[i].Status, results[i].Duration)

			if results[i].Err != nil {
				logger.Warn("job failed",
					"source", job.Unit.Source, "format", job.Format, "error", results[i].Err)
			}
		}(i, job, weight)
	}
	wg.Wait()

	summary := &Summary{Results: results, Duration: time.Since(start)}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			summary.Succeeded++
		case StatusFailed:
			summary.Failed++
		case StatusSkipped:
			summary.Skipped++
		}
	}

	logger.Info("batch finished",
		"outcome", summary.Outcome(), "total", summary.Total(),
		"succeeded", summary.Succeeded, "failed", summary.Failed,
		"skipped", summary.Skipped, "duration", summary.Duration)
	return summary
}

// jobWeight sizes a job's semaphore claim. Under the mixed policy complex
// diagrams claim every slot, so they run alone while small jobs interleave.
func jobWeight(job Job, policy Policy, maxParallel int) int64 {
	if policy != PolicyMixed {
		return 1
	}
	switch job.Unit.Complexity.Category {
	case discover.ComplexityComplex, discover.ComplexityVeryComplex:
		return int64(maxParallel)
	}
	return 1
}

// resolveOutputs assigns every job its output path before any dispatch.
// Serial up-front resolution keeps sources with colliding stems apart and
// leaves sequential naming nothing to race over once jobs run in parallel.
func resolveOutputs(jobs []Job, opts Options) []string {
	outputs := make([]string, len(jobs))
	taken := make(map[string]bool, len(jobs))
	for i, job := range jobs {
		path := export.ResolvePathAvoiding(opts.OutputDir, job.Unit, job.Format, opts.Naming, taken)
		taken[path] = true
		outputs[i] = path
	}
	return outputs
}

// runJob executes a single export and folds the outcome into a JobResult.
// Errors are captured on the result, never propagated to the batch loop.
func runJob(ctx context.Context, mgr Exporter, job Job, output string, opts Options) JobResult {
	renderOpts := opts.Render
	renderOpts.Format = job.Format

	res, err := mgr.Export(ctx, export.Request{
		Unit:       job.Unit,
		Options:    renderOpts,
		OutputPath: output,
	})
	if err != nil {
		if render.KindOf(err) == render.KindCancelled {
			return JobResult{Job: job, Status: StatusSkipped, SkipReason: "cancelled", Err: err}
		}
		return JobResult{Job: job, Status: StatusFailed, Err: err}
	}
	return JobResult{
		Job:        job,
		Status:     StatusSuccess,
		OutputPath: res.OutputPath,
		Strategy:   res.Strategy,
		Duration:   res.Duration,
	}
}
