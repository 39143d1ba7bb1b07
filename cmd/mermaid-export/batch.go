package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ankek/mermaid-export/internal/batch"
	"github.com/ankek/mermaid-export/internal/discover"
	"github.com/ankek/mermaid-export/internal/export"
	"github.com/ankek/mermaid-export/internal/validation"
)

// newBatchCmd exports every diagram found under a directory tree.
func newBatchCmd(flags *rootFlags) *cobra.Command {
	var (
		formats        []string
		outDir         string
		maxDepth       int
		include        []string
		exclude        []string
		followSymlinks bool
		policy         string
		maxParallel    int
		mode           string
		naming         string
		details        bool
	)

	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Discover and export all diagrams under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]
			logger := flags.logger()

			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if err := validation.ValidateInputPath(root); err != nil {
				return err
			}

			scanOpts := discover.Options{
				MaxDepth:       maxDepth,
				Include:        include,
				Exclude:        exclude,
				FollowSymlinks: followSymlinks,
				Logger:         logger,
			}
			if cfg.Discovery != nil {
				if !cmd.Flags().Changed("max-depth") && cfg.Discovery.MaxDepth != nil {
					scanOpts.MaxDepth = *cfg.Discovery.MaxDepth
				}
				if len(include) == 0 {
					scanOpts.Include = cfg.Discovery.Include
				}
				if len(exclude) == 0 {
					scanOpts.Exclude = cfg.Discovery.Exclude
				}
				if !cmd.Flags().Changed("follow-symlinks") {
					scanOpts.FollowSymlinks = cfg.Discovery.FollowSymlinks
				}
			}

			// Ctrl-C stops dispatching new jobs; in-flight jobs finish.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			units, warnings, err := discover.Scan(ctx, root, scanOpts)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: skipped %s: %v\n", w.Path, w.Err)
			}
			if len(units) == 0 {
				return fmt.Errorf("no Mermaid diagrams found under %s", root)
			}

			formatList, err := parseFormats(formats)
			if err != nil {
				return err
			}
			namingStrategy, err := export.ParseNaming(pick(naming, cfg.Naming))
			if err != nil {
				return err
			}
			policyName := policy
			if policyName == "" && cfg.Concurrency != nil {
				policyName = cfg.Concurrency.Policy
			}
			batchPolicy, err := batch.ParsePolicy(policyName)
			if err != nil {
				return err
			}

			mgr, err := newManager(cfg, mode, logger)
			if err != nil {
				return err
			}
			defer mgr.Close()

			jobs := batch.Jobs(units, formatList)
			fmt.Fprintf(cmd.OutOrStdout(), "Exporting %d diagrams × %d formats = %d jobs\n",
				len(units), len(formatList), len(jobs))

			reporter := batch.ReporterFunc(func(s batch.Snapshot) {
				eta := ""
				if s.Remaining > 0 {
					eta = ", eta " + humanDuration(s.Remaining)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "\r[%d/%d] %d ok, %d failed, %d skipped%s   ",
					s.Completed, s.Total, s.Succeeded, s.Failed, s.Skipped, eta)
			})

			parallel := maxParallel
			if !cmd.Flags().Changed("max-parallel") && cfg.Concurrency != nil {
				parallel = cfg.Concurrency.MaxParallel
			}

			summary := batch.Run(ctx, mgr, jobs, batch.Options{
				Policy:      batchPolicy,
				MaxParallel: parallel,
				OutputDir:   pick(outDir, cfg.OutputDir),
				Naming:      namingStrategy,
				Render:      renderOptions(cfg),
				Reporter:    reporter,
				Logger:      logger,
			})
			fmt.Fprintln(cmd.ErrOrStderr())

			printSummary(cmd, summary, details)
			switch summary.Outcome() {
			case batch.OutcomeFailure:
				return fmt.Errorf("batch failed: no job succeeded")
			case batch.OutcomeCancelled:
				return fmt.Errorf("batch cancelled before any job completed")
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&formats, "formats", "f", []string{"svg"}, "output formats (svg, png, pdf, webp, jpg)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "output directory (default from config)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", -1, "directory recursion limit (root is depth 0, negative for unlimited)")
	cmd.Flags().StringSliceVar(&include, "include", nil, "include glob patterns")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "exclude glob patterns")
	cmd.Flags().BoolVar(&followSymlinks, "follow-symlinks", false, "descend into symlinked directories")
	cmd.Flags().StringVar(&policy, "policy", "", "concurrency policy (sequential, parallel, mixed)")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", batch.DefaultMaxParallel, "maximum concurrent jobs")
	cmd.Flags().StringVar(&mode, "mode", "", "strategy mode (auto, cli-only, web-only)")
	cmd.Flags().StringVar(&naming, "naming", "", "output naming (overwrite, sequential, slug)")
	cmd.Flags().BoolVar(&details, "details", false, "print a per-job report after the summary")
	return cmd
}

// printSummary writes the aggregate result and, on request, a per-job
// error report. Raw stack traces are never the primary message.
func printSummary(cmd *cobra.Command, s *batch.Summary, details bool) {
	fmt.Fprintf(cmd.OutOrStdout(), "Batch %s: %d/%d succeeded, %d failed, %d skipped in %s\n",
		s.Outcome(), s.Succeeded, s.Total(), s.Failed, s.Skipped, humanDuration(s.Duration))

	if !details {
		return
	}
	for _, r := range s.Results {
		switch r.Status {
		case batch.StatusSuccess:
			fmt.Fprintf(cmd.OutOrStdout(), "  ok      %s [%s] -> %s (via %s)\n",
				r.Job.Unit.Source, r.Job.Format, r.OutputPath, r.Strategy)
		case batch.StatusFailed:
			fmt.Fprintf(cmd.OutOrStdout(), "  failed  %s [%s]: %v\n",
				r.Job.Unit.Source, r.Job.Format, r.Err)
		case batch.StatusSkipped:
			fmt.Fprintf(cmd.OutOrStdout(), "  skipped %s [%s]: %s\n",
				r.Job.Unit.Source, r.Job.Format, r.SkipReason)
		}
	}
}
