package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/ankek/mermaid-export/internal/config"
	"github.com/ankek/mermaid-export/internal/export"
	"github.com/ankek/mermaid-export/internal/render"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	verbose    bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "mermaid-export",
		Short:         "Export Mermaid diagrams to image files",
		Long:          "mermaid-export discovers Mermaid diagrams in .mmd files and Markdown code blocks and renders them to SVG, PNG, PDF, WebP, or JPG.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	root.SetVersionTemplate(fmt.Sprintf("mermaid-export {{.Version}} (%s, %s/%s)\n",
		runtime.Version(), runtime.GOOS, runtime.GOARCH))

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to an HCL config file (default: ./"+config.DefaultFileName+" if present)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newExportCmd(flags),
		newBatchCmd(flags),
		newListCmd(flags),
		newDoctorCmd(flags),
	)
	return root
}

// logger builds the process logger at the requested verbosity.
func (f *rootFlags) logger() hclog.Logger {
	level := hclog.Warn
	if f.verbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:  "mermaid-export",
		Level: level,
	})
}

// loadConfig resolves the effective configuration for a command run.
func (f *rootFlags) loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(f.configPath)
}

// strategyConfig converts configuration into backend settings.
func strategyConfig(cfg *config.Config, logger hclog.Logger) render.StrategyConfig {
	return render.StrategyConfig{
		CLICommand:   cfg.Strategy.CLI.Command,
		WebCommand:   cfg.Strategy.Web.Command,
		ReadyTimeout: cfg.ReadyTimeout(),
		Logger:       logger,
	}
}

// newManager wires an export manager from config plus an optional mode
// override from the command line.
func newManager(cfg *config.Config, modeOverride string, logger hclog.Logger) (*export.Manager, error) {
	modeName := cfg.Strategy.Mode
	if modeOverride != "" {
		modeName = modeOverride
	}
	mode, err := export.ParseMode(modeName)
	if err != nil {
		return nil, err
	}
	return export.NewManager(mode, strategyConfig(cfg, logger))
}

// renderOptions builds base render options from config; per-command flags
// overlay on top.
func renderOptions(cfg *config.Config) render.Options {
	return render.Options{
		Theme:      cfg.Theme,
		Background: cfg.Background,
		Timeout:    cfg.RenderTimeout(),
	}
}

// parseFormats validates the requested output formats.
func parseFormats(names []string) ([]render.Format, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no output formats requested")
	}
	formats := make([]render.Format, 0, len(names))
	for _, name := range names {
		f, ok := render.ParseFormat(name)
		if !ok {
			return nil, fmt.Errorf("unknown format: %q (want one of %v)", name, render.KnownFormats)
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// humanDuration trims sub-second noise for progress display.
func humanDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
