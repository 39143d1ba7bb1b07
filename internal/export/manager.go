package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/ankek/mermaid-export/internal/discover"
	"github.com/ankek/mermaid-export/internal/render"
)

// Mode selects which strategy the manager attempts, and whether it may
// fall back to the other.
type Mode string

const (
	// ModeAuto prefers the CLI backend when available and falls back to
	// the other strategy exactly once on a retryable failure.
	ModeAuto Mode = "auto"

	// ModeCLIOnly uses the CLI backend with no fallback.
	ModeCLIOnly Mode = "cli-only"

	// ModeWebOnly uses the web backend with no fallback.
	ModeWebOnly Mode = "web-only"
)

// ParseMode normalizes a user-supplied mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAuto, ModeCLIOnly, ModeWebOnly:
		return Mode(s), nil
	case "":
		return ModeAuto, nil
	}
	return "", fmt.Errorf("unknown strategy mode: %q (want auto, cli-only, or web-only)", s)
}

// Request describes one export: a diagram unit, render options, and where
// the image goes. OutputPath wins over OutputDir+Naming when set.
type Request struct {
	Unit       discover.Unit
	Options    render.Options
	OutputPath string
	OutputDir  string
	Naming     Naming
}

// Result describes a completed export.
type Result struct {
	OutputPath string
	Strategy   string // name of the strategy that produced the image
	Bytes      int
	Duration   time.Duration
}

// Manager owns the two rendering strategies and the attempt/fallback state
// machine: Idle → Probing → first attempt → done, or (auto mode, retryable
// failure) → second attempt exactly once → done or final failure.
type Manager struct {
	mode   Mode
	cli    render.Strategy
	web    render.Strategy
	logger hclog.Logger
}

// NewManager builds a manager from registered strategies.
func NewManager(mode Mode, cfg render.StrategyConfig) (*Manager, error) {
	cli, err := render.Get("cli", cfg)
	if err != nil {
		return nil, err
	}
	web, err := render.Get("web", cfg)
	if err != nil {
		return nil, err
	}
	return NewManagerWith(mode, cli, web, cfg.Logger), nil
}

// NewManagerWith builds a manager from explicit strategy instances.
// Used directly by tests to substitute fakes.
func NewManagerWith(mode Mode, cli, web render.Strategy, logger hclog.Logger) *Manager {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if mode == "" {
		mode = ModeAuto
	}
	return &Manager{mode: mode, cli: cli, web: web, logger: logger.Named("export")}
}

// Close releases both strategies' resources.
func (m *Manager) Close() error {
	var result *multierror.Error
	if err := m.cli.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := m.web.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// plan returns the ordered strategy attempts for a format under the
// configured mode. Under auto the CLI backend is probed first; if it is
// unavailable or cannot produce the format, the web backend leads.
func (m *Manager) plan(ctx context.Context, format render.Format) []render.Strategy {
	switch m.mode {
	case ModeCLIOnly:
		return []render.Strategy{m.cli}
	case ModeWebOnly:
		return []render.Strategy{m.web}
	}

	first, second := m.cli, m.web
	if !m.cli.Supports(format) || (m.cli.Available(ctx) != nil && m.web.Supports(format)) {
		first, second = m.web, m.cli
	}
	if !second.Supports(format) {
		return []render.Strategy{first}
	}
	return []render.Strategy{first, second}
}

// Export renders one diagram and writes the image to its output path.
// Under auto mode a retryable failure of the first strategy triggers the
// other strategy exactly once; on final failure both attempt errors are
// returned together and no partial output file remains.
func (m *Manager) Export(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	opts := req.Options
	if opts.Format == "" {
		opts.Format = render.FormatSVG
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		if req.OutputDir == "" {
			return nil, render.NewError(render.KindIO, "", fmt.Errorf("no output path or directory given"))
		}
		outputPath = ResolvePath(req.OutputDir, req.Unit, opts.Format, req.Naming)
	}

	var attempts *multierror.Error
	var data []byte
	var used string

	for _, strat := range m.plan(ctx, opts.Format) {
		if err := ctx.Err(); err != nil {
			attempts = multierror.Append(attempts, render.NewError(render.KindCancelled, strat.Name(), err))
			break
		}

		out, err := strat.Render(ctx, req.Unit.Text, opts)
		if err == nil {
			data = out
			used = strat.Name()
			break
		}

		m.logger.Warn("strategy failed", "strategy", strat.Name(), "source", req.Unit.Source, "error", err)
		attempts = multierror.Append(attempts, err)
		if !render.Fallbackable(err) {
			break
		}
	}

	if data == nil {
		return nil, fmt.Errorf("export failed for %s: %w", req.Unit.Source, attempts.ErrorOrNil())
	}

	if err := writeAtomic(outputPath, data); err != nil {
		return nil, render.NewError(render.KindIO, used, err)
	}

	m.logger.Debug("exported diagram",
		"source", req.Unit.Source, "output", outputPath,
		"strategy", used, "bytes", len(data))

	return &Result{
		OutputPath: outputPath,
		Strategy:   used,
		Bytes:      len(data),
		Duration:   time.Since(start),
	}, nil
}

// writeAtomic writes data to path via a temp file in the same directory
// followed by a rename, creating parent directories as needed. A failed
// write never leaves a partial file at the final path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".mermaid-export-*")
	if err != nil {
		return fmt.Errorf("failed to create temp output: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize output: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set output permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
