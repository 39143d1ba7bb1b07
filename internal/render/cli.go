package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

func init() {
	Register("cli", func(cfg StrategyConfig) Strategy { return NewCLIStrategy(cfg) })
}

// probeTimeout bounds the one-time "--version" availability check.
const probeTimeout = 5 * time.Second

// CLIStrategy renders diagrams by invoking the external mermaid-cli binary
// (mmdc) as a subprocess. Arguments are always passed as explicit argv
// arrays, never through a shell.
type CLIStrategy struct {
	command string
	logger  hclog.Logger

	probeOnce sync.Once
	probeErr  error
}

// NewCLIStrategy builds the mermaid-cli backend.
func NewCLIStrategy(cfg StrategyConfig) *CLIStrategy {
	command := cfg.CLICommand
	if command == "" {
		command = "mmdc"
	}
	return &CLIStrategy{
		command: command,
		logger:  cfg.logger().Named("cli"),
	}
}

func (s *CLIStrategy) Name() string { return "cli" }

// Supports reports true for every format: mmdc handles SVG, rasters, and PDF.
func (s *CLIStrategy) Supports(format Format) bool {
	switch format {
	case FormatSVG, FormatPNG, FormatPDF, FormatWebP, FormatJPG:
		return true
	}
	return false
}

// Available probes whether the binary is resolvable and runnable. The
// result is cached for the session.
func (s *CLIStrategy) Available(ctx context.Context) error {
	s.probeOnce.Do(func() {
		if _, err := exec.LookPath(s.command); err != nil {
			s.probeErr = NewError(KindUnavailable, s.Name(), fmt.Errorf("%s not found in PATH: %w", s.command, err))
			return
		}

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()

		out, err := exec.CommandContext(probeCtx, s.command, "--version").CombinedOutput()
		if err != nil {
			s.probeErr = NewError(KindUnavailable, s.Name(), fmt.Errorf("%s --version failed: %s: %w", s.command, strings.TrimSpace(string(out)), err))
			return
		}
		s.logger.Debug("probe succeeded", "command", s.command, "version", strings.TrimSpace(string(out)))
	})
	return s.probeErr
}

// Render writes the diagram to a temp file, invokes mmdc, and reads back
// the produced image. On any failure the temp output is removed so no
// partial files survive.
func (s *CLIStrategy) Render(ctx context.Context, text string, opts Options) ([]byte, error) {
	if err := s.Available(ctx); err != nil {
		return nil, err
	}

	format := opts.Format
	if format == "" {
		format = FormatSVG
	}
	if !s.Supports(format) {
		return nil, NewError(KindRenderFailure, s.Name(), fmt.Errorf("unsupported format: %s", format))
	}

	tmpDir, err := os.MkdirTemp("", "mermaid-export-*")
	if err != nil {
		return nil, NewError(KindIO, s.Name(), fmt.Errorf("failed to create temp dir: %w", err))
	}
	defer os.RemoveAll(tmpDir)

	inputFile := filepath.Join(tmpDir, "input.mmd")
	outputFile := filepath.Join(tmpDir, "output."+string(format))

	if err := os.WriteFile(inputFile, []byte(text), 0o644); err != nil {
		return nil, NewError(KindIO, s.Name(), fmt.Errorf("failed to write diagram: %w", err))
	}

	args := s.buildArgs(inputFile, outputFile, opts)

	runCtx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.command, args...)
	cmd.Stdin = nil
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger.Debug("invoking renderer", "command", s.command, "args", args)
	err = cmd.Run()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, NewError(KindTimeout, s.Name(), fmt.Errorf("renderer exceeded %s", opts.timeout()))
		}
		if _, ok := err.(*exec.ExitError); ok {
			return nil, NewError(KindRenderFailure, s.Name(), fmt.Errorf("renderer exited with error: %s: %w", condense(stderr.String()), err))
		}
		return nil, NewError(KindUnavailable, s.Name(), fmt.Errorf("failed to start renderer: %w", err))
	}

	data, err := os.ReadFile(outputFile)
	if err != nil {
		return nil, NewError(KindRenderFailure, s.Name(), fmt.Errorf("renderer produced no output: %s: %w", condense(stderr.String()), err))
	}
	if len(data) == 0 {
		return nil, NewError(KindRenderFailure, s.Name(), fmt.Errorf("renderer produced empty output"))
	}
	return data, nil
}

func (s *CLIStrategy) Close() error { return nil }

// buildArgs constructs the mmdc argument vector from render options.
func (s *CLIStrategy) buildArgs(input, output string, opts Options) []string {
	args := []string{"-i", input, "-o", output}
	if opts.Theme != "" {
		args = append(args, "-t", opts.Theme)
	}
	if opts.Background != "" {
		args = append(args, "-b", opts.Background)
	}
	if opts.Width > 0 {
		args = append(args, "-w", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		args = append(args, "-H", strconv.Itoa(opts.Height))
	}
	if opts.Scale > 0 {
		args = append(args, "-s", strconv.FormatFloat(opts.Scale, 'f', -1, 64))
	}
	if opts.CSSFile != "" {
		args = append(args, "--cssFile", opts.CSSFile)
	}
	if opts.ConfigFile != "" {
		args = append(args, "--configFile", opts.ConfigFile)
	}
	if opts.Format == FormatPDF && opts.PDFFit {
		args = append(args, "--pdfFit")
	}
	return args
}

// condense flattens renderer stderr into a single diagnostic line.
func condense(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", " | ")
	if len(s) > 500 {
		s = s[:500] + "..."
	}
	if s == "" {
		s = "(no stderr)"
	}
	return s
}
