package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

func init() {
	Register("web", func(cfg StrategyConfig) Strategy { return NewWebStrategy(cfg) })
}

// WebStrategy renders diagrams through a long-lived sidecar process running
// the bundled mermaid.js renderer. The sidecar is reused across jobs to
// avoid re-initialization cost; the surface serializes access to it.
//
// Exchange per render: ready (once, at startup) → render → svg|error, and
// for raster formats a second convert → conversion_success|conversion_error
// leg where the sidecar draws the SVG into an offscreen canvas and returns
// base64 image bytes.
type WebStrategy struct {
	command      []string
	readyTimeout time.Duration
	logger       hclog.Logger

	mu       sync.Mutex
	surf     *surface
	probeErr error
	probed   bool
}

// NewWebStrategy builds the sidecar-renderer backend.
func NewWebStrategy(cfg StrategyConfig) *WebStrategy {
	return &WebStrategy{
		command:      cfg.WebCommand,
		readyTimeout: cfg.ReadyTimeout,
		logger:       cfg.logger().Named("web"),
	}
}

func (s *WebStrategy) Name() string { return "web" }

// Supports reports true for SVG and canvas-rasterizable formats. PDF
// requires the CLI backend.
func (s *WebStrategy) Supports(format Format) bool {
	switch format {
	case FormatSVG, FormatPNG, FormatJPG, FormatWebP:
		return true
	}
	return false
}

// Available starts the sidecar and completes the ready handshake. The
// outcome, success or failure, is cached for the session.
func (s *WebStrategy) Available(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureSurfaceLocked(ctx)
}

func (s *WebStrategy) ensureSurfaceLocked(ctx context.Context) error {
	if s.probed {
		return s.probeErr
	}
	s.probed = true

	surf, err := startSurface(ctx, s.command, s.readyTimeout, s.logger)
	if err != nil {
		// A failed startup is always "unavailable", even when the underlying
		// cause is the ready-handshake deadline.
		s.probeErr = &Error{Kind: KindUnavailable, Strategy: s.Name(), Err: err}
		return s.probeErr
	}
	s.surf = surf
	return nil
}

// Render performs the render handshake and, for raster formats, the
// follow-up convert exchange. Explicitly requested dimensions are applied
// host-side when the returned raster does not already match.
func (s *WebStrategy) Render(ctx context.Context, text string, opts Options) ([]byte, error) {
	format := opts.Format
	if format == "" {
		format = FormatSVG
	}
	if !s.Supports(format) {
		return nil, NewError(KindRenderFailure, s.Name(), fmt.Errorf("unsupported format: %s", format))
	}

	s.mu.Lock()
	if err := s.ensureSurfaceLocked(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	surf := s.surf
	s.mu.Unlock()

	renderCtx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	resp, err := surf.roundTrip(renderCtx, message{
		Type:       "render",
		Text:       text,
		Theme:      opts.Theme,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: opts.Background,
	})
	if err != nil {
		s.forget(surf)
		return nil, NewError(KindUnavailable, s.Name(), fmt.Errorf("render exchange failed: %w", err))
	}

	switch resp.Type {
	case "svg":
		// fall through below
	case "error":
		return nil, NewError(KindRenderFailure, s.Name(), renderError(resp))
	default:
		return nil, NewError(KindRenderFailure, s.Name(), fmt.Errorf("unexpected response type %q to render request", resp.Type))
	}

	svg := resp.SVG
	if strings.TrimSpace(svg) == "" {
		return nil, NewError(KindRenderFailure, s.Name(), fmt.Errorf("renderer returned empty SVG"))
	}
	if format == FormatSVG {
		return []byte(svg), nil
	}

	conv, err := surf.roundTrip(renderCtx, message{
		Type:       "convert",
		SVG:        svg,
		Format:     string(format),
		Width:      opts.Width,
		Height:     opts.Height,
		Scale:      opts.Scale,
		Theme:      opts.Theme,
		Background: opts.Background,
	})
	if err != nil {
		s.forget(surf)
		return nil, NewError(KindUnavailable, s.Name(), fmt.Errorf("convert exchange failed: %w", err))
	}

	switch conv.Type {
	case "conversion_success":
	case "conversion_error":
		return nil, NewError(KindRenderFailure, s.Name(), renderError(conv))
	default:
		return nil, NewError(KindRenderFailure, s.Name(), fmt.Errorf("unexpected response type %q to convert request", conv.Type))
	}

	data, err := base64.StdEncoding.DecodeString(conv.Data)
	if err != nil {
		return nil, NewError(KindRenderFailure, s.Name(), fmt.Errorf("failed to decode converted image: %w", err))
	}
	if len(data) == 0 {
		return nil, NewError(KindRenderFailure, s.Name(), fmt.Errorf("conversion returned no data"))
	}

	// The canvas rasterizes at its natural size; resize host-side when the
	// caller asked for explicit dimensions.
	if (opts.Width > 0 || opts.Height > 0) && (format == FormatPNG || format == FormatJPG) {
		resized, err := ResizeRaster(data, format, opts.Width, opts.Height)
		if err != nil {
			return nil, NewError(KindRenderFailure, s.Name(), fmt.Errorf("failed to resize raster: %w", err))
		}
		data = resized
	}
	return data, nil
}

// forget drops a surface that failed an exchange. roundTrip has already
// torn it down; clearing the probe state makes the next render spawn a
// fresh sidecar instead of reading a stale response off the dead one.
func (s *WebStrategy) forget(surf *surface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surf == surf {
		s.surf = nil
		s.probed = false
	}
}

// Close shuts the sidecar down.
func (s *WebStrategy) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surf == nil {
		return nil
	}
	err := s.surf.Close()
	s.surf = nil
	s.probed = false
	return err
}

// renderError folds a sidecar error message, including the partial diagram
// text it echoes back for diagnostics, into a single error value.
func renderError(msg message) error {
	if msg.Diagram != "" {
		snippet := msg.Diagram
		if len(snippet) > 120 {
			snippet = snippet[:120] + "..."
		}
		return fmt.Errorf("%s (diagram: %q)", msg.Message, snippet)
	}
	if msg.Message == "" {
		return fmt.Errorf("renderer reported an unspecified error")
	}
	return fmt.Errorf("%s", msg.Message)
}
