// Package render defines the rendering strategy abstraction and its two
// implementations: an external mermaid-cli subprocess and a long-lived
// sidecar renderer process driven over a message channel.
package render

import (
	"context"
	"time"
)

// Format is an output image format.
type Format string

const (
	FormatSVG  Format = "svg"
	FormatPNG  Format = "png"
	FormatPDF  Format = "pdf"
	FormatWebP Format = "webp"
	FormatJPG  Format = "jpg"
)

// KnownFormats lists every format the tool can produce.
var KnownFormats = []Format{FormatSVG, FormatPNG, FormatPDF, FormatWebP, FormatJPG}

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case FormatSVG, FormatPNG, FormatPDF, FormatWebP, FormatJPG:
		return Format(s), true
	case "jpeg":
		return FormatJPG, true
	}
	return "", false
}

// Options carry per-render parameters. A zero value renders with the
// renderer's defaults.
type Options struct {
	Format     Format
	Theme      string // default, dark, forest, neutral
	Width      int    // explicit output width in px, 0 for natural size
	Height     int    // explicit output height in px, 0 for natural size
	Background string // CSS color or "transparent"
	Scale      float64
	PDFFit     bool   // fit PDF page to the diagram (CLI strategy only)
	CSSFile    string // extra stylesheet passed to the CLI renderer
	ConfigFile string // mermaid config JSON passed to the CLI renderer

	// Timeout bounds a single render. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds a single render operation when Options.Timeout is
// unset.
const DefaultTimeout = 30 * time.Second

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

// Strategy is one interchangeable rendering backend.
type Strategy interface {
	// Name identifies the strategy ("cli", "web").
	Name() string

	// Available probes whether the backend can run in this environment.
	// The result is cached for the session by the first call.
	Available(ctx context.Context) error

	// Supports reports whether the backend can produce the format.
	Supports(format Format) bool

	// Render produces image bytes for the diagram text. Failures are
	// returned as *Error values carrying the failure kind.
	Render(ctx context.Context, text string, opts Options) ([]byte, error)

	// Close releases backend resources (sidecar processes, temp state).
	Close() error
}
