package render

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMmdc installs a shell script standing in for mermaid-cli and returns
// its path. The script answers --version and copies a canned SVG to the -o
// argument, mimicking a successful render.
func fakeMmdc(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "mmdc")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

const okScript = `#!/bin/sh
if [ "$1" = "--version" ]; then echo "10.9.1"; exit 0; fi
out=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-o" ]; then out="$arg"; fi
  prev="$arg"
done
printf '<svg xmlns="http://www.w3.org/2000/svg"><g/></svg>' > "$out"
`

const failScript = `#!/bin/sh
if [ "$1" = "--version" ]; then echo "10.9.1"; exit 0; fi
echo "Parse error on line 2" >&2
exit 1
`

const slowScript = `#!/bin/sh
if [ "$1" = "--version" ]; then echo "10.9.1"; exit 0; fi
sleep 5
`

func TestCLIStrategyRender(t *testing.T) {
	s := NewCLIStrategy(StrategyConfig{CLICommand: fakeMmdc(t, okScript)})
	defer s.Close()

	data, err := s.Render(context.Background(), "graph TD; A-->B;", Options{Format: FormatSVG})
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}

func TestCLIStrategyRenderFailure(t *testing.T) {
	s := NewCLIStrategy(StrategyConfig{CLICommand: fakeMmdc(t, failScript)})
	defer s.Close()

	_, err := s.Render(context.Background(), "graph TD; A-->B;", Options{Format: FormatSVG})
	require.Error(t, err)
	assert.Equal(t, KindRenderFailure, KindOf(err))
	assert.Contains(t, err.Error(), "Parse error")
}

func TestCLIStrategyTimeout(t *testing.T) {
	s := NewCLIStrategy(StrategyConfig{CLICommand: fakeMmdc(t, slowScript)})
	defer s.Close()

	_, err := s.Render(context.Background(), "graph TD; A-->B;", Options{
		Format:  FormatSVG,
		Timeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestCLIStrategyUnavailable(t *testing.T) {
	s := NewCLIStrategy(StrategyConfig{CLICommand: "mmdc-definitely-not-installed"})
	defer s.Close()

	err := s.Available(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindUnavailable, KindOf(err))

	// Render reports the same cached probe failure.
	_, err = s.Render(context.Background(), "graph TD; A-->B;", Options{Format: FormatSVG})
	assert.Equal(t, KindUnavailable, KindOf(err))
}

func TestCLIStrategySupportsEveryFormat(t *testing.T) {
	s := NewCLIStrategy(StrategyConfig{})
	for _, f := range KnownFormats {
		assert.True(t, s.Supports(f), "cli should support %s", f)
	}
}

func TestBuildArgs(t *testing.T) {
	s := NewCLIStrategy(StrategyConfig{})
	args := s.buildArgs("in.mmd", "out.pdf", Options{
		Format:     FormatPDF,
		Theme:      "dark",
		Background: "transparent",
		Width:      800,
		Height:     600,
		Scale:      2,
		PDFFit:     true,
		CSSFile:    "style.css",
		ConfigFile: "mermaid.json",
	})
	assert.Equal(t, []string{
		"-i", "in.mmd", "-o", "out.pdf",
		"-t", "dark", "-b", "transparent",
		"-w", "800", "-H", "600", "-s", "2",
		"--cssFile", "style.css", "--configFile", "mermaid.json",
		"--pdfFit",
	}, args)
}
