package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(prev))
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mermaid-export.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
theme      = "dark"
background = "transparent"
output_dir = "out/diagrams"
formats    = ["svg", "png"]
naming     = "sequential"

strategy {
  mode = "cli-only"

  cli {
    command         = "/opt/mermaid/mmdc"
    timeout_seconds = 60
  }

  web {
    command               = ["node", "renderer.js"]
    ready_timeout_seconds = 5
  }
}

discovery {
  max_depth       = 2
  include         = ["**/*.mmd"]
  exclude         = ["**/node_modules/**"]
  follow_symlinks = true
}

concurrency {
  policy       = "mixed"
  max_parallel = 8
}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dark", cfg.Theme)
	assert.Equal(t, "transparent", cfg.Background)
	assert.Equal(t, "out/diagrams", cfg.OutputDir)
	assert.Equal(t, []string{"svg", "png"}, cfg.Formats)
	assert.Equal(t, "sequential", cfg.Naming)

	assert.Equal(t, "cli-only", cfg.Strategy.Mode)
	assert.Equal(t, "/opt/mermaid/mmdc", cfg.Strategy.CLI.Command)
	assert.Equal(t, 60*time.Second, cfg.RenderTimeout())
	assert.Equal(t, []string{"node", "renderer.js"}, cfg.Strategy.Web.Command)
	assert.Equal(t, 5*time.Second, cfg.ReadyTimeout())

	require.NotNil(t, cfg.Discovery)
	require.NotNil(t, cfg.Discovery.MaxDepth)
	assert.Equal(t, 2, *cfg.Discovery.MaxDepth)
	assert.True(t, cfg.Discovery.FollowSymlinks)

	assert.Equal(t, "mixed", cfg.Concurrency.Policy)
	assert.Equal(t, 8, cfg.Concurrency.MaxParallel)
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
theme = "forest"

strategy {
  cli {
    command = "mmdc-local"
  }
}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "forest", cfg.Theme)
	assert.Equal(t, "white", cfg.Background)
	assert.Equal(t, []string{"svg"}, cfg.Formats)
	assert.Equal(t, "overwrite", cfg.Naming)

	assert.Equal(t, "auto", cfg.Strategy.Mode, "omitted mode falls back")
	assert.Equal(t, "mmdc-local", cfg.Strategy.CLI.Command)
	assert.Equal(t, 30*time.Second, cfg.RenderTimeout(), "omitted timeout falls back")
	assert.Equal(t, 10*time.Second, cfg.ReadyTimeout())

	assert.Nil(t, cfg.Discovery, "discovery block stays nil when absent")
	assert.Equal(t, 4, cfg.Concurrency.MaxParallel)
}

func TestLoadEnvFunction(t *testing.T) {
	t.Setenv("MERMAID_EXPORT_OUT", "/tmp/exports")
	path := writeConfig(t, `
output_dir = env("MERMAID_EXPORT_OUT")
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/exports", cfg.OutputDir)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.hcl"))
		assert.Error(t, err)
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := Load(writeConfig(t, "theme = \n"))
		assert.Error(t, err)
	})

	t.Run("unknown attribute", func(t *testing.T) {
		_, err := Load(writeConfig(t, `colour = "red"`))
		assert.Error(t, err)
	})
}

func TestLoadOrDefault(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		cfg, err := LoadOrDefault(writeConfig(t, `theme = "neutral"`))
		require.NoError(t, err)
		assert.Equal(t, "neutral", cfg.Theme)
	})

	t.Run("no file anywhere", func(t *testing.T) {
		chdir(t, t.TempDir())
		cfg, err := LoadOrDefault("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("default file in working directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFileName), []byte(`theme = "dark"`), 0o644))
		chdir(t, dir)

		cfg, err := LoadOrDefault("")
		require.NoError(t, err)
		assert.Equal(t, "dark", cfg.Theme)
	})
}
