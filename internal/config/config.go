// Package config loads the tool's HCL configuration file into an immutable
// Config value. All orchestration code receives configuration explicitly;
// nothing reads ambient mutable state.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// DefaultFileName is looked up in the working directory when no explicit
// config path is given.
const DefaultFileName = "mermaid-export.hcl"

// Config is the decoded configuration. Zero-valued fields fall back to the
// defaults in Default().
type Config struct {
	Theme      string   `hcl:"theme,optional"`
	Background string   `hcl:"background,optional"`
	OutputDir  string   `hcl:"output_dir,optional"`
	Formats    []string `hcl:"formats,optional"`
	Naming     string   `hcl:"naming,optional"`

	Strategy    *StrategyBlock    `hcl:"strategy,block"`
	Discovery   *DiscoveryBlock   `hcl:"discovery,block"`
	Concurrency *ConcurrencyBlock `hcl:"concurrency,block"`
}

// StrategyBlock configures the rendering backends.
type StrategyBlock struct {
	Mode string    `hcl:"mode,optional"` // auto, cli-only, web-only
	CLI  *CLIBlock `hcl:"cli,block"`
	Web  *WebBlock `hcl:"web,block"`
}

// CLIBlock configures the mermaid-cli backend.
type CLIBlock struct {
	Command        string `hcl:"command,optional"`
	TimeoutSeconds int    `hcl:"timeout_seconds,optional"`
}

// WebBlock configures the sidecar renderer backend.
type WebBlock struct {
	Command             []string `hcl:"command,optional"`
	ReadyTimeoutSeconds int      `hcl:"ready_timeout_seconds,optional"`
}

// DiscoveryBlock configures source scanning.
type DiscoveryBlock struct {
	MaxDepth       *int     `hcl:"max_depth,optional"`
	Include        []string `hcl:"include,optional"`
	Exclude        []string `hcl:"exclude,optional"`
	FollowSymlinks bool     `hcl:"follow_symlinks,optional"`
}

// ConcurrencyBlock configures batch dispatch.
type ConcurrencyBlock struct {
	Policy      string `hcl:"policy,optional"`
	MaxParallel int    `hcl:"max_parallel,optional"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Theme:      "default",
		Background: "white",
		OutputDir:  ".",
		Formats:    []string{"svg"},
		Naming:     "overwrite",
		Strategy: &StrategyBlock{
			Mode: "auto",
			CLI:  &CLIBlock{Command: "mmdc", TimeoutSeconds: 30},
			Web:  &WebBlock{ReadyTimeoutSeconds: 10},
		},
		Concurrency: &ConcurrencyBlock{Policy: "parallel", MaxParallel: 4},
	}
}

// envFunc exposes env("NAME") to config expressions, so paths and
// credentials can come from the environment without shell templating.
var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env": envFunc,
		},
	}
}

// Load parses an HCL configuration file and overlays it on the defaults.
func Load(path string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config: %s", diags.Error())
	}

	cfg := Default()
	if diags := gohcl.DecodeBody(file.Body, evalContext(), cfg); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config: %s", diags.Error())
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadOrDefault loads path if given, otherwise DefaultFileName if it
// exists, otherwise the stock configuration.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultFileName); err == nil {
		return Load(DefaultFileName)
	}
	return Default(), nil
}

// applyDefaults fills blocks and fields a config file left out, so callers
// never need nil checks.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Theme == "" {
		c.Theme = d.Theme
	}
	if c.Background == "" {
		c.Background = d.Background
	}
	if c.OutputDir == "" {
		c.OutputDir = d.OutputDir
	}
	if len(c.Formats) == 0 {
		c.Formats = d.Formats
	}
	if c.Naming == "" {
		c.Naming = d.Naming
	}
	if c.Strategy == nil {
		c.Strategy = d.Strategy
	} else {
		if c.Strategy.Mode == "" {
			c.Strategy.Mode = d.Strategy.Mode
		}
		if c.Strategy.CLI == nil {
			c.Strategy.CLI = d.Strategy.CLI
		} else {
			if c.Strategy.CLI.Command == "" {
				c.Strategy.CLI.Command = d.Strategy.CLI.Command
			}
			if c.Strategy.CLI.TimeoutSeconds <= 0 {
				c.Strategy.CLI.TimeoutSeconds = d.Strategy.CLI.TimeoutSeconds
			}
		}
		if c.Strategy.Web == nil {
			c.Strategy.Web = d.Strategy.Web
		} else if c.Strategy.Web.ReadyTimeoutSeconds <= 0 {
			c.Strategy.Web.ReadyTimeoutSeconds = d.Strategy.Web.ReadyTimeoutSeconds
		}
	}
	if c.Concurrency == nil {
		c.Concurrency = d.Concurrency
	} else {
		if c.Concurrency.Policy == "" {
			c.Concurrency.Policy = d.Concurrency.Policy
		}
		if c.Concurrency.MaxParallel <= 0 {
			c.Concurrency.MaxParallel = d.Concurrency.MaxParallel
		}
	}
}

// RenderTimeout returns the per-render deadline.
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Strategy.CLI.TimeoutSeconds) * time.Second
}

// ReadyTimeout returns the sidecar handshake deadline.
func (c *Config) ReadyTimeout() time.Duration {
	return time.Duration(c.Strategy.Web.ReadyTimeoutSeconds) * time.Second
}
