package render

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Factory creates a new strategy instance from shared configuration.
type Factory func(cfg StrategyConfig) Strategy

// StrategyConfig carries the backend settings strategies are built from.
type StrategyConfig struct {
	// CLICommand is the mermaid-cli binary name or path (default "mmdc").
	CLICommand string

	// WebCommand is the argv of the sidecar renderer process, e.g.
	// ["node", "/usr/lib/mermaid-export/bundle.js"].
	WebCommand []string

	// ReadyTimeout bounds the sidecar's initialization handshake.
	// Zero means DefaultReadyTimeout.
	ReadyTimeout time.Duration

	Logger hclog.Logger
}

func (c StrategyConfig) logger() hclog.Logger {
	if c.Logger == nil {
		return hclog.NewNullLogger()
	}
	return c.Logger
}

// Register adds a strategy factory to the registry. Called from init()
// functions in strategy implementations.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a strategy by name.
func Get(name string, cfg StrategyConfig) (Strategy, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy: %s (available: %v)", name, listLocked())
	}
	return factory(cfg), nil
}

// List returns all registered strategy names in sorted order.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return listLocked()
}

func listLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
