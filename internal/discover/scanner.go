package discover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-hclog"
)

// Options control a discovery scan.
type Options struct {
	// MaxDepth limits directory recursion. The root is depth 0; recursion
	// stops exactly at MaxDepth. Negative means unlimited.
	MaxDepth int

	// Include and Exclude are doublestar glob patterns matched against the
	// path relative to the scan root. An empty Include list matches the
	// default Mermaid sources (*.mmd, *.mermaid, *.md, *.markdown).
	Include []string
	Exclude []string

	// FollowSymlinks descends into symlinked directories when true.
	FollowSymlinks bool

	// Thresholds override the complexity category boundaries.
	Thresholds *Thresholds

	Logger hclog.Logger
}

var defaultInclude = []string{"**/*.mmd", "**/*.mermaid", "**/*.md", "**/*.markdown"}

// Scan walks root (a file or a directory) and extracts diagram units from
// every matching Mermaid source. Unreadable files are recorded as warnings,
// never a hard failure of the scan as a whole.
func Scan(ctx context.Context, root string, opts Options) ([]Unit, []Warning, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access scan root: %w", err)
	}

	var units []Unit
	var warnings []Warning

	if !info.IsDir() {
		u, err := extractFile(root, root, opts)
		if err != nil {
			warnings = append(warnings, Warning{Path: root, Err: err})
			return nil, warnings, nil
		}
		return u, nil, nil
	}

	err = walkDir(ctx, root, root, 0, opts, logger, &units, &warnings)
	if err != nil {
		return nil, warnings, err
	}
	return units, warnings, nil
}

// walkDir recurses manually so the depth limit and symlink policy are
// applied per directory rather than per path string.
func walkDir(ctx context.Context, root, dir string, depth int, opts Options, logger hclog.Logger, units *[]Unit, warnings *[]Warning) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		*warnings = append(*warnings, Warning{Path: dir, Err: err})
		return nil
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.Type()&os.ModeSymlink != 0 {
			if !opts.FollowSymlinks {
				continue
			}
			resolved, err := os.Stat(path)
			if err != nil {
				*warnings = append(*warnings, Warning{Path: path, Err: err})
				continue
			}
			if resolved.IsDir() {
				if opts.MaxDepth < 0 || depth+1 <= opts.MaxDepth {
					if err := walkDir(ctx, root, path, depth+1, opts, logger, units, warnings); err != nil {
						return err
					}
				}
				continue
			}
			// fall through to file handling below
		} else if entry.IsDir() {
			if opts.MaxDepth >= 0 && depth+1 > opts.MaxDepth {
				continue
			}
			if err := walkDir(ctx, root, path, depth+1, opts, logger, units, warnings); err != nil {
				return err
			}
			continue
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		if !matches(rel, opts) {
			continue
		}

		logger.Debug("extracting diagrams", "path", path)
		u, err := extractFile(path, path, opts)
		if err != nil {
			*warnings = append(*warnings, Warning{Path: path, Err: err})
			continue
		}
		*units = append(*units, u...)
	}
	return nil
}

// matches applies the include/exclude patterns to a root-relative path.
func matches(rel string, opts Options) bool {
	rel = filepath.ToSlash(rel)

	include := opts.Include
	if len(include) == 0 {
		include = defaultInclude
	}
	included := false
	for _, pat := range include {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, pat := range opts.Exclude {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return false
		}
	}
	return true
}

// extractFile reads one source file and extracts its diagram units.
// Bare .mmd/.mermaid files are a single unit; Markdown files may contain
// any number of fenced mermaid blocks.
func extractFile(source, path string, opts Options) ([]Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	return Extract(source, path, data, opts.Thresholds)
}

// Extract converts raw source bytes into diagram units based on the file
// extension of name.
func Extract(source, name string, data []byte, th *Thresholds) ([]Unit, error) {
	thresholds := DefaultThresholds
	if th != nil {
		thresholds = *th
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		units, err := ExtractMarkdown(source, data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse markdown: %w", err)
		}
		for i := range units {
			units[i].Complexity = EstimateComplexity(units[i].Text, thresholds)
		}
		return units, nil
	default:
		text := strings.TrimRight(string(data), "\n")
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		u := NewUnit(source, 0, 1, text)
		u.Complexity = EstimateComplexity(text, thresholds)
		return []Unit{u}, nil
	}
}
