// Package export selects a rendering strategy, handles fallback between
// the CLI and web backends, and writes rendered images to disk.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ankek/mermaid-export/internal/discover"
	"github.com/ankek/mermaid-export/internal/render"
)

// Naming picks how output file names are derived and how collisions with
// existing files are handled.
type Naming string

const (
	// NamingOverwrite reuses the same name on every run; re-exporting
	// replaces the previous file.
	NamingOverwrite Naming = "overwrite"

	// NamingSequential appends the next free numeric suffix, so repeated
	// runs produce distinct files.
	NamingSequential Naming = "sequential"

	// NamingSlug builds a descriptive name from the source stem, the
	// diagram type, and the block index.
	NamingSlug Naming = "slug"
)

// ParseNaming normalizes a user-supplied naming strategy name.
func ParseNaming(s string) (Naming, error) {
	switch Naming(s) {
	case NamingOverwrite, NamingSequential, NamingSlug:
		return Naming(s), nil
	case "":
		return NamingOverwrite, nil
	}
	return "", fmt.Errorf("unknown naming strategy: %q (want overwrite, sequential, or slug)", s)
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases s and collapses runs of non-alphanumerics to hyphens.
func slugify(s string) string {
	s = slugRe.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// stem returns the source file name without directory or extension. URLs
// reduce to the final path segment.
func stem(source string) string {
	base := filepath.Base(strings.TrimRight(source, "/"))
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." {
		base = "diagram"
	}
	return base
}

// ResolvePath derives the output path for one (unit, format) pair inside
// dir. For NamingSequential the returned path is the first that does not
// already exist.
func ResolvePath(dir string, unit discover.Unit, format render.Format, naming Naming) string {
	return ResolvePathAvoiding(dir, unit, format, naming, nil)
}

// ResolvePathAvoiding is ResolvePath with an extra set of paths to treat
// as occupied. Callers resolving a whole batch up front pass the paths
// already handed out, so sources sharing a stem (a/diagram.mmd and
// b/diagram.mmd) never resolve to the same file.
func ResolvePathAvoiding(dir string, unit discover.Unit, format render.Format, naming Naming, taken map[string]bool) string {
	var base string
	switch naming {
	case NamingSlug:
		parts := []string{slugify(stem(unit.Source)), string(unit.Type)}
		if unit.Index > 0 {
			parts = append(parts, fmt.Sprintf("%d", unit.Index+1))
		}
		base = strings.Join(parts, "-")
	default:
		base = stem(unit.Source)
		if unit.Index > 0 {
			base = fmt.Sprintf("%s-%d", base, unit.Index+1)
		}
	}

	occupied := func(path string) bool {
		if taken[path] {
			return true
		}
		if naming != NamingSequential {
			return false
		}
		_, err := os.Stat(path)
		return !os.IsNotExist(err)
	}

	path := filepath.Join(dir, base+"."+string(format))
	if !occupied(path) {
		return path
	}
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s-%d.%s", base, i, format))
		if !occupied(candidate) {
			return candidate
		}
	}
}
