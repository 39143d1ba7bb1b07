// Package discover locates Mermaid diagram sources in files, directory
// trees, and remote URLs, and extracts per-diagram metadata used by the
// export pipeline to pick rendering strategies and batch policies.
package discover

import (
	"regexp"
	"strings"
)

// DiagramType is a best-effort label for a diagram, determined by matching
// the first meaningful line of the source against known Mermaid keywords.
type DiagramType string

const (
	TypeFlowchart DiagramType = "flowchart"
	TypeSequence  DiagramType = "sequence"
	TypeClass     DiagramType = "class"
	TypeState     DiagramType = "state"
	TypeER        DiagramType = "er"
	TypeGantt     DiagramType = "gantt"
	TypePie       DiagramType = "pie"
	TypeUnknown   DiagramType = "unknown"
)

// ComplexityCategory buckets a complexity score for scheduling decisions.
type ComplexityCategory string

const (
	ComplexitySimple      ComplexityCategory = "simple"
	ComplexityModerate    ComplexityCategory = "moderate"
	ComplexityComplex     ComplexityCategory = "complex"
	ComplexityVeryComplex ComplexityCategory = "very-complex"
)

// Complexity is a heuristic estimate of rendering cost. The score is bounded
// to [0, 100]; the exact weights and thresholds are tunable constants, not
// load-bearing logic.
type Complexity struct {
	Nodes    int
	Edges    int
	Nesting  int
	Score    int
	Category ComplexityCategory
}

// Thresholds control how a complexity score maps to a category.
type Thresholds struct {
	Moderate    int // scores below this are "simple"
	Complex     int // scores below this are "moderate"
	VeryComplex int // scores below this are "complex", at or above "very-complex"
}

// DefaultThresholds are the stock category boundaries.
var DefaultThresholds = Thresholds{Moderate: 10, Complex: 25, VeryComplex: 50}

// Unit is one Mermaid source block with its extracted text and metadata.
// A Markdown file with several fenced mermaid blocks yields several units
// sharing the same Source but distinct Index and offsets.
type Unit struct {
	Source     string // file path or URL the diagram came from
	Index      int    // block index within the source (0 for .mmd files)
	Line       int    // 1-based line of the block start in the source
	Text       string // raw diagram text
	Type       DiagramType
	Complexity Complexity
}

// Warning records a source that could not be read or parsed. Discovery
// never fails as a whole because of a single bad file.
type Warning struct {
	Path string
	Err  error
}

var firstWordRe = regexp.MustCompile(`^[A-Za-z]+`)

// DetectType guesses the diagram type from the first non-blank,
// non-directive line. Unrecognized diagrams are labeled TypeUnknown but are
// still exported.
func DetectType(text string) DiagramType {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		word := firstWordRe.FindString(line)
		switch word {
		case "graph", "flowchart":
			return TypeFlowchart
		case "sequenceDiagram":
			return TypeSequence
		case "classDiagram":
			return TypeClass
		case "stateDiagram":
			return TypeState
		case "erDiagram":
			return TypeER
		case "gantt":
			return TypeGantt
		case "pie":
			return TypePie
		default:
			return TypeUnknown
		}
	}
	return TypeUnknown
}

// edgeRe matches the common Mermaid edge operators across diagram types.
var edgeRe = regexp.MustCompile(`-->>|->>|-->|---|-\.->|==>|--x|--\)|\.\.>`)

// identRe extracts a leading identifier from a line fragment.
var identRe = regexp.MustCompile(`^[\s]*([A-Za-z_][A-Za-z0-9_]*)`)

// nesting keywords open a block closed by "end".
var nestingOpeners = map[string]bool{
	"subgraph": true, "loop": true, "alt": true, "opt": true,
	"par": true, "rect": true, "critical": true, "box": true,
}

// EstimateComplexity scores a diagram from its node count, edge count, and
// block nesting depth, then buckets the bounded score per the thresholds.
func EstimateComplexity(text string, th Thresholds) Complexity {
	nodes := make(map[string]bool)
	edges := 0
	depth, maxDepth := 0, 0

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "%%") {
			continue
		}

		word := firstWordRe.FindString(trimmed)
		if nestingOpeners[word] {
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
			continue
		}
		if word == "end" {
			if depth > 0 {
				depth--
			}
			continue
		}

		matches := edgeRe.FindAllStringIndex(trimmed, -1)
		edges += len(matches)

		// Every fragment between edge operators starts with a node id.
		for _, frag := range edgeRe.Split(trimmed, -1) {
			if m := identRe.FindStringSubmatch(frag); m != nil {
				nodes[m[1]] = true
			}
		}
	}

	score := len(nodes)*2 + edges*3 + maxDepth*5
	if score > 100 {
		score = 100
	}

	c := Complexity{
		Nodes:   len(nodes),
		Edges:   edges,
		Nesting: maxDepth,
		Score:   score,
	}
	switch {
	case score < th.Moderate:
		c.Category = ComplexitySimple
	case score < th.Complex:
		c.Category = ComplexityModerate
	case score < th.VeryComplex:
		c.Category = ComplexityComplex
	default:
		c.Category = ComplexityVeryComplex
	}
	return c
}

// NewUnit builds a Unit from raw diagram text, filling in derived metadata.
func NewUnit(source string, index, line int, text string) Unit {
	return Unit{
		Source:     source,
		Index:      index,
		Line:       line,
		Text:       text,
		Type:       DetectType(text),
		Complexity: EstimateComplexity(text, DefaultThresholds),
	}
}
