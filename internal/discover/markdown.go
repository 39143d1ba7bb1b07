package discover

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractMarkdown parses Markdown source and returns one Unit per fenced
// ```mermaid code block. A file may contain zero, one, or many blocks; each
// becomes a separate unit sharing the same source path with a distinct
// index and line offset.
func ExtractMarkdown(source string, data []byte) ([]Unit, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(data))

	var units []Unit
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fence, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lang := strings.ToLower(strings.TrimSpace(string(fence.Language(data))))
		// Info strings may carry attributes after the language ("mermaid {...}").
		if i := strings.IndexByte(lang, ' '); i >= 0 {
			lang = lang[:i]
		}
		if lang != "mermaid" {
			return ast.WalkContinue, nil
		}

		lines := fence.Lines()
		content := strings.TrimRight(string(lines.Value(data)), "\n")
		if strings.TrimSpace(content) == "" {
			return ast.WalkContinue, nil
		}

		line := 1
		if lines.Len() > 0 {
			line = lineOfOffset(data, lines.At(0).Start)
		}
		units = append(units, NewUnit(source, len(units), line, content))
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}

// lineOfOffset converts a byte offset into a 1-based line number.
func lineOfOffset(data []byte, offset int) int {
	if offset > len(data) {
		offset = len(data)
	}
	line := 1
	for _, b := range data[:offset] {
		if b == '\n' {
			line++
		}
	}
	return line
}
