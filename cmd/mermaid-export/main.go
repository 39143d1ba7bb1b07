// mermaid-export renders Mermaid diagrams from .mmd files and Markdown
// code blocks into SVG/PNG/PDF/WebP/JPG images, using either the external
// mermaid-cli tool or a sidecar mermaid.js renderer.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
