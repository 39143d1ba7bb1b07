// Package validation guards the file paths the exporter reads from and
// writes to: it rejects path traversal in user-supplied paths and verifies
// that output locations are (or can be made) writable.
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateOutputPath validates a path an image will be written to. Parent
// directories that do not exist yet are acceptable; the exporter creates
// them. An existing parent must be a writable directory.
func ValidateOutputPath(outputPath string) error {
	if outputPath == "" {
		return fmt.Errorf("output path cannot be empty")
	}

	cleanPath := filepath.Clean(outputPath)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path traversal detected in output path: %s", outputPath)
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	dir := filepath.Dir(absPath)
	dirInfo, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			// Created on demand at write time.
			return nil
		}
		return fmt.Errorf("failed to access output directory: %w", err)
	}
	if !dirInfo.IsDir() {
		return fmt.Errorf("output path parent is not a directory: %s", dir)
	}

	// Probe writability by creating and removing a scratch file.
	testFile := filepath.Join(dir, ".mermaid-export-write-test")
	f, err := os.OpenFile(testFile, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("output directory is not writable: %s: %w", dir, err)
	}
	f.Close()
	os.Remove(testFile)

	return nil
}

// ValidateInputPath validates a discovery root: a diagram file or a
// directory to scan.
func ValidateInputPath(inputPath string) error {
	if inputPath == "" {
		return fmt.Errorf("input path cannot be empty")
	}

	cleanPath := filepath.Clean(inputPath)
	if strings.Contains(cleanPath, "..") && !filepath.IsAbs(inputPath) {
		return fmt.Errorf("potentially unsafe path detected: %s", inputPath)
	}

	if _, err := os.Stat(cleanPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input path does not exist: %s", cleanPath)
		}
		return fmt.Errorf("failed to access input path: %w", err)
	}
	return nil
}
