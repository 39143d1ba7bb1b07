package validation

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestValidateOutputPath(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in existing directory", filepath.Join(dir, "out.svg"), false},
		{"nonexistent parent is fine", filepath.Join(dir, "a", "b", "out.svg"), false},
		{"empty path", "", true},
		{"path traversal", "../../etc/out.svg", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOutputPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateOutputPathParentIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateOutputPath(filepath.Join(blocker, "out.svg")); err == nil {
		t.Error("a file in the parent position should fail validation")
	}
}

func TestValidateOutputPathUnwritableDir(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0o755)

	if err := ValidateOutputPath(filepath.Join(dir, "out.svg")); err == nil {
		t.Error("read-only directory should fail validation")
	}
}

func TestValidateInputPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "diagram.mmd")
	if err := os.WriteFile(file, []byte("graph TD\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing file", file, false},
		{"existing directory", dir, false},
		{"missing path", filepath.Join(dir, "nope.mmd"), true},
		{"empty path", "", true},
		{"relative traversal", "../../../secrets", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInputPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateInputPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}
