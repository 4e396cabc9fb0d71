package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates a file with throwaway content, making parent
// directories as needed.
func WriteFile(t testing.TB, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create parent directory: %v", err)
	}
	if err := os.WriteFile(path, []byte("test content"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}
