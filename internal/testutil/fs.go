package testutil

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// CreateTestCBZ writes a small CBZ archive with the given number of pages
// under dir and returns its path. Missing parent directories are created.
func CreateTestCBZ(t *testing.T, dir, name string, pages int) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create directory %s: %v", dir, err)
	}
	filePath := filepath.Join(dir, name)
	file, err := os.Create(filePath)
	if err != nil {
		t.Fatalf("Failed to create cbz file: %v", err)
	}
	defer file.Close()

	zipWriter := zip.NewWriter(file)
	for i := 1; i <= pages; i++ {
		w, err := zipWriter.Create(fmt.Sprintf("page_%03d.jpg", i))
		if err != nil {
			t.Fatalf("Failed to create page %d in zip: %v", i, err)
		}
		fmt.Fprintf(w, "page %d", i)
	}
	if err := zipWriter.Close(); err != nil {
		t.Fatalf("Failed to finalize zip: %v", err)
	}
	return filePath
}
