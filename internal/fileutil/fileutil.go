// Package fileutil provides the small filesystem helpers shared by the
// ingestion scan and the status surface.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// uploadMarker separates an upload-session prefix from the user-visible file
// name. Everything through the marker is dropped when deriving output names.
const uploadMarker = "_UPLOAD_"

// TargetName returns the output file name for a source path: the base name
// with any upload prefix stripped, plus a ".pdf" suffix.
func TargetName(sourcePath string) string {
	name := filepath.Base(sourcePath)
	if idx := strings.LastIndex(name, uploadMarker); idx >= 0 {
		name = name[idx+len(uploadMarker):]
	}
	return name + ".pdf"
}

// TargetPath derives the conversion output path for a source file.
func TargetPath(sourcePath, targetDir string) string {
	return filepath.Join(targetDir, TargetName(sourcePath))
}

// ListFiles returns the absolute paths of the regular files directly inside
// dir, sorted by name. Subdirectories are not descended into.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ReadableSize renders a byte count with binary units for table output.
func ReadableSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	value := float64(bytes)
	suffixes := []string{"KiB", "MiB", "GiB", "TiB"}
	idx := -1
	for value >= unit && idx < len(suffixes)-1 {
		value /= unit
		idx++
	}
	return fmt.Sprintf("%.1f %s", value, suffixes[idx])
}
