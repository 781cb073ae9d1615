package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// defaultOutputPath names the archive after the codebase and the run time,
// in the current working directory (never inside the source tree).
func defaultOutputPath(root string, now time.Time) string {
	name := filepath.Base(filepath.Clean(root))
	return fmt.Sprintf("%s_archive_%s.xml", name, now.Format("20060102_150405"))
}

// writeFileAtomic writes data to path via a temp file in the same directory
// plus a rename, so a failed or cancelled run never leaves a partial archive.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".codebase2xml-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing archive: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("setting archive permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing archive: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming archive into place: %w", err)
	}
	return nil
}

// formatSize renders a byte count for CLI summaries.
func formatSize(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f TB", size)
}
