// Package backup archives and restores the platform session directory
// so operators can move credential caches between hosts.
package backup

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// sessionFile reports whether name is a platform credential cache file.
// Only these are worth backing up; everything else in the directory is
// regenerated on demand.
func sessionFile(name string) bool {
	return strings.HasSuffix(name, ".session") || strings.HasSuffix(name, ".session-journal")
}

// Archive writes a zip of every session file in dir to w. Nested
// directories are not descended into; the platform keeps its caches
// flat. Returns the number of files archived.
func Archive(dir string, w io.Writer) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read session directory: %w", err)
	}

	zw := zip.NewWriter(w)
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !sessionFile(entry.Name()) {
			continue
		}
		if err := addFile(zw, dir, entry.Name()); err != nil {
			zw.Close()
			return count, err
		}
		count++
	}
	if err := zw.Close(); err != nil {
		return count, fmt.Errorf("finalize archive: %w", err)
	}
	return count, nil
}

func addFile(zw *zip.Writer, dir, name string) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s to archive: %w", name, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("write %s to archive: %w", name, err)
	}
	return nil
}

// Restore extracts session files from the zip in r into dir, creating
// it if needed. Entries that are not session files, or whose names
// would escape dir, are skipped rather than treated as errors, so a
// doctored archive cannot plant files elsewhere. Returns the number of
// files restored.
func Restore(r io.ReaderAt, size int64, dir string) (int, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return 0, fmt.Errorf("create session directory: %w", err)
	}

	count := 0
	for _, entry := range zr.File {
		name := filepath.Base(entry.Name)
		if entry.FileInfo().IsDir() || !sessionFile(name) {
			continue
		}
		// Base() already strips directories; reject anything that
		// still resolves outside dir.
		target := filepath.Join(dir, name)
		if rel, err := filepath.Rel(dir, target); err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if err := extractFile(entry, target); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func extractFile(entry *zip.File, target string) error {
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open %s in archive: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	return nil
}
