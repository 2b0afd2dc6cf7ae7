// Package fsops provides the durable on-disk write primitives the Config
// Store and Backup Manager share: atomic replace-via-rename for YAML/JSON
// documents, and a fsync'd file copy for plugin backups.
package fsops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// AtomicWriteFile writes data to a temp file in the same directory as path,
// fsyncs it, then atomically renames it over path. The target either holds
// its prior content or the new content at every instant — readers never
// observe a partial file (spec §4.2's atomic write protocol, and the
// round-trip/idempotence property in spec §8).
//
// Directory creation is idempotent: MkdirAll never fails on an existing dir.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fsops: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("fsops: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	// On any early return, best-effort clean up the temp file.
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("fsops: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsops: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fsops: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("fsops: chmod temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("fsops: rename into place: %w", err)
	}
	success = true

	// Best-effort: fsync the containing directory so the rename itself is
	// durable against a crash, where the platform supports it.
	syncDir(dir)
	return nil
}

// CopyFile copies src to dst, fsyncing the destination before returning.
// Returns the number of bytes copied. Used by the Backup Manager (spec §4.7)
// to snapshot a plugin before xEdit rewrites it.
func CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("fsops: open source %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("fsops: create destination directory: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("fsops: create destination %s: %w", dst, err)
	}
	defer out.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return n, fmt.Errorf("fsops: copy %s -> %s: %w", src, dst, err)
	}
	if err := out.Sync(); err != nil {
		return n, fmt.Errorf("fsops: fsync destination: %w", err)
	}
	return n, nil
}

// FileSize returns the size in bytes of the file at path. The Backup Manager
// does not call it; a BackupPluginEntry's FileSizeBytes comes from the byte
// count CopyFile returns.
func FileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
