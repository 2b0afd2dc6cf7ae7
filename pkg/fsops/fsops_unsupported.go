//go:build !linux && !darwin

package fsops

// syncDir is a no-op on platforms (notably Windows) without a directory-fsync
// primitive; the rename itself is still atomic there, it just isn't
// additionally flushed at the directory-entry level.
func syncDir(dir string) {}
