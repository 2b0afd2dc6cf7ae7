//go:build linux

package fsops

import "os"

// syncDir fsyncs a directory's inode, so a preceding rename into it survives
// a crash. Linux (and most POSIX systems) support fsync on a directory fd;
// see the corresponding no-op in fsops_unsupported.go for platforms that
// don't (notably Windows, where xEdit itself runs).
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}
