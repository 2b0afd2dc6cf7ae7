//go:build darwin

package fsops

import "os"

// syncDir fsyncs a directory's inode on Darwin. See fsops_linux.go.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}
