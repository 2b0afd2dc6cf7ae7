// Package logreader implements the Log-File Reader: reading xEdit's on-disk
// log after each run, with staleness detection and one IOException retry.
package logreader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// retryDelay is how long to wait before the single retry on a transient
// read failure (spec §4.9).
const retryDelay = 200 * time.Millisecond

// PathFor returns the expected log file path, sibling of the xEdit
// executable, named "<STEM_UPPERCASE>_log.txt".
func PathFor(xeditExePath string) string {
	stem := strings.TrimSuffix(filepath.Base(xeditExePath), filepath.Ext(xeditExePath))
	return filepath.Join(filepath.Dir(xeditExePath), strings.ToUpper(stem)+"_log.txt")
}

// Read returns the log file's lines, provided it isn't stale relative to
// processStartTime. A stale file (older than the run we're reading for) is
// reported as an error string rather than parsed, since it almost certainly
// belongs to a previous run. On a transient read failure, one retry is
// attempted after retryDelay; a second failure is returned as an error.
// Every error here is meant to be treated as non-fatal by the caller: stdout
// statistics remain available as a fallback.
func Read(xeditExePath string, processStartTime time.Time) ([]string, error) {
	path := PathFor(xeditExePath)

	lines, err := readLines(path)
	if err != nil {
		time.Sleep(retryDelay)
		lines, err = readLines(path)
		if err != nil {
			return nil, fmt.Errorf("logreader: read %s: %w", path, err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("logreader: stat %s: %w", path, err)
	}
	if info.ModTime().UTC().Before(processStartTime.UTC()) {
		return nil, fmt.Errorf("logreader: %s is stale (mtime %s precedes process start %s)",
			path, info.ModTime().UTC(), processStartTime.UTC())
	}

	return lines, nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}
