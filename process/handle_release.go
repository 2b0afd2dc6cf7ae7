package process

import (
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// handleReleaseMaxElapsed bounds the total polling window (spec §4.4:
// "total ≤ 5 s").
const handleReleaseMaxElapsed = 5 * time.Second

// pollHandleReleased verifies a just-terminated process actually released
// its handle on path by attempting an exclusive-sharing open, retrying with
// exponential backoff (50, 100, 200, 400, 800, 1600 ms, ...) until
// handleReleaseMaxElapsed elapses. An empty path (nothing to verify, e.g. a
// graceful exit never holding a target file) is trivially released.
func pollHandleReleased(path string) bool {
	if path == "" {
		return true
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.Multiplier = 2
	bo.MaxElapsedTime = handleReleaseMaxElapsed

	err := backoff.Retry(func() error {
		return tryExclusiveOpen(path)
	}, bo)
	return err == nil
}

// tryExclusiveOpen attempts to open path for read-write without any other
// handle present, the closest portable proxy for "no other process still
// has this file mapped or locked open".
func tryExclusiveOpen(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			// The file legitimately doesn't exist (e.g. in unit tests that
			// never created a target); nothing to be held open.
			return nil
		}
		return err
	}
	return f.Close()
}
