package orchestrator

import (
	"context"
	"sync"

	"github.com/autoqac-go/autoqac/model"
	"github.com/autoqac-go/autoqac/process"
)

// control holds everything stop_cleaning/force_stop_cleaning need to reach
// into a running session from another goroutine: the cancellation handle and
// the currently-active subprocess's pid, both written by the session loop
// under one mutex and read under the same mutex by the stop paths (spec §5's
// "shared-resource policy"). A zero-value control is an idle one: no session
// running, stop calls are no-ops.
type control struct {
	mu sync.Mutex

	cancel   context.CancelFunc
	hasPID   bool
	pid      int
	termOpts process.Options

	stopRequested bool
}

func (c *control) beginSession(cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = cancel
	c.hasPID = false
	c.stopRequested = false
}

// endSession resets the handle in the guaranteed cleanup region the spec
// requires on every exit path, so a stop call arriving just after the loop
// exits finds nothing to terminate.
func (c *control) endSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = nil
	c.hasPID = false
	c.stopRequested = false
}

func (c *control) registerProcess(pid int, opts process.Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pid = pid
	c.hasPID = true
	c.termOpts = opts
}

func (c *control) clearProcess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasPID = false
}

// StopCleaning implements the two-click stop protocol (spec §4.3). The first
// call requests cooperative exit of the foreground subprocess, if any; a
// second call made while the first is still pending escalates immediately to
// force_stop_cleaning.
func (o *Orchestrator) StopCleaning() (model.TerminationResult, error) {
	o.ctl.mu.Lock()
	alreadyRequested := o.ctl.stopRequested
	o.ctl.stopRequested = true
	cancel := o.ctl.cancel
	hasPID := o.ctl.hasPID
	pid := o.ctl.pid
	opts := o.ctl.termOpts
	o.ctl.mu.Unlock()

	if alreadyRequested {
		return o.ForceStopCleaning()
	}

	if cancel != nil {
		cancel()
	}
	if !hasPID {
		return model.TerminationResult{}, nil
	}
	return o.exec.Terminate(pid, false, opts)
}

// ForceStopCleaning cancels the session handle (tolerating one already
// cancelled or disposed) and force-kills the foreground subprocess tree, if
// any.
func (o *Orchestrator) ForceStopCleaning() (model.TerminationResult, error) {
	o.ctl.mu.Lock()
	cancel := o.ctl.cancel
	hasPID := o.ctl.hasPID
	pid := o.ctl.pid
	opts := o.ctl.termOpts
	o.ctl.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !hasPID {
		return model.TerminationResult{}, nil
	}
	return o.exec.Terminate(pid, true, opts)
}
