// Package process implements the Process Executor: launching a subprocess,
// streaming its stdout/stderr, enforcing a timeout and hang detection, and
// terminating it deterministically with a graceful→forced escalation
// ladder and post-kill handle-release verification.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/armon/circbuf"
	"github.com/mitchellh/go-linereader"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/autoqac-go/autoqac/cmdbuilder"
	"github.com/autoqac-go/autoqac/model"
)

// Defaults per spec §4.4.
const (
	DefaultTimeout      = 300 * time.Second
	DefaultGracePeriod  = 2 * time.Second
	DefaultCPUThreshold = 0.01

	hangSampleInterval  = 5 * time.Second
	hangSustainedWindow = 30 * time.Second
	killWaitBound       = 5 * time.Second
	pidPollInterval     = 50 * time.Millisecond

	circbufCaptureBytes = 1 << 20 // 1 MiB raw tee, for diagnostics only
)

// Options configures one Execute call.
type Options struct {
	Timeout          time.Duration
	GracePeriod      time.Duration
	CPUThreshold     float64
	HasVisibleWindow bool   // false for xEdit/MO2, which run with no window in QAC mode
	TargetFilePath   string // the plugin file whose handle release is verified post-kill
	OnProgressLine   func(line string)
	OnHangChanged    func(hanging bool)
	// OnStarted is invoked with the child's pid as soon as it is known, so a
	// caller (the Orchestrator) can register a handle to reach it from
	// stop_cleaning/force_stop_cleaning while Execute is still blocked
	// awaiting exit.
	OnStarted func(pid int)
}

// Result is the outcome of one Execute call.
type Result struct {
	ExitCode    int
	StdoutLines []string
	StderrLines []string
	TimedOut    bool
	Termination model.TerminationResult
}

// Executor enforces the process-wide "one xEdit at a time" policy via a
// counting semaphore (capacity 1 by contract; parallel cleaning is
// forbidden, not merely discouraged).
type Executor struct {
	slot   chan struct{}
	logger *slog.Logger
}

// NewExecutor creates an Executor with the given concurrent-subprocess
// capacity (always 1 in production; tests may use a larger value to prove
// the slot mechanism itself).
func NewExecutor(capacity int, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Executor{slot: make(chan struct{}, capacity), logger: logger}
}

// Execute launches inv, streams its output, and waits for exit (or timeout,
// or cancellation), applying the escalation ladder as needed. It acquires
// the executor's slot for the full subprocess lifetime.
func (e *Executor) Execute(ctx context.Context, inv cmdbuilder.Invocation, opts Options) (Result, error) {
	e.slot <- struct{}{}
	defer func() { <-e.slot }()

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.CPUThreshold <= 0 {
		opts.CPUThreshold = DefaultCPUThreshold
	}

	cmd := exec.Command(inv.Argv[0], inv.Argv[1:]...)
	cmd.Dir = inv.Dir
	// WaitDelay bounds how long Wait() blocks on drainer goroutines once the
	// main process has exited, so an orphaned grandchild holding the pipe
	// open can't hang the executor forever.
	cmd.WaitDelay = killWaitBound

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("process: stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("process: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("process: start %s: %w", inv.Argv[0], err)
	}
	configurePlatformProcessGroup(cmd)
	pid := cmd.Process.Pid
	if opts.OnStarted != nil {
		opts.OnStarted(pid)
	}

	var (
		mu          sync.Mutex
		stdoutLines []string
		stderrLines []string
	)
	stdoutCap, _ := circbuf.NewBuffer(circbufCaptureBytes)
	stderrCap, _ := circbuf.NewBuffer(circbufCaptureBytes)

	var wg sync.WaitGroup
	wg.Add(2)
	go drain(&wg, io.TeeReader(stdoutPipe, stdoutCap), &mu, &stdoutLines, opts.OnProgressLine)
	go drain(&wg, io.TeeReader(stderrPipe, stderrCap), &mu, &stderrLines, nil)

	hangCtx, cancelHang := context.WithCancel(context.Background())
	defer cancelHang()
	go e.watchForHang(hangCtx, pid, opts.CPUThreshold, opts.OnHangChanged)

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	timedOut := false
	var exitErr error
	exited := false

	select {
	case exitErr = <-waitErr:
		exited = true
	case <-time.After(opts.Timeout):
		timedOut = true
	case <-ctx.Done():
	}

	var termination model.TerminationResult
	switch {
	case exited:
		termination = model.TerminationResult{ExitedGracefully: true, HandleReleased: pollHandleReleased(opts.TargetFilePath)}
	case timedOut:
		// A real timeout escalates straight to force-kill, no grace period
		// (spec §4.4: "on expiry... apply the escalation ladder with
		// force_kill = true").
		termination, _ = e.terminate(pid, true, opts)
		select {
		case exitErr = <-waitErr:
		case <-time.After(killWaitBound):
		}
	default:
		// Plain cancellation. StopCleaning/ForceStopCleaning (control.go)
		// already issued their own Terminate(pid, force, opts) call directly
		// against this pid, honoring the two-click graceful-then-forced
		// escalation themselves; force-killing here too would race that call
		// and could mislabel a grace-period exit as force-killed. Wait for
		// the process to actually exit instead, with a backstop force-kill
		// past the same grace window in case cancellation happens without a
		// paired terminate call (e.g. a caller-supplied context deadline).
		select {
		case exitErr = <-waitErr:
			exited = true
			termination = model.TerminationResult{ExitedGracefully: true, HandleReleased: pollHandleReleased(opts.TargetFilePath)}
		case <-time.After(opts.GracePeriod):
			termination, _ = e.terminate(pid, true, opts)
			select {
			case exitErr = <-waitErr:
			case <-time.After(killWaitBound):
			}
		}
	}

	wg.Wait() // drainers must complete before Execute returns (spec §8)

	exitCode := 0
	var exitError *exec.ExitError
	if errors.As(exitErr, &exitError) {
		exitCode = exitError.ExitCode()
	} else if exitErr != nil && !errors.Is(exitErr, exec.ErrWaitDelay) {
		exitCode = -1
	}

	mu.Lock()
	out := Result{
		ExitCode:    exitCode,
		StdoutLines: append([]string(nil), stdoutLines...),
		StderrLines: append([]string(nil), stderrLines...),
		TimedOut:    timedOut,
		Termination: termination,
	}
	mu.Unlock()
	return out, nil
}

// Terminate implements the public escalation ladder for callers outside of
// Execute's own timeout handling — namely the Orchestrator's stop/force-stop
// protocol, which targets a subprocess it's tracking by pid.
func (e *Executor) Terminate(pid int, force bool, opts Options) (model.TerminationResult, error) {
	return e.terminate(pid, force, opts)
}

func (e *Executor) terminate(pid int, force bool, opts Options) (model.TerminationResult, error) {
	if !force {
		if opts.HasVisibleWindow {
			if err := requestGracefulClose(pid); err != nil {
				e.logger.Warn("graceful close request failed", "error", err)
			}
		}
		// No visible window: "close main window" has nothing to target; fall
		// straight through to waiting out the grace period (spec §4.4's
		// race guard).

		if waitForExit(pid, opts.GracePeriod) {
			return model.TerminationResult{ExitedGracefully: true, HandleReleased: pollHandleReleased(opts.TargetFilePath)}, nil
		}
		return model.TerminationResult{GracePeriodExpired: true}, nil
	}

	if err := killProcessTree(pid); err != nil && !errors.Is(err, errProcessAlreadyExited) {
		e.logger.Warn("kill process tree failed", "error", err)
	}
	waitForExit(pid, killWaitBound)

	return model.TerminationResult{
		ForceKilled:    true,
		HandleReleased: pollHandleReleased(opts.TargetFilePath),
	}, nil
}

var errProcessAlreadyExited = errors.New("process: already exited")

// waitForExit polls pid's liveness until it disappears or timeout elapses.
func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !processLive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pidPollInterval)
	}
}

func processLive(pid int) bool {
	exists, err := process.PidExists(int32(pid))
	if err != nil {
		return false
	}
	return exists
}

// watchForHang samples the child's cumulative CPU time every
// hangSampleInterval and flags a hang after hangSustainedWindow of
// sub-threshold CPU activity relative to wall-clock time.
func (e *Executor) watchForHang(ctx context.Context, pid int, cpuThreshold float64, onChange func(bool)) {
	if onChange == nil {
		return
	}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return
	}

	ticker := time.NewTicker(hangSampleInterval)
	defer ticker.Stop()

	lastCPU, err := cumulativeCPUTime(proc)
	if err != nil {
		return
	}
	lastWall := time.Now()
	var belowSince time.Time
	hanging := false

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cpu, err := cumulativeCPUTime(proc)
			if err != nil {
				return
			}
			dCPU := cpu - lastCPU
			dWall := now.Sub(lastWall).Seconds()
			lastCPU, lastWall = cpu, now

			ratio := 0.0
			if dWall > 0 {
				ratio = dCPU / dWall
			}

			if ratio < cpuThreshold {
				if belowSince.IsZero() {
					belowSince = now
				}
				if !hanging && now.Sub(belowSince) >= hangSustainedWindow {
					hanging = true
					onChange(true)
				}
			} else {
				belowSince = time.Time{}
				if hanging {
					hanging = false
					onChange(false)
				}
			}
		}
	}
}

func cumulativeCPUTime(p *process.Process) (float64, error) {
	times, err := p.Times()
	if err != nil {
		return 0, err
	}
	return times.User + times.System, nil
}

// drain reads lines from r via go-linereader, appending each to lines under
// mu and forwarding to onLine if set. It signals wg.Done on EOF, satisfying
// the "drainers complete before Execute returns" property.
func drain(wg *sync.WaitGroup, r io.Reader, mu *sync.Mutex, lines *[]string, onLine func(string)) {
	defer wg.Done()
	lr := linereader.New(r)
	for line := range lr.Ch {
		mu.Lock()
		*lines = append(*lines, line)
		mu.Unlock()
		if onLine != nil {
			onLine(line)
		}
	}
}
