//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configurePlatformProcessGroup puts the child in its own process group so
// killProcessTree can signal the whole tree at once via a negative pid.
func configurePlatformProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// requestGracefulClose asks the process to exit cooperatively. xEdit/MO2
// never run with a visible window under QAC automation, but this path
// exists for the (untested-in-practice) visible-window case, where SIGTERM
// is the platform's nearest equivalent to "close main window".
func requestGracefulClose(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}

// killProcessTree sends SIGKILL to the whole process group rooted at pid.
func killProcessTree(pid int) error {
	err := syscall.Kill(-pid, syscall.SIGKILL)
	if err == syscall.ESRCH {
		return errProcessAlreadyExited
	}
	return err
}
