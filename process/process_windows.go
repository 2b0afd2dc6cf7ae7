//go:build windows

package process

import (
	"os/exec"
	"strconv"
	"syscall"
)

// configurePlatformProcessGroup puts the child in its own console process
// group (CREATE_NEW_PROCESS_GROUP) so a later CTRL_BREAK_EVENT or taskkill
// /T targets the whole tree without also hitting AutoQAC itself.
func configurePlatformProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// requestGracefulClose sends CTRL_BREAK_EVENT to the child's console
// process group, the nearest Windows equivalent to "close main window" for
// a console-subsystem tool launched without a visible window.
func requestGracefulClose(pid int) error {
	return syscall.GenerateConsoleCtrlEvent(syscall.CTRL_BREAK_EVENT, uint32(pid))
}

// killProcessTree shells out to taskkill /T /F, since Go's stdlib has no
// direct tree-kill primitive on Windows.
func killProcessTree(pid int) error {
	cmd := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid))
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 128 {
		return errProcessAlreadyExited
	}
	return err
}
