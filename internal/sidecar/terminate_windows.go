//go:build windows

package sidecar

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// stillActive is the exit code GetExitCodeProcess reports for a running process.
const stillActive = 259

// platformTerminator uses taskkill for termination and the process API for
// liveness.
type platformTerminator struct{}

// RequestTermination asks the process to close via taskkill without /F,
// which posts WM_CLOSE to its windows.
func (platformTerminator) RequestTermination(pid int) error {
	return taskkill(taskkillArgs(pid, false)...)
}

// Alive opens the process and checks whether it has an exit code yet.
func (platformTerminator) Alive(pid int) (bool, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			return false, nil
		}
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return true, nil
		}
		return false, err
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false, err
	}
	return code == stillActive, nil
}

// ForceTerminate kills the process tree rooted at pid.
func (platformTerminator) ForceTerminate(pid int) error {
	return taskkill(taskkillArgs(pid, true)...)
}

func taskkill(args ...string) error {
	cmd := exec.Command("taskkill", args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("taskkill %v: %w: %s", args, err, out)
	}
	return nil
}
