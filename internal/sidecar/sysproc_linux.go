//go:build linux

package sidecar

import "syscall"

// sysProcAttr makes the kernel SIGKILL the sidecar if the launcher dies
// without running its shutdown sequence.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGKILL,
	}
}
