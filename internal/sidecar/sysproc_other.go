//go:build !linux && !windows

package sidecar

import "syscall"

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
