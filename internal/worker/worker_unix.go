//go:build !windows

package worker

import (
	"os/exec"
	"syscall"
)

func initCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcess(cmd *exec.Cmd, signal syscall.Signal) error {
	pid := cmd.Process.Pid
	if pgid, err := syscall.Getpgid(pid); err == nil {
		// negative pid signals the whole process group
		return syscall.Kill(-pgid, signal)
	}

	return cmd.Process.Signal(signal)
}
