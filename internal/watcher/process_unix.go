//go:build !windows

package watcher

import (
	"os"
	"os/exec"
	"syscall"
)

func defaultShell() []string {
	return []string{"/bin/sh", "-c"}
}

// setProcGroup runs the command in its own process group so that signals
// reach every process it spawns.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcessGroup sends SIGTERM to the entire process group.
func terminateProcessGroup(p *os.Process) error {
	return syscall.Kill(-p.Pid, syscall.SIGTERM)
}

// killProcessGroup sends SIGKILL to the entire process group, falling back
// to the leader alone.
func killProcessGroup(p *os.Process) error {
	if err := syscall.Kill(-p.Pid, syscall.SIGKILL); err != nil {
		return p.Kill()
	}
	return nil
}
