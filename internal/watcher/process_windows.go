//go:build windows

package watcher

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

func defaultShell() []string {
	return []string{"cmd", "/C"}
}

func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// terminateProcessGroup asks the process tree to exit using taskkill.
func terminateProcessGroup(p *os.Process) error {
	return exec.Command("taskkill", "/T", "/PID", strconv.Itoa(p.Pid)).Run()
}

// killProcessGroup forcefully terminates the process tree.
func killProcessGroup(p *os.Process) error {
	if err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(p.Pid)).Run(); err != nil {
		return p.Kill()
	}
	return nil
}
