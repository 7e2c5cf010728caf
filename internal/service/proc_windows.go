//go:build windows

package service

import (
	"os/exec"
	"strconv"
)

func configureProcess(cmd *exec.Cmd) {}

// terminateProcess kills cmd and its child processes via taskkill.
func terminateProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	pid := strconv.Itoa(cmd.Process.Pid)
	if err := exec.Command("taskkill", "/pid", pid, "/T", "/F").Run(); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
