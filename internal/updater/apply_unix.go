//go:build !windows

package updater

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"go.uber.org/zap"
)

func (u *Updater) applyUpdate(newBinaryPath, currentBinaryPath string) error {
	if err := os.Chmod(newBinaryPath, 0755); err != nil {
		return fmt.Errorf("chmod new binary: %w", err)
	}

	// Keep the current binary as .old for rollback.
	oldPath := currentBinaryPath + ".old"
	os.Remove(oldPath)
	if err := os.Rename(currentBinaryPath, oldPath); err != nil {
		return fmt.Errorf("backup current binary: %w", err)
	}

	if err := os.Rename(newBinaryPath, currentBinaryPath); err != nil {
		u.logger.Error("Failed to place new binary, rolling back", zap.Error(err))
		if rbErr := os.Rename(oldPath, currentBinaryPath); rbErr != nil {
			u.logger.Error("Rollback also failed", zap.Error(rbErr))
		}
		return fmt.Errorf("place new binary: %w", err)
	}

	return nil
}

// relaunchSelf starts the new binary in its own process group so it
// survives this process exiting.
func (u *Updater) relaunchSelf(execPath string) error {
	cmd := exec.Command(execPath, os.Args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", execPath, err)
	}
	u.logger.Info("Relaunched", zap.Int("pid", cmd.Process.Pid))
	return cmd.Process.Release()
}
