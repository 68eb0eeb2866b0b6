//go:build windows

package updater

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

func (u *Updater) applyUpdate(newBinaryPath, currentBinaryPath string) error {
	// A running executable can be renamed but not overwritten.
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

func (u *Updater) relaunchSelf(execPath string) error {
	cmd := exec.Command(execPath, os.Args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", execPath, err)
	}
	u.logger.Info("Relaunched", zap.Int("pid", cmd.Process.Pid))
	return cmd.Process.Release()
}
