// Package autostart registers the agent as a per-user login item so it
// starts with the desktop session.
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
)

// Manager provides platform-specific login item installation.
type Manager interface {
	IsInstalled() (bool, error)
	// Install registers execPath to start at login. Installing again
	// replaces the previous entry.
	Install(execPath string) error
	Uninstall() error
	ServiceName() string
}

// ExecPath returns the resolved path of the running binary.
func ExecPath() (string, error) {
	p, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("get executable path: %w", err)
	}
	p, err = filepath.EvalSymlinks(p)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks: %w", err)
	}
	return p, nil
}

func fileInstalled(path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", path, err)
	}
	return true, nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}
