//go:build windows

package autostart

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

const (
	serviceName = "oscnode"
	runKeyPath  = `Software\Microsoft\Windows\CurrentVersion\Run`
)

// windowsManager implements Manager with a value under the HKCU Run key.
type windowsManager struct{}

// New returns a Manager using the current user's Run key.
func New() Manager {
	return &windowsManager{}
}

// ServiceName returns the Run value name.
func (w *windowsManager) ServiceName() string { return serviceName }

func (w *windowsManager) IsInstalled() (bool, error) {
	k, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.QUERY_VALUE)
	if err != nil {
		return false, fmt.Errorf("opening Run key: %w", err)
	}
	defer k.Close()

	if _, _, err := k.GetStringValue(serviceName); err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading Run value: %w", err)
	}
	return true, nil
}

func (w *windowsManager) Install(execPath string) error {
	k, _, err := registry.CreateKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("opening Run key: %w", err)
	}
	defer k.Close()

	if err := k.SetStringValue(serviceName, `"`+execPath+`"`); err != nil {
		return fmt.Errorf("writing Run value: %w", err)
	}
	return nil
}

func (w *windowsManager) Uninstall() error {
	k, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("opening Run key: %w", err)
	}
	defer k.Close()

	if err := k.DeleteValue(serviceName); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("deleting Run value: %w", err)
	}
	return nil
}
