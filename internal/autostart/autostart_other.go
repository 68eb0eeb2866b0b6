//go:build !darwin && !linux && !windows

package autostart

import (
	"errors"
	"runtime"
)

var errUnsupported = errors.New("autostart is not supported on " + runtime.GOOS)

type unsupportedManager struct{}

// New returns a Manager that reports autostart as unavailable.
func New() Manager {
	return unsupportedManager{}
}

func (unsupportedManager) ServiceName() string           { return "oscnode" }
func (unsupportedManager) IsInstalled() (bool, error)    { return false, nil }
func (unsupportedManager) Install(execPath string) error { return errUnsupported }
func (unsupportedManager) Uninstall() error              { return nil }
