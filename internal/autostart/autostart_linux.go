//go:build linux

package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const serviceName = "oscnode"

// desktopTemplate follows the XDG autostart specification.
const desktopTemplate = `[Desktop Entry]
Type=Application
Version=1.0
Name=Open Source Citizen
Comment=Contribute idle compute to open source
Exec="{execPath}"
Terminal=false
StartupNotify=false
X-GNOME-Autostart-enabled=true
`

// linuxManager implements Manager with an XDG autostart entry.
type linuxManager struct {
	desktopPath string
}

// New returns a Manager writing to $XDG_CONFIG_HOME/autostart.
func New() Manager {
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return NewAt(filepath.Join(base, "autostart"))
}

// NewAt returns a Manager writing the desktop entry into dir.
func NewAt(dir string) Manager {
	return &linuxManager{desktopPath: filepath.Join(dir, serviceName+".desktop")}
}

// ServiceName returns the desktop entry name.
func (l *linuxManager) ServiceName() string { return serviceName }

// IsInstalled checks whether the desktop entry exists.
func (l *linuxManager) IsInstalled() (bool, error) {
	return fileInstalled(l.desktopPath)
}

// Install writes the desktop entry with the binary path substituted.
func (l *linuxManager) Install(execPath string) error {
	if err := os.MkdirAll(filepath.Dir(l.desktopPath), 0755); err != nil {
		return fmt.Errorf("creating autostart directory: %w", err)
	}
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`).Replace(execPath)
	entry := strings.ReplaceAll(desktopTemplate, "{execPath}", escaped)
	if err := os.WriteFile(l.desktopPath, []byte(entry), 0644); err != nil {
		return fmt.Errorf("writing desktop entry: %w", err)
	}
	return nil
}

// Uninstall removes the desktop entry.
func (l *linuxManager) Uninstall() error {
	return removeFile(l.desktopPath)
}
