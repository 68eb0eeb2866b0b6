//go:build darwin

package autostart

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
)

const serviceLabel = "org.opensourcecitizen.oscnode"

// The agent is a login item, not a daemon: no KeepAlive, so quitting from
// the tray sticks until the next login.
const plistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>org.opensourcecitizen.oscnode</string>
    <key>ProgramArguments</key>
    <array>
        <string>{execPath}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>ProcessType</key>
    <string>Interactive</string>
</dict>
</plist>
`

type darwinManager struct {
	plistPath string
}

// New returns a Manager writing a per-user LaunchAgent.
func New() Manager {
	home, _ := os.UserHomeDir()
	return NewAt(filepath.Join(home, "Library", "LaunchAgents"))
}

// NewAt returns a Manager writing the LaunchAgent into dir.
func NewAt(dir string) Manager {
	return &darwinManager{plistPath: filepath.Join(dir, serviceLabel+".plist")}
}

func (d *darwinManager) ServiceName() string { return serviceLabel }

func (d *darwinManager) IsInstalled() (bool, error) {
	return fileInstalled(d.plistPath)
}

// Install writes the plist. launchd picks it up at the next login; it is
// not loaded now since the agent is already running.
func (d *darwinManager) Install(execPath string) error {
	if err := os.MkdirAll(filepath.Dir(d.plistPath), 0755); err != nil {
		return fmt.Errorf("creating LaunchAgents directory: %w", err)
	}
	plist := strings.ReplaceAll(plistTemplate, "{execPath}", html.EscapeString(execPath))
	if err := os.WriteFile(d.plistPath, []byte(plist), 0644); err != nil {
		return fmt.Errorf("creating plist: %w", err)
	}
	return nil
}

func (d *darwinManager) Uninstall() error {
	return removeFile(d.plistPath)
}
