package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensourcecitizen/oscnode/internal/autostart"
	"github.com/opensourcecitizen/oscnode/internal/lifecycle"
	"github.com/opensourcecitizen/oscnode/internal/store"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	origSettings, origLock, origNow := settingsPath, lockPath, now
	settingsPath = func() string { return path }
	lockPath = func() string { return filepath.Join(dir, "oscnode.pid") }
	now = func() time.Time { return fixedNow }
	t.Cleanup(func() {
		settingsPath, lockPath, now = origSettings, origLock, origNow
	})
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	pauseFor = 0
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func stored(t *testing.T, path string) lifecycle.State {
	t.Helper()
	st, err := store.Open(path, nil)
	require.NoError(t, err)
	return lifecycle.LoadState(st)
}

func TestPauseAndResume(t *testing.T) {
	path := setup(t)

	out, err := execute(t, "pause")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:   paused")
	assert.Contains(t, out, "Agent:    not running")
	st := stored(t, path)
	assert.True(t, st.Paused)
	assert.Nil(t, st.ResumeAt)

	_, err = execute(t, "pause", "--for", "3h")
	require.NoError(t, err)
	st = stored(t, path)
	require.NotNil(t, st.ResumeAt)
	assert.True(t, st.ResumeAt.Equal(fixedNow.Add(3*time.Hour)))

	out, err = execute(t, "resume")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:   contributing")
	st = stored(t, path)
	assert.False(t, st.Paused)
	assert.Nil(t, st.ResumeAt)
}

func TestPause_RejectsNegativeDuration(t *testing.T) {
	setup(t)

	_, err := execute(t, "pause", "--for", "-1h")
	assert.Error(t, err)
}

func TestLogoutKeepsPause(t *testing.T) {
	path := setup(t)
	st, err := store.Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, lifecycle.SaveState(st, lifecycle.State{Paused: true, Recognized: true, Identity: "ada"}))

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Citizen:  ada")

	out, err = execute(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Citizen:  not connected")

	got := stored(t, path)
	assert.True(t, got.Paused)
	assert.False(t, got.Recognized)
	assert.Empty(t, got.Identity)
}

func TestPrintStatus(t *testing.T) {
	at := fixedNow.Add(90 * time.Minute)

	var buf bytes.Buffer
	printStatus(&buf, lifecycle.State{Paused: true, ResumeAt: &at}, 42, true, fixedNow)

	assert.Contains(t, buf.String(), "1h30m0s left")
	assert.Contains(t, buf.String(), "Agent:    running (pid 42)")
}

type fakeManager struct {
	installed bool
	execPath  string
}

func (m *fakeManager) IsInstalled() (bool, error) { return m.installed, nil }
func (m *fakeManager) Uninstall() error           { m.installed = false; return nil }
func (m *fakeManager) ServiceName() string        { return "oscnode" }

func (m *fakeManager) Install(p string) error {
	m.installed = true
	m.execPath = p
	return nil
}

func TestAutostartCommands(t *testing.T) {
	mgr := &fakeManager{}
	origNew, origExec := newAutostart, execPath
	newAutostart = func() autostart.Manager { return mgr }
	execPath = func() (string, error) { return "/opt/oscnode/oscnode", nil }
	t.Cleanup(func() { newAutostart, execPath = origNew, origExec })

	out, err := execute(t, "autostart", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Autostart: disabled")

	_, err = execute(t, "autostart", "enable")
	require.NoError(t, err)
	assert.True(t, mgr.installed)
	assert.Equal(t, "/opt/oscnode/oscnode", mgr.execPath)

	out, err = execute(t, "autostart", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Autostart: enabled")

	_, err = execute(t, "autostart", "disable")
	require.NoError(t, err)
	assert.False(t, mgr.installed)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "oscnode dev")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{"warn", "warn"},
		{"error", "error"},
		{"info", "info"},
		{"", "info"},
		{"verbose", "info"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in).String(), tt.in)
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("task:\n  url: https://file.example.com/task\nlogging:\n  level: warn\n"), 0644))
	t.Setenv("OSC_TASK_URL", "")
	t.Setenv("OSC_LOG_LEVEL", "")

	origPath, origLevel, origTask := configPath, logLevel, taskURL
	t.Cleanup(func() { configPath, logLevel, taskURL = origPath, origLevel, origTask })

	configPath = path
	logLevel, taskURL = "", ""
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com/task", cfg.Task.URL)
	assert.Equal(t, "warn", cfg.Logging.Level)

	logLevel, taskURL = "debug", "https://flag.example.com/task"
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example.com/task", cfg.Task.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)

	taskURL = "ftp://flag.example.com/task"
	_, err = loadConfig()
	assert.Error(t, err, "flag values are validated")
}
