// Package updater keeps the agent binary current. It polls the update feed,
// downloads and verifies a new build, stages it next to the running
// executable and asks the user whether to restart into it.
package updater

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Config holds auto-update configuration.
type Config struct {
	Enabled       bool
	Server        string
	CheckInterval time.Duration
	InitialDelay  time.Duration
}

// DefaultConfig returns the default update configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:       false,
		CheckInterval: 1 * time.Hour,
		InitialDelay:  30 * time.Second,
	}
}

// Release is a feed entry describing a newer build.
type Release struct {
	Name   string `json:"name"`
	Notes  string `json:"notes"`
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
}

// Prompter asks the user whether to restart into a downloaded release.
type Prompter interface {
	// PromptRestart blocks until the user decides. It returns true for
	// restart now and false for later.
	PromptRestart(ctx context.Context, rel Release) (bool, error)
}

// Updater manages automatic agent updates.
type Updater struct {
	currentVersion string
	config         Config
	prompter       Prompter
	logger         *zap.Logger
	httpClient     *http.Client

	// Quit is called after the new binary was launched.
	Quit func()

	executable func() (string, error)
	relaunch   func(execPath string) error
	newBackOff func() backoff.BackOff

	mu      sync.Mutex
	pending *Release
	staged  string

	cancel  context.CancelFunc
	stopped chan struct{}
}

const (
	userAgentPrefix  = "oscnode-updater/"
	maxDownloadTries = 3
)

// New creates a new Updater instance.
func New(currentVersion string, cfg Config, prompter Prompter, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &Updater{
		currentVersion: currentVersion,
		config:         cfg,
		prompter:       prompter,
		logger:         logger.Named("updater"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		executable: currentExecutable,
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxDownloadTries)
		},
		stopped: make(chan struct{}),
	}
	u.relaunch = u.relaunchSelf
	return u
}

// Start begins the periodic update check loop.
func (u *Updater) Start(ctx context.Context) {
	if !u.config.Enabled {
		u.logger.Info("Auto-update is disabled")
		return
	}

	if u.currentVersion == "dev" {
		u.logger.Info("Running dev build, auto-update disabled")
		return
	}

	ctx, u.cancel = context.WithCancel(ctx)

	go u.loop(ctx)
	u.logger.Info("Auto-update started",
		zap.String("current_version", u.currentVersion),
		zap.Duration("check_interval", u.config.CheckInterval),
	)
}

// Stop gracefully stops the update loop.
func (u *Updater) Stop() {
	if u.cancel != nil {
		u.cancel()
		<-u.stopped
	}
}

func (u *Updater) loop(ctx context.Context) {
	defer close(u.stopped)

	// Initial delay to let the agent fully start.
	select {
	case <-time.After(u.config.InitialDelay):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(u.config.CheckInterval)
	defer ticker.Stop()

	u.checkAndUpdate(ctx)

	for {
		select {
		case <-ticker.C:
			u.checkAndUpdate(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (u *Updater) checkAndUpdate(ctx context.Context) {
	if err := u.CheckNow(ctx); err != nil {
		u.logger.Error("There was a problem updating the application", zap.Error(err))
	}
}

// CheckNow runs one feed check, download and prompt cycle.
func (u *Updater) CheckNow(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.logger.Debug("Checking for updates")

	rel, err := u.fetchRelease(ctx)
	if err != nil {
		return fmt.Errorf("check feed: %w", err)
	}
	if rel == nil {
		u.logger.Debug("Already up to date", zap.String("current", u.currentVersion))
		return nil
	}

	if u.pending != nil && u.pending.Name == rel.Name && fileExists(u.staged) {
		u.logger.Debug("Update already staged", zap.String("release", rel.Name))
		return nil
	}

	u.logger.Info("New version available",
		zap.String("current", u.currentVersion),
		zap.String("latest", rel.Name),
	)

	execPath, err := u.executable()
	if err != nil {
		return err
	}

	staged, err := u.stage(ctx, rel, filepath.Dir(execPath))
	if err != nil {
		return err
	}
	if u.staged != "" && u.staged != staged {
		os.Remove(u.staged)
	}
	u.pending = rel
	u.staged = staged

	restart, err := u.prompter.PromptRestart(ctx, *rel)
	if err != nil {
		return fmt.Errorf("prompt restart: %w", err)
	}
	if !restart {
		u.logger.Info("Update deferred", zap.String("release", rel.Name))
		return nil
	}

	if err := u.applyUpdate(staged, execPath); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}
	u.pending = nil
	u.staged = ""

	u.logger.Info("Update applied, restarting", zap.String("new_version", rel.Name))

	if err := u.relaunch(execPath); err != nil {
		return fmt.Errorf("relaunch: %w", err)
	}
	if u.Quit != nil {
		u.Quit()
	}
	return nil
}

// FeedURL returns the update feed address for this build.
func (u *Updater) FeedURL() string {
	return fmt.Sprintf("%s/update/%s/%s", strings.TrimRight(u.config.Server, "/"), runtime.GOOS, u.currentVersion)
}

// fetchRelease returns nil when the feed reports no newer build.
func (u *Updater) fetchRelease(ctx context.Context) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.FeedURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgentPrefix+u.currentVersion)
	req.Header.Set("Accept", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
	default:
		return nil, fmt.Errorf("update feed returned status %d", resp.StatusCode)
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	if rel.URL == "" {
		return nil, fmt.Errorf("feed entry %q has no download url", rel.Name)
	}
	if rel.Name == "" {
		rel.Name = rel.URL
	}
	return &rel, nil
}

// stage downloads rel into dir, which must be on the same filesystem as the
// executable so the final rename is atomic.
func (u *Updater) stage(ctx context.Context, rel *Release, dir string) (string, error) {
	tmpFile := filepath.Join(dir, fmt.Sprintf(".oscnode-update-%d", time.Now().UnixNano()))

	u.logger.Info("Downloading update",
		zap.String("release", rel.Name),
		zap.String("url", rel.URL),
	)

	attempt := 0
	op := func() error {
		attempt++
		err := u.downloadFile(ctx, rel.URL, tmpFile)
		if err != nil {
			u.logger.Warn("Download failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(u.newBackOff(), ctx)); err != nil {
		os.Remove(tmpFile)
		return "", fmt.Errorf("download binary: %w", err)
	}

	if rel.SHA256 != "" {
		actual, err := fileChecksum(tmpFile)
		if err != nil {
			os.Remove(tmpFile)
			return "", fmt.Errorf("compute checksum: %w", err)
		}
		if !strings.EqualFold(actual, rel.SHA256) {
			os.Remove(tmpFile)
			return "", fmt.Errorf("checksum mismatch: expected %s, got %s", rel.SHA256, actual)
		}
		u.logger.Info("Checksum verified", zap.String("sha256", actual))
	}

	return tmpFile, nil
}

func (u *Updater) downloadFile(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", userAgentPrefix+u.currentVersion)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("download failed: status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	out, err := os.Create(destPath)
	if err != nil {
		return backoff.Permanent(err)
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

func currentExecutable() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("get executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks: %w", err)
	}
	return execPath, nil
}

// fileChecksum computes the SHA-256 checksum of a file.
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
