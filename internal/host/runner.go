package host

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// stopGrace is how long a task gets to exit after the polite signal.
const stopGrace = 5 * time.Second

// ErrNoBrowser is returned when no headless-capable browser was found.
var ErrNoBrowser = errors.New("no supported browser found")

// Runner runs the background task as a headless browser process.
type Runner struct {
	browser    string
	args       []string
	profileDir string
	logger     *zap.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

// NewRunner creates a runner. An empty browser is resolved on first start.
// In args, {url} is replaced with the task URL and {profile} with
// profileDir.
func NewRunner(browser string, args []string, profileDir string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		browser:    browser,
		args:       args,
		profileDir: profileDir,
		logger:     logger.Named("task"),
	}
}

// Start launches the task for url, replacing a task that is already running.
func (r *Runner) Start(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.stopLocked(); err != nil {
		r.logger.Warn("Failed to stop previous task", zap.Error(err))
	}

	browser := r.browser
	if browser == "" {
		found, err := DetectBrowser()
		if err != nil {
			return err
		}
		r.browser = found
		browser = found
		r.logger.Info("Using browser", zap.String("path", browser))
	}

	if r.profileDir != "" {
		if err := os.MkdirAll(r.profileDir, 0700); err != nil {
			return fmt.Errorf("creating profile directory: %w", err)
		}
	}

	cmd := exec.Command(browser, expandArgs(r.args, url, r.profileDir)...)
	setProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("task stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("task stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting task: %w", err)
	}

	logger := r.logger.With(zap.Int("pid", cmd.Process.Pid))
	logger.Info("Task started", zap.String("url", url))

	var pipes sync.WaitGroup
	pipes.Add(2)
	go r.logLines(&pipes, logger, "stdout", stdout)
	go r.logLines(&pipes, logger, "stderr", stderr)

	done := make(chan struct{})
	go func() {
		pipes.Wait()
		err := cmd.Wait()
		if err != nil {
			logger.Info("Task exited", zap.Error(err))
		} else {
			logger.Info("Task exited")
		}
		close(done)
	}()

	r.cmd = cmd
	r.done = done
	return nil
}

// Stop terminates the task and waits for it to exit. Stopping an idle
// runner is a no-op.
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked()
}

// Running reports whether a task process is alive.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

func (r *Runner) stopLocked() error {
	if r.cmd == nil {
		return nil
	}
	cmd, done := r.cmd, r.done
	r.cmd, r.done = nil, nil

	select {
	case <-done:
		return nil
	default:
	}

	if err := terminate(cmd.Process); err != nil {
		r.logger.Debug("Terminate failed, killing", zap.Error(err))
	}

	select {
	case <-done:
		return nil
	case <-time.After(stopGrace):
	}

	if err := kill(cmd.Process); err != nil {
		return fmt.Errorf("killing task: %w", err)
	}
	<-done
	return nil
}

// logLines forwards the task's output to the debug log.
func (r *Runner) logLines(wg *sync.WaitGroup, logger *zap.Logger, stream string, rd io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		logger.Debug("Task output", zap.String("stream", stream), zap.String("line", scanner.Text()))
	}
}

func expandArgs(args []string, url, profile string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		a = strings.ReplaceAll(a, "{url}", url)
		a = strings.ReplaceAll(a, "{profile}", profile)
		out[i] = a
	}
	return out
}
