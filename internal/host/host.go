// Package host runs the windows of the agent: the hidden background task
// and the pages opened in the user's browser.
package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/skratchdot/open-golang/open"
	"go.uber.org/zap"
)

// TaskRunner runs the hidden background task.
type TaskRunner interface {
	Start(url string) error
	Stop() error
}

// SignIn starts an identity linking session and returns the page to open.
type SignIn interface {
	Start(ctx context.Context, loginURL string) (string, error)
}

// Config holds the pages the host opens.
type Config struct {
	Homepage string
	AboutURL string
}

// taskQueueSize bounds the task operations waiting for the worker.
const taskQueueSize = 16

// Host carries out window requests for the lifecycle controller. Task
// starts and stops run in order on a worker goroutine, so callers never wait
// for a browser process to come up or exit.
type Host struct {
	ctx    context.Context
	cfg    Config
	task   TaskRunner
	signIn SignIn
	logger *zap.Logger

	open func(input string) error

	taskOps    chan taskOp
	closeOnce  sync.Once
	workerDone chan struct{}
}

type taskOp struct {
	what string
	run  func() error
}

// New creates a Host. ctx bounds sign-in sessions.
func New(ctx context.Context, cfg Config, task TaskRunner, signIn SignIn, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Host{
		ctx:        ctx,
		cfg:        cfg,
		task:       task,
		signIn:     signIn,
		logger:     logger.Named("host"),
		open:       open.Start,
		taskOps:    make(chan taskOp, taskQueueSize),
		workerDone: make(chan struct{}),
	}
	go h.runTasks()
	return h
}

// ShowHiddenTask queues starting the background task with content as its
// URL. Start failures are logged by the worker.
func (h *Host) ShowHiddenTask(content string) error {
	h.taskOps <- taskOp{what: "start task", run: func() error { return h.task.Start(content) }}
	return nil
}

// CloseHiddenTask queues stopping the background task.
func (h *Host) CloseHiddenTask() error {
	h.taskOps <- taskOp{what: "stop task", run: h.task.Stop}
	return nil
}

// Close waits for queued task operations to finish and stops the worker.
// No Show or Close call may follow.
func (h *Host) Close() {
	h.closeOnce.Do(func() { close(h.taskOps) })
	<-h.workerDone
}

func (h *Host) runTasks() {
	defer close(h.workerDone)
	for op := range h.taskOps {
		if err := op.run(); err != nil {
			h.logger.Warn("Task operation failed", zap.String("op", op.what), zap.Error(err))
		}
	}
}

// ShowMainWindow opens the project homepage.
func (h *Host) ShowMainWindow() error {
	return h.openURL(h.cfg.Homepage)
}

// ShowAbout opens the about page.
func (h *Host) ShowAbout() error {
	return h.openURL(h.cfg.AboutURL)
}

// ShowAuthWindow starts a sign-in session and opens its login page.
func (h *Host) ShowAuthWindow(loginURL string) error {
	page, err := h.signIn.Start(h.ctx, loginURL)
	if err != nil {
		return fmt.Errorf("starting sign-in: %w", err)
	}
	return h.openURL(page)
}

func (h *Host) openURL(u string) error {
	h.logger.Debug("Opening in browser", zap.String("url", u))
	if err := h.open(u); err != nil {
		return fmt.Errorf("opening %s: %w", u, err)
	}
	return nil
}
