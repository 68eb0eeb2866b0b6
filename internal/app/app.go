// Package app wires the agent together: settings, tray, lifecycle
// controller, power monitor, sign-in, pinger and updater, all driven by a
// single event loop.
package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/opensourcecitizen/oscnode/internal/auth"
	"github.com/opensourcecitizen/oscnode/internal/autostart"
	"github.com/opensourcecitizen/oscnode/internal/config"
	"github.com/opensourcecitizen/oscnode/internal/host"
	"github.com/opensourcecitizen/oscnode/internal/lifecycle"
	"github.com/opensourcecitizen/oscnode/internal/notify"
	"github.com/opensourcecitizen/oscnode/internal/pinger"
	"github.com/opensourcecitizen/oscnode/internal/power"
	"github.com/opensourcecitizen/oscnode/internal/scheduler"
	"github.com/opensourcecitizen/oscnode/internal/store"
	"github.com/opensourcecitizen/oscnode/internal/tray"
	"github.com/opensourcecitizen/oscnode/internal/updater"
)

// shutdownTimeout bounds the wait for the loop to clean up after the tray
// exited.
const shutdownTimeout = 10 * time.Second

// App is the running tray agent.
type App struct {
	cfg     *config.Config
	version string
	logger  *zap.Logger

	store    *store.Store
	notifier *notify.Notifier
	done     chan struct{}
}

// New creates the agent for cfg.
func New(cfg *config.Config, version string, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:     cfg,
		version: version,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Run starts the agent and blocks until it quits, either from the tray or
// because ctx was cancelled. It must be called from the main goroutine.
func (a *App) Run(ctx context.Context) error {
	release, err := AcquireLock(ctx, config.LockPath())
	if err != nil {
		return err
	}
	defer release()

	st, err := store.Open(config.SettingsPath(), a.logger)
	if err != nil {
		return fmt.Errorf("opening settings: %w", err)
	}
	a.store = st

	if a.cfg.Autostart.Enabled {
		a.enableAutostart()
	}

	a.notifier = notify.New(a.cfg.Notifications.Enabled, a.logger)
	a.notifier.SetIcon(tray.IconPNG())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A signal cancels ctx; the tray has to be told separately.
	go func() {
		<-ctx.Done()
		tray.Quit()
	}()

	var started atomic.Bool
	tray.Run(func(b tray.Builder) {
		started.Store(true)
		a.start(ctx, cancel, b)
	}, cancel)

	if !started.Load() {
		return nil
	}
	select {
	case <-a.done:
	case <-time.After(shutdownTimeout):
		a.logger.Warn("Timed out waiting for shutdown")
	}
	return nil
}

// start builds every collaborator on top of the ready tray and launches the
// event loop. Cancelling ctx shuts everything down.
func (a *App) start(ctx context.Context, quit context.CancelFunc, b tray.Builder) {
	cfg := a.cfg
	logger := a.logger

	renderer := tray.NewRenderer(b, tray.DefaultLayout(), a.notifier, logger)

	flow := auth.NewFlow(auth.Config{
		CallbackPath:   cfg.Auth.CallbackPath,
		IdentityCookie: cfg.Auth.IdentityCookie,
		LooseMatch:     cfg.Auth.LooseMatch,
		Timeout:        cfg.Auth.Timeout.Duration,
	}, logger)

	runner := host.NewRunner(cfg.Task.Browser, cfg.Task.Args, config.ProfileDir(), logger)
	h := host.New(ctx, host.Config{
		Homepage: cfg.Homepage,
		AboutURL: cfg.AboutURL,
	}, runner, flow, logger)

	src := power.NewBatterySource()
	monitor := power.NewMonitor(src, cfg.Power.PollInterval.Duration, logger)

	changes, err := a.store.Watch(ctx)
	if err != nil {
		logger.Warn("Settings changes from other processes will not be picked up", zap.Error(err))
	}

	loop := NewLoop(Inputs{
		Actions:     renderer.Actions(),
		Power:       monitor.Events(),
		Identities:  flow.Results(),
		Changes:     changes,
		Reload:      a.reload,
		Source:      src,
		SettleDelay: cfg.Power.SettleDelay.Duration,
	}, logger)

	controller := lifecycle.New(lifecycle.Deps{
		Store:           a.store,
		Host:            h,
		Renderer:        renderer,
		Notifier:        a.notifier,
		Dispatch:        loop.Dispatch,
		Quit:            quit,
		TaskURL:         cfg.Task.URL,
		LoginURL:        cfg.Auth.LoginURL,
		MinBatteryLevel: cfg.Power.MinBatteryLevel,
		Logger:          logger,
	})

	sched := scheduler.New(logger)
	if err := sched.Add(monitor.Job()); err != nil {
		logger.Error("Failed to schedule power monitor", zap.Error(err))
	}
	if p := a.newPinger(ctx); p != nil {
		if err := sched.Add(p.Job()); err != nil {
			logger.Error("Failed to schedule ping", zap.Error(err))
		}
	}

	upd := updater.New(a.version, updater.Config{
		Enabled:       cfg.Update.Enabled,
		Server:        cfg.Update.Server,
		CheckInterval: cfg.Update.CheckInterval.Duration,
		InitialDelay:  updater.DefaultConfig().InitialDelay,
	}, renderer, logger)
	upd.Quit = quit

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Start(ctx)
	}()
	upd.Start(ctx)

	logger.Info("Agent running",
		zap.String("version", a.version),
		zap.String("settings", a.store.Path()),
	)

	go func() {
		defer close(a.done)
		loop.Run(ctx, controller)

		flow.Cancel()
		h.Close()
		if err := runner.Stop(); err != nil {
			logger.Warn("Failed to stop task", zap.Error(err))
		}
		upd.Stop()
		<-schedDone
		renderer.Close()
		tray.Quit()
		logger.Info("Agent stopped")
	}()
}

func (a *App) newPinger(ctx context.Context) *pinger.Pinger {
	id, err := pinger.MachineID(ctx, a.store)
	if err != nil {
		a.logger.Warn("Failed to persist machine id", zap.Error(err))
	}
	if id == "" {
		return nil
	}
	return pinger.New(a.cfg.Ping.URL, id, a.cfg.Ping.Interval.Duration, a.logger)
}

func (a *App) reload() (lifecycle.State, error) {
	if err := a.store.Reload(); err != nil {
		return lifecycle.State{}, err
	}
	return lifecycle.LoadState(a.store), nil
}

func (a *App) enableAutostart() {
	mgr := autostart.New()
	execPath, err := autostart.ExecPath()
	if err != nil {
		a.logger.Warn("Cannot enable autostart", zap.Error(err))
		return
	}
	if err := mgr.Install(execPath); err != nil {
		a.logger.Warn("Cannot enable autostart", zap.String("entry", mgr.ServiceName()), zap.Error(err))
		return
	}
	a.logger.Debug("Autostart enabled", zap.String("entry", mgr.ServiceName()))
}
