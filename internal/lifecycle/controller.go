// Package lifecycle owns the contribution state: whether the background task
// runs, how long a pause lasts, which citizen identity is linked and what the
// tray menu looks like as a result.
package lifecycle

import (
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// DefaultMinBatteryLevel is the charge below which running on battery pauses
// the task.
const DefaultMinBatteryLevel = 0.30

// NotificationTitle is the title of every notification the controller emits.
const NotificationTitle = "OSC"

// Notification bodies.
const (
	MsgContributing  = "Contributing..."
	MsgPausedHour    = "Paused for an hour"
	MsgPausedFewHrs  = "Paused for a few hours"
	MsgPausedDay     = "Paused for a day"
	citizenQueryName = "citizen"
)

// PauseChoice is one of the pause durations offered in the menu.
type PauseChoice int

const (
	PauseHour PauseChoice = iota + 1
	PauseFewHours
	PauseDay
)

// fewHours are the candidate lengths of a "few hours" pause.
var fewHours = []time.Duration{3 * time.Hour, 4 * time.Hour, 5 * time.Hour, 6 * time.Hour}

// Duration returns the pause length for p. intn picks the index for
// PauseFewHours and must return a value in [0, n).
func (p PauseChoice) Duration(intn func(n int) int) time.Duration {
	switch p {
	case PauseHour:
		return time.Hour
	case PauseFewHours:
		return fewHours[intn(len(fewHours))]
	case PauseDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Message returns the notification body announcing the pause.
func (p PauseChoice) Message() string {
	switch p {
	case PauseHour:
		return MsgPausedHour
	case PauseFewHours:
		return MsgPausedFewHrs
	case PauseDay:
		return MsgPausedDay
	default:
		return ""
	}
}

// Host runs the hidden task and the visible windows.
type Host interface {
	ShowHiddenTask(content string) error
	CloseHiddenTask() error
	ShowMainWindow() error
	ShowAbout() error
	ShowAuthWindow(loginURL string) error
}

// Notifier shows desktop notifications.
type Notifier interface {
	Notify(title, body string)
}

// MenuRenderer displays a Menu and the tray icon.
type MenuRenderer interface {
	Render(menu Menu)
	SetActive(active bool)
}

// Deps are the collaborators of a Controller. Store, Host and Renderer are
// required; the rest have working defaults.
type Deps struct {
	Store    Store
	Host     Host
	Renderer MenuRenderer
	Notifier Notifier
	Clock    Clock

	// Dispatch runs f on the event loop. Timer callbacks go through it.
	// Defaults to calling f directly.
	Dispatch func(f func())

	// Quit is called for the quit action.
	Quit func()

	// Intn picks the "few hours" pause length. Defaults to math/rand.
	Intn func(n int) int

	TaskURL         string
	LoginURL        string
	MinBatteryLevel float64
	Logger          *zap.Logger
}

// Controller drives the contribution lifecycle.
//
// It is not safe for concurrent use: every method must be called from the
// same event loop that Deps.Dispatch feeds.
type Controller struct {
	deps   Deps
	logger *zap.Logger

	state State

	timer    Timer
	timerGen uint64

	// pausedByBattery is set while the current pause came from the battery
	// policy. It is not persisted.
	pausedByBattery bool
}

// New creates a controller with the state loaded from deps.Store.
func New(deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Dispatch == nil {
		deps.Dispatch = func(f func()) { f() }
	}
	if deps.Intn == nil {
		deps.Intn = rand.Intn
	}
	if deps.MinBatteryLevel <= 0 {
		deps.MinBatteryLevel = DefaultMinBatteryLevel
	}

	return &Controller{
		deps:   deps,
		logger: deps.Logger.Named("lifecycle"),
		state:  LoadState(deps.Store),
	}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	return c.state.clone()
}

// Start renders the menu and starts the task unless paused. A timed pause
// that survived a restart is re-armed for its remaining time, or dropped if
// it already expired.
func (c *Controller) Start() {
	if c.state.Paused && c.state.ResumeAt != nil {
		remaining := c.state.ResumeAt.Sub(c.deps.Clock.Now())
		if remaining <= 0 {
			c.logger.Info("Stored pause expired while not running")
			c.state.Paused = false
			c.state.ResumeAt = nil
			c.persist()
		} else {
			c.logger.Info("Restoring timed pause", zap.Duration("remaining", remaining))
			c.scheduleResume(remaining)
		}
	}

	c.render()
	c.setActive(!c.state.Paused)
	if !c.state.Paused {
		c.startTask()
	}
}

// Pause stops the task. With a nil duration the pause lasts until Resume.
// With a duration a single resume timer is armed, replacing any earlier one,
// which also applies when already paused.
func (c *Controller) Pause(d *time.Duration) {
	if d == nil {
		c.pauseUntil(nil, 0)
		return
	}
	at := c.deps.Clock.Now().Add(*d).Truncate(time.Second)
	c.pauseUntil(&at, *d)
}

func (c *Controller) pauseUntil(at *time.Time, d time.Duration) {
	if c.state.Paused && at == nil {
		if c.state.ResumeAt == nil && c.timer == nil {
			c.logger.Debug("Already paused")
			return
		}
		// The timed pause becomes indefinite.
		c.cancelTimer()
		c.state.ResumeAt = nil
		c.persist()
		c.logger.Info("Paused until resumed")
		return
	}

	c.cancelTimer()
	c.pausedByBattery = false

	wasPaused := c.state.Paused
	if !wasPaused {
		c.call("close hidden task", c.deps.Host.CloseHiddenTask)
	}

	c.state.Paused = true
	c.state.ResumeAt = at
	c.persist()
	c.render()
	if !wasPaused {
		c.setActive(false)
	}

	if at != nil {
		c.scheduleResume(d)
		c.logger.Info("Paused", zap.Duration("for", d), zap.Time("resume_at", *at))
	} else {
		c.logger.Info("Paused until resumed")
	}
}

// PauseFor pauses for one of the menu durations and announces it.
func (c *Controller) PauseFor(choice PauseChoice) {
	d := choice.Duration(c.deps.Intn)
	if d <= 0 {
		c.logger.Warn("Unknown pause choice", zap.Int("choice", int(choice)))
		return
	}
	c.Pause(&d)
	c.notify(choice.Message())
}

// Resume restarts the task. It is a no-op when the task is already running,
// apart from cancelling a stray resume timer.
func (c *Controller) Resume() {
	c.cancelTimer()
	if !c.state.Paused {
		return
	}

	c.state.Paused = false
	c.state.ResumeAt = nil
	c.pausedByBattery = false
	c.persist()
	c.render()
	c.setActive(true)
	c.startTask()
	c.logger.Info("Resumed")
}

// EvaluateBatteryPolicy pauses indefinitely when running on battery below the
// minimum level. Off battery it lifts a pause the policy itself applied.
func (c *Controller) EvaluateBatteryPolicy(level float64, onBattery bool) {
	c.logger.Debug("Evaluating battery policy",
		zap.Float64("level", level),
		zap.Bool("on_battery", onBattery),
	)

	if !onBattery {
		if c.pausedByBattery {
			c.Resume()
		}
		return
	}

	// A timed pause would resume on a low battery, so it is replaced too.
	if level < c.deps.MinBatteryLevel && (!c.state.Paused || c.state.ResumeAt != nil) {
		c.logger.Info("Battery low, pausing",
			zap.Float64("level", level),
			zap.Float64("min_level", c.deps.MinBatteryLevel),
		)
		c.Pause(nil)
		c.pausedByBattery = true
	}
}

// OnAC handles the switch to external power: any pause is lifted.
func (c *Controller) OnAC() {
	c.Resume()
}

// SetIdentity links a citizen identity and restarts a running task so it
// picks the identity up.
func (c *Controller) SetIdentity(id string) {
	if id == "" {
		c.logger.Warn("Ignoring empty identity")
		return
	}
	if c.state.Recognized && c.state.Identity == id {
		return
	}

	c.state.Recognized = true
	c.state.Identity = id
	c.persist()
	c.render()
	c.restartTask()
	c.logger.Info("Citizen identity linked", zap.String("identity", id))
}

// ClearIdentity unlinks the citizen identity.
func (c *Controller) ClearIdentity() {
	if !c.state.Recognized {
		return
	}

	c.state.Recognized = false
	c.state.Identity = ""
	c.persist()
	c.render()
	c.restartTask()
	c.logger.Info("Citizen identity cleared")
}

// Reconcile applies a state written by another process, such as the CLI.
// Fields equal to the current state cause no work.
func (c *Controller) Reconcile(next State) {
	now := c.deps.Clock.Now()

	switch {
	case next.Paused && next.ResumeAt != nil:
		if !c.state.Paused || !sameResumeAt(c.state.ResumeAt, next.ResumeAt) {
			remaining := next.ResumeAt.Sub(now)
			if remaining <= 0 {
				if c.state.Paused {
					c.Resume()
				} else {
					c.persist()
				}
			} else {
				at := *next.ResumeAt
				c.pauseUntil(&at, remaining)
			}
		}
	case next.Paused:
		c.Pause(nil)
	case c.state.Paused:
		c.Resume()
	}

	switch {
	case next.Recognized && next.Identity != "":
		c.SetIdentity(next.Identity)
	case c.state.Recognized:
		c.ClearIdentity()
	}
}

// Handle dispatches a tray menu action.
func (c *Controller) Handle(a Action) {
	c.logger.Debug("Menu action", zap.String("action", string(a)))

	switch a {
	case ActionPauseHour:
		c.PauseFor(PauseHour)
	case ActionPauseFewHours:
		c.PauseFor(PauseFewHours)
	case ActionPauseDay:
		c.PauseFor(PauseDay)
	case ActionResume:
		c.Resume()
	case ActionConnect:
		c.call("show auth window", func() error {
			return c.deps.Host.ShowAuthWindow(c.deps.LoginURL)
		})
	case ActionShowIdentity:
		c.call("show main window", c.deps.Host.ShowMainWindow)
	case ActionLogout:
		c.ClearIdentity()
	case ActionAbout:
		c.call("show about", c.deps.Host.ShowAbout)
	case ActionQuit:
		c.cancelTimer()
		if !c.state.Paused {
			c.call("close hidden task", c.deps.Host.CloseHiddenTask)
		}
		if c.deps.Quit != nil {
			c.call("quit", func() error {
				c.deps.Quit()
				return nil
			})
		}
	default:
		c.logger.Warn("Unknown menu action", zap.String("action", string(a)))
	}
}

// TaskContent returns the URL the hidden task loads for st.
func (c *Controller) TaskContent(st State) string {
	if !st.Recognized || st.Identity == "" {
		return c.deps.TaskURL
	}
	u, err := url.Parse(c.deps.TaskURL)
	if err != nil {
		c.logger.Warn("Invalid task URL", zap.String("url", c.deps.TaskURL), zap.Error(err))
		return c.deps.TaskURL
	}
	q := u.Query()
	q.Set(citizenQueryName, st.Identity)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Controller) scheduleResume(d time.Duration) {
	c.timerGen++
	gen := c.timerGen
	c.timer = c.deps.Clock.AfterFunc(d, func() {
		c.deps.Dispatch(func() { c.onResumeTimer(gen) })
	})
}

func (c *Controller) onResumeTimer(gen uint64) {
	if gen != c.timerGen || c.timer == nil {
		c.logger.Debug("Ignoring stale resume timer", zap.Uint64("generation", gen))
		return
	}
	c.timer = nil
	c.logger.Info("Pause elapsed")
	c.Resume()
}

func (c *Controller) cancelTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
}

func (c *Controller) startTask() {
	content := c.TaskContent(c.state)
	c.call("show hidden task", func() error {
		return c.deps.Host.ShowHiddenTask(content)
	})
	c.notify(MsgContributing)
}

func (c *Controller) restartTask() {
	if c.state.Paused {
		return
	}
	c.call("close hidden task", c.deps.Host.CloseHiddenTask)
	c.startTask()
}

func (c *Controller) persist() {
	if err := SaveState(c.deps.Store, c.state); err != nil {
		c.logger.Error("Failed to persist state", zap.Error(err))
	}
}

func (c *Controller) render() {
	menu := BuildMenu(c.state)
	c.call("render menu", func() error {
		c.deps.Renderer.Render(menu)
		return nil
	})
}

func (c *Controller) setActive(active bool) {
	c.call("set tray icon", func() error {
		c.deps.Renderer.SetActive(active)
		return nil
	})
}

func (c *Controller) notify(body string) {
	if c.deps.Notifier == nil {
		return
	}
	c.call("notify", func() error {
		c.deps.Notifier.Notify(NotificationTitle, body)
		return nil
	})
}

// call runs a collaborator, logging its error or panic instead of
// propagating it.
func (c *Controller) call(what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Collaborator panicked",
				zap.String("call", what),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	if err := fn(); err != nil {
		c.logger.Warn("Collaborator call failed", zap.String("call", what), zap.Error(err))
	}
}
