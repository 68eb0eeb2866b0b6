package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/opensourcecitizen/oscnode/internal/lifecycle"
	"github.com/opensourcecitizen/oscnode/internal/power"
)

// powerQueryTimeout bounds a battery query made for the policy.
const powerQueryTimeout = 5 * time.Second

// Inputs are the event sources feeding the loop. Nil channels never fire.
type Inputs struct {
	Actions    <-chan lifecycle.Action
	Power      <-chan power.Event
	Identities <-chan string
	Changes    <-chan struct{}

	// Reload returns the state another process wrote to the store.
	Reload func() (lifecycle.State, error)

	// Source answers battery queries for the policy.
	Source power.Source

	// SettleDelay is the wait before the startup battery check.
	SettleDelay time.Duration
}

// Loop is the single goroutine that owns the lifecycle controller. Every
// controller call, including timer callbacks, happens on it.
type Loop struct {
	in       Inputs
	logger   *zap.Logger
	dispatch chan func()
	done     chan struct{}
}

// NewLoop creates a loop over in.
func NewLoop(in Inputs, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		in:       in,
		logger:   logger.Named("loop"),
		dispatch: make(chan func(), 16),
		done:     make(chan struct{}),
	}
}

// Dispatch queues f to run on the loop. After the loop stopped f is dropped.
func (l *Loop) Dispatch(f func()) {
	select {
	case l.dispatch <- f:
	case <-l.done:
	}
}

// Run starts c and processes events until ctx is done.
func (l *Loop) Run(ctx context.Context, c *lifecycle.Controller) {
	defer close(l.done)

	c.Start()

	if l.in.Source != nil {
		settle := time.AfterFunc(l.in.SettleDelay, func() {
			l.checkBattery(ctx, c)
		})
		defer settle.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Event loop stopped")
			return

		case f := <-l.dispatch:
			f()

		case a := <-l.in.Actions:
			c.Handle(a)

		case ev := <-l.in.Power:
			l.logger.Debug("Power event", zap.Stringer("event", ev))
			switch ev {
			case power.EventOnAC:
				c.OnAC()
			case power.EventOnBattery:
				go l.checkBattery(ctx, c)
			}

		case id := <-l.in.Identities:
			c.SetIdentity(id)

		case <-l.in.Changes:
			if l.in.Reload == nil {
				continue
			}
			st, err := l.in.Reload()
			if err != nil {
				l.logger.Warn("Failed to read changed settings", zap.Error(err))
				continue
			}
			c.Reconcile(st)
		}
	}
}

// checkBattery queries the power source off the loop and runs the battery
// policy on it. Query errors skip the evaluation.
func (l *Loop) checkBattery(ctx context.Context, c *lifecycle.Controller) {
	ctx, cancel := context.WithTimeout(ctx, powerQueryTimeout)
	defer cancel()

	r, err := power.Read(ctx, l.in.Source)
	if err != nil {
		l.logger.Warn("Failed to read battery state", zap.Error(err))
		return
	}
	l.Dispatch(func() { c.EvaluateBatteryPolicy(r.Level, r.OnBattery) })
}
