package power

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/opensourcecitizen/oscnode/internal/scheduler"
)

// Event is a power source transition.
type Event int

const (
	EventOnBattery Event = iota + 1
	EventOnAC
)

func (e Event) String() string {
	switch e {
	case EventOnBattery:
		return "on-battery"
	case EventOnAC:
		return "on-ac"
	default:
		return "unknown"
	}
}

const (
	eventBuffer  = 4
	queryTimeout = 5 * time.Second
)

// Monitor polls a Source and emits an Event whenever the machine switches
// between battery and external power. The first reading only sets the
// baseline.
type Monitor struct {
	src      Source
	interval time.Duration
	logger   *zap.Logger
	events   chan Event

	mu        sync.Mutex
	known     bool
	onBattery bool
}

// NewMonitor creates a monitor polling src every interval.
func NewMonitor(src Source, interval time.Duration, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		src:      src,
		interval: interval,
		logger:   logger.Named("power"),
		events:   make(chan Event, eventBuffer),
	}
}

// Events returns the transition channel.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Job returns the polling job to register with a scheduler.
func (m *Monitor) Job() scheduler.Job {
	return scheduler.Job{
		Name:     "power",
		Interval: m.interval,
		Timeout:  queryTimeout,
		Run:      m.Poll,
	}
}

// Poll takes one reading and emits an event if the power source changed.
// Query errors are logged and count as no change.
func (m *Monitor) Poll(ctx context.Context) {
	onBattery, err := m.src.OnBattery(ctx)
	if err != nil {
		m.logger.Debug("Failed to query power source", zap.Error(err))
		return
	}

	m.mu.Lock()
	changed := m.known && onBattery != m.onBattery
	m.known = true
	m.onBattery = onBattery
	m.mu.Unlock()

	if !changed {
		return
	}

	ev := EventOnAC
	if onBattery {
		ev = EventOnBattery
	}
	m.logger.Info("Power source changed", zap.Stringer("event", ev))

	select {
	case m.events <- ev:
	default:
		m.logger.Warn("Power event dropped, consumer is behind", zap.Stringer("event", ev))
	}
}

// Reading is a combined level and battery state query.
type Reading struct {
	Level     float64
	OnBattery bool
}

// Read queries both the battery state and level.
func Read(ctx context.Context, src Source) (Reading, error) {
	onBattery, err := src.OnBattery(ctx)
	if err != nil {
		return Reading{}, err
	}
	level, err := src.Level(ctx)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Level: level, OnBattery: onBattery}, nil
}
