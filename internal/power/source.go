// Package power reports the battery state and turns AC/battery changes into
// events.
package power

import (
	"context"
	"errors"
	"fmt"

	"github.com/distatus/battery"
)

// Source answers power-state queries.
type Source interface {
	// Level is the combined charge of all batteries in [0, 1]. Machines
	// without a battery report 1.
	Level(ctx context.Context) (float64, error)
	// OnBattery reports whether any battery is discharging.
	OnBattery(ctx context.Context) (bool, error)
}

// IsCharging reports whether the machine runs on external power.
func IsCharging(ctx context.Context, src Source) (bool, error) {
	onBattery, err := src.OnBattery(ctx)
	if err != nil {
		return false, err
	}
	return !onBattery, nil
}

// BatterySource reads the system batteries through distatus/battery.
type BatterySource struct {
	getAll func() ([]*battery.Battery, error)
}

// NewBatterySource returns a Source over the system batteries.
func NewBatterySource() *BatterySource {
	return &BatterySource{getAll: battery.GetAll}
}

// Level implements Source.
func (s *BatterySource) Level(ctx context.Context) (float64, error) {
	bats, err := s.read(ctx)
	if err != nil {
		return 0, err
	}

	var current, full float64
	for _, b := range bats {
		current += b.Current
		full += b.Full
	}
	if full <= 0 {
		return 1, nil
	}

	level := current / full
	if level > 1 {
		level = 1
	}
	return level, nil
}

// OnBattery implements Source.
func (s *BatterySource) OnBattery(ctx context.Context) (bool, error) {
	bats, err := s.read(ctx)
	if err != nil {
		return false, err
	}
	for _, b := range bats {
		if b.State.Raw == battery.Discharging {
			return true, nil
		}
	}
	return false, nil
}

// read returns the usable batteries. Partial read errors are tolerated as
// long as at least the state of a battery came through.
func (s *BatterySource) read(ctx context.Context) ([]*battery.Battery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bats, err := s.getAll()
	if err != nil {
		var errs battery.Errors
		if !errors.As(err, &errs) {
			return nil, fmt.Errorf("reading batteries: %w", err)
		}
		usable := bats[:0:0]
		for i, b := range bats {
			if b == nil {
				continue
			}
			if i < len(errs) && errs[i] != nil {
				var partial battery.ErrPartial
				if !errors.As(errs[i], &partial) || partial.State != nil {
					continue
				}
			}
			usable = append(usable, b)
		}
		if len(usable) == 0 && len(bats) > 0 {
			return nil, fmt.Errorf("reading batteries: %w", err)
		}
		return usable, nil
	}

	usable := bats[:0:0]
	for _, b := range bats {
		if b != nil {
			usable = append(usable, b)
		}
	}
	return usable, nil
}
