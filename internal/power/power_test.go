package power

import (
	"context"
	"errors"
	"testing"

	"github.com/distatus/battery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bat(state battery.AgnosticState, current, full float64) *battery.Battery {
	return &battery.Battery{
		State:   battery.State{Raw: state},
		Current: current,
		Full:    full,
	}
}

func TestBatterySource(t *testing.T) {
	tests := []struct {
		name          string
		bats          []*battery.Battery
		err           error
		wantLevel     float64
		wantOnBattery bool
		wantErr       bool
	}{
		{
			name:      "no battery",
			wantLevel: 1,
		},
		{
			name:          "single discharging",
			bats:          []*battery.Battery{bat(battery.Discharging, 25, 100)},
			wantLevel:     0.25,
			wantOnBattery: true,
		},
		{
			name:      "charging",
			bats:      []*battery.Battery{bat(battery.Charging, 50, 100)},
			wantLevel: 0.5,
		},
		{
			name: "two batteries summed",
			bats: []*battery.Battery{
				bat(battery.Discharging, 10, 50),
				bat(battery.Idle, 40, 50),
			},
			wantLevel:     0.5,
			wantOnBattery: true,
		},
		{
			name:      "overfull clamps",
			bats:      []*battery.Battery{bat(battery.Full, 105, 100)},
			wantLevel: 1,
		},
		{
			name:    "fatal error",
			err:     errors.New("no power supply class"),
			wantErr: true,
		},
		{
			name: "partial error keeps state",
			bats: []*battery.Battery{bat(battery.Discharging, 20, 100)},
			err: battery.Errors{
				battery.ErrPartial{ChargeRate: errors.New("unsupported")},
			},
			wantLevel:     0.2,
			wantOnBattery: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &BatterySource{getAll: func() ([]*battery.Battery, error) {
				return tt.bats, tt.err
			}}
			ctx := context.Background()

			level, err := src.Level(ctx)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantLevel, level, 1e-9)

			onBattery, err := src.OnBattery(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOnBattery, onBattery)

			charging, err := IsCharging(ctx, src)
			require.NoError(t, err)
			assert.Equal(t, !tt.wantOnBattery, charging)
		})
	}
}

type scriptedSource struct {
	readings []bool
	errs     []error
	level    float64
	i        int
}

func (s *scriptedSource) OnBattery(context.Context) (bool, error) {
	i := s.i
	s.i++
	if i < len(s.errs) && s.errs[i] != nil {
		return false, s.errs[i]
	}
	return s.readings[i], nil
}

func (s *scriptedSource) Level(context.Context) (float64, error) {
	return s.level, nil
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestMonitor_EmitsTransitionsOnly(t *testing.T) {
	src := &scriptedSource{
		readings: []bool{false, false, true, true, false, true, false},
		errs:     []error{nil, nil, nil, nil, nil, errors.New("busy"), nil},
	}
	m := NewMonitor(src, 0, nil)

	for range src.readings {
		m.Poll(context.Background())
	}

	assert.Equal(t, []Event{EventOnBattery, EventOnAC}, drain(m.Events()),
		"baseline and repeated readings emit nothing; the error is no change")
}

func TestMonitor_FirstReadingIsBaseline(t *testing.T) {
	m := NewMonitor(&scriptedSource{readings: []bool{true}}, 0, nil)
	m.Poll(context.Background())

	assert.Empty(t, drain(m.Events()))
}

func TestRead(t *testing.T) {
	r, err := Read(context.Background(), &scriptedSource{readings: []bool{true}, level: 0.4})
	require.NoError(t, err)
	assert.Equal(t, Reading{Level: 0.4, OnBattery: true}, r)
}
