package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadState(t *testing.T) {
	at := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		values map[string]string
		want   State
	}{
		{"empty store", nil, State{}},
		{"paused", map[string]string{KeyPaused: "true"}, State{Paused: true}},
		{"paused with resume time",
			map[string]string{KeyPaused: "true", KeyPauseUntil: at.Format(time.RFC3339)},
			State{Paused: true, ResumeAt: &at}},
		{"resume time without pause is dropped",
			map[string]string{KeyPauseUntil: at.Format(time.RFC3339)},
			State{}},
		{"garbled resume time is dropped",
			map[string]string{KeyPaused: "true", KeyPauseUntil: "tomorrow"},
			State{Paused: true}},
		{"recognized",
			map[string]string{KeyRecognized: "true", KeyIdentity: "42"},
			State{Recognized: true, Identity: "42"}},
		{"recognized without identity",
			map[string]string{KeyRecognized: "true"},
			State{}},
		{"identity without recognized flag",
			map[string]string{KeyIdentity: "42"},
			State{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMemStore()
			for k, v := range tt.values {
				s.values[k] = v
			}
			got := LoadState(s)
			assert.Equal(t, tt.want.Paused, got.Paused)
			assert.Equal(t, tt.want.Recognized, got.Recognized)
			assert.Equal(t, tt.want.Identity, got.Identity)
			assert.True(t, sameResumeAt(tt.want.ResumeAt, got.ResumeAt), "ResumeAt = %v, want %v", got.ResumeAt, tt.want.ResumeAt)
		})
	}
}

func TestSaveState_RoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	s := newMemStore()

	in := State{Paused: true, ResumeAt: &at, Recognized: true, Identity: "abc"}
	assert.NoError(t, SaveState(s, in))

	out := LoadState(s)
	assert.True(t, out.Paused)
	assert.True(t, sameResumeAt(in.ResumeAt, out.ResumeAt))
	assert.Equal(t, "abc", out.Identity)

	assert.NoError(t, SaveState(s, State{}))
	assert.Empty(t, s.values)
}
