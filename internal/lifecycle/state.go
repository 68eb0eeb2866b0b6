package lifecycle

import (
	"time"
)

// Settings store keys owned by the controller.
const (
	KeyPaused     = "paused"
	KeyPauseUntil = "pause_until"
	KeyRecognized = "recognized"
	KeyIdentity   = "identity"
)

const trueValue = "true"

// State is the persisted contribution state.
//
// ResumeAt is only set while Paused, and Identity is only non-empty while
// Recognized. Use LoadState to read it so both hold.
type State struct {
	Paused     bool
	ResumeAt   *time.Time
	Recognized bool
	Identity   string
}

// Store is the synchronous key-value persistence the controller writes through.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// LoadState reads the state from the store, normalising inconsistent entries:
// a recognized flag without an identity counts as unrecognized, and a resume
// time on an unpaused state is dropped.
func LoadState(s Store) State {
	var st State

	if v, ok := s.Get(KeyPaused); ok && v == trueValue {
		st.Paused = true
		if raw, ok := s.Get(KeyPauseUntil); ok && raw != "" {
			if at, err := time.Parse(time.RFC3339, raw); err == nil {
				st.ResumeAt = &at
			}
		}
	}

	if v, ok := s.Get(KeyRecognized); ok && v == trueValue {
		if id, ok := s.Get(KeyIdentity); ok && id != "" {
			st.Recognized = true
			st.Identity = id
		}
	}

	return st
}

// SaveState writes every key of st to the store. Absent values are deleted
// rather than written as "false" so the file stays minimal.
// The first error is returned but every key is still attempted.
func SaveState(s Store, st State) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if st.Paused {
		keep(s.Set(KeyPaused, trueValue))
		if st.ResumeAt != nil {
			keep(s.Set(KeyPauseUntil, st.ResumeAt.UTC().Format(time.RFC3339)))
		} else {
			keep(s.Delete(KeyPauseUntil))
		}
	} else {
		keep(s.Delete(KeyPaused))
		keep(s.Delete(KeyPauseUntil))
	}

	if st.Recognized && st.Identity != "" {
		keep(s.Set(KeyRecognized, trueValue))
		keep(s.Set(KeyIdentity, st.Identity))
	} else {
		keep(s.Delete(KeyRecognized))
		keep(s.Delete(KeyIdentity))
	}

	return firstErr
}

// clone returns a copy that shares no pointers with st.
func (st State) clone() State {
	if st.ResumeAt != nil {
		at := *st.ResumeAt
		st.ResumeAt = &at
	}
	return st
}

func sameResumeAt(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
