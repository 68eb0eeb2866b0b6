package lifecycle

import (
	"errors"
	"sort"
	"time"
)

type memStore struct {
	values  map[string]string
	failSet bool
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]string)}
}

func (s *memStore) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *memStore) Set(key, value string) error {
	if s.failSet {
		return errors.New("disk full")
	}
	s.values[key] = value
	return nil
}

func (s *memStore) Delete(key string) error {
	delete(s.values, key)
	return nil
}

type fakeHost struct {
	shown      []string
	closed     int
	mainShown  int
	aboutShown int
	authURLs   []string
	showErr    error
	panicShow  bool
}

func (h *fakeHost) ShowHiddenTask(content string) error {
	if h.panicShow {
		panic("window system gone")
	}
	h.shown = append(h.shown, content)
	return h.showErr
}

func (h *fakeHost) CloseHiddenTask() error {
	h.closed++
	return nil
}

func (h *fakeHost) ShowMainWindow() error {
	h.mainShown++
	return nil
}

func (h *fakeHost) ShowAbout() error {
	h.aboutShown++
	return nil
}

func (h *fakeHost) ShowAuthWindow(loginURL string) error {
	h.authURLs = append(h.authURLs, loginURL)
	return nil
}

type fakeNotifier struct {
	bodies []string
}

func (n *fakeNotifier) Notify(title, body string) {
	n.bodies = append(n.bodies, body)
}

type fakeRenderer struct {
	menus  []Menu
	active []bool
}

func (r *fakeRenderer) Render(menu Menu) {
	r.menus = append(r.menus, menu)
}

func (r *fakeRenderer) SetActive(active bool) {
	r.active = append(r.active, active)
}

func (r *fakeRenderer) last() Menu {
	if len(r.menus) == 0 {
		return nil
	}
	return r.menus[len(r.menus)-1]
}

// fakeClock fires timers synchronously from Advance.
type fakeClock struct {
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{clock: c, at: c.now.Add(d), d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// pending returns timers that are neither stopped nor fired.
func (c *fakeClock) pending() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
	due := c.pending()
	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		if !t.at.After(c.now) && !t.stopped {
			t.fired = true
			t.f()
		}
	}
}
