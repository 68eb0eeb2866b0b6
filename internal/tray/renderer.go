package tray

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/opensourcecitizen/oscnode/internal/lifecycle"
	"github.com/opensourcecitizen/oscnode/internal/updater"
)

// Tooltip is shown when hovering the tray icon.
const Tooltip = "Open Source Citizen"

// Update prompt texts.
const (
	restartTitleFormat = "Restart to Update (%s)"
	laterTitle         = "Later"
	updateNotification = "A new version has been downloaded. Restart the application to apply the updates."
)

// Notifier shows desktop notifications.
type Notifier interface {
	Notify(title, body string)
}

// slot is one menu position: a plain entry and a submenu entry, of which at
// most one is visible.
type slot struct {
	plain    Item
	sub      Item
	children [maxChildren]Item

	action       lifecycle.Action
	childActions [maxChildren]lifecycle.Action
}

// Renderer maps lifecycle menus onto pre-allocated tray items and tray
// clicks back onto actions.
type Renderer struct {
	builder  Builder
	notifier Notifier
	logger   *zap.Logger

	actions chan lifecycle.Action
	prompt  chan bool
	done    chan struct{}
	once    sync.Once

	restartItem Item
	laterItem   Item

	mu     sync.Mutex
	groups [][]*slot
}

// NewRenderer allocates the tray items for layout and starts forwarding
// clicks. Call Close to stop forwarding.
func NewRenderer(b Builder, layout Layout, notifier Notifier, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Renderer{
		builder:  b,
		notifier: notifier,
		logger:   logger.Named("tray"),
		actions:  make(chan lifecycle.Action, 8),
		prompt:   make(chan bool, 1),
		done:     make(chan struct{}),
	}

	b.SetTooltip(Tooltip)

	r.restartItem = b.AddItem("")
	r.restartItem.Hide()
	r.laterItem = b.AddItem(laterTitle)
	r.laterItem.Hide()
	go r.forwardPrompt(r.restartItem, true)
	go r.forwardPrompt(r.laterItem, false)

	for gi, n := range layout {
		if gi > 0 {
			b.AddSeparator()
		}
		group := make([]*slot, n)
		for pi := range group {
			s := &slot{plain: b.AddItem("")}
			s.plain.Hide()
			s.sub = b.AddItem("")
			for ci := range s.children {
				s.children[ci] = s.sub.AddSubItem("")
				go r.forward(s.children[ci], s, ci)
			}
			s.sub.Hide()
			go r.forward(s.plain, s, -1)
			group[pi] = s
		}
		r.groups = append(r.groups, group)
	}

	return r
}

// Actions delivers the action of every clicked menu entry.
func (r *Renderer) Actions() <-chan lifecycle.Action {
	return r.actions
}

// Close stops click forwarding.
func (r *Renderer) Close() {
	r.once.Do(func() { close(r.done) })
}

// Render shows menu in the tray.
func (r *Renderer) Render(menu lifecycle.Menu) {
	r.mu.Lock()
	defer r.mu.Unlock()

	gs := groups(menu)
	if len(gs) > len(r.groups) {
		r.logger.Warn("Menu has more groups than the tray layout",
			zap.Int("groups", len(gs)), zap.Int("layout", len(r.groups)))
	}

	for gi, group := range r.groups {
		var items []lifecycle.MenuItem
		if gi < len(gs) {
			items = gs[gi]
		}
		if len(items) > len(group) {
			r.logger.Warn("Menu group does not fit the tray layout",
				zap.Int("group", gi), zap.Int("items", len(items)), zap.Int("slots", len(group)))
		}
		for pi, s := range group {
			if pi < len(items) {
				r.apply(s, items[pi])
			} else {
				r.clear(s)
			}
		}
	}
}

// SetActive switches between the active and paused icon.
func (r *Renderer) SetActive(active bool) {
	r.builder.SetIcon(Icon(active))
}

// PromptRestart shows the update entries and waits for the user's choice.
func (r *Renderer) PromptRestart(ctx context.Context, rel updater.Release) (bool, error) {
	// Drop a stale click from an earlier prompt.
	select {
	case <-r.prompt:
	default:
	}

	r.restartItem.SetTitle(fmt.Sprintf(restartTitleFormat, rel.Name))
	r.restartItem.Show()
	r.laterItem.Show()
	defer func() {
		r.restartItem.Hide()
		r.laterItem.Hide()
	}()

	if r.notifier != nil {
		r.notifier.Notify(lifecycle.NotificationTitle, updateNotification)
	}

	select {
	case restart := <-r.prompt:
		r.logger.Info("Update prompt answered", zap.Bool("restart", restart))
		return restart, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-r.done:
		return false, nil
	}
}

func (r *Renderer) apply(s *slot, item lifecycle.MenuItem) {
	switch item.Kind {
	case lifecycle.KindLabel, lifecycle.KindAction:
		s.sub.Hide()
		s.plain.SetTitle(item.Label)
		if item.Kind == lifecycle.KindLabel {
			s.plain.Disable()
			s.action = ""
		} else {
			s.plain.Enable()
			s.action = item.Action
		}
		s.plain.Show()
	case lifecycle.KindSubmenu:
		s.plain.Hide()
		s.action = ""
		s.sub.SetTitle(item.Label)
		s.sub.Enable()
		if len(item.Children) > maxChildren {
			r.logger.Warn("Submenu has more entries than allocated", zap.String("label", item.Label))
		}
		for ci, child := range s.children {
			if ci < len(item.Children) {
				child.SetTitle(item.Children[ci].Label)
				child.Enable()
				child.Show()
				s.childActions[ci] = item.Children[ci].Action
			} else {
				child.Hide()
				s.childActions[ci] = ""
			}
		}
		s.sub.Show()
	default:
		r.clear(s)
	}
}

func (r *Renderer) clear(s *slot) {
	s.plain.Hide()
	s.sub.Hide()
	s.action = ""
	for ci := range s.childActions {
		s.childActions[ci] = ""
	}
}

// forward sends the action of s (child < 0) or of its child entry on
// every click.
func (r *Renderer) forward(item Item, s *slot, child int) {
	for {
		select {
		case <-r.done:
			return
		case <-item.Clicked():
		}

		r.mu.Lock()
		a := s.action
		if child >= 0 {
			a = s.childActions[child]
		}
		r.mu.Unlock()

		if a == "" {
			continue
		}
		select {
		case r.actions <- a:
		case <-r.done:
			return
		}
	}
}

func (r *Renderer) forwardPrompt(item Item, restart bool) {
	for {
		select {
		case <-r.done:
			return
		case <-item.Clicked():
		}
		select {
		case r.prompt <- restart:
		default:
		}
	}
}
