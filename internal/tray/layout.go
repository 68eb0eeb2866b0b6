// Package tray shows the lifecycle menu in the system tray.
//
// The tray library cannot remove items or separators once added, so the
// renderer allocates a fixed set of slots up front and fills, hides and
// retitles them on every render.
package tray

import (
	"github.com/opensourcecitizen/oscnode/internal/lifecycle"
)

// maxChildren is the number of submenu entries allocated per slot.
const maxChildren = 3

// Layout is the number of slots per separator-delimited group.
type Layout []int

// LayoutFor returns the smallest layout that fits every menu.
func LayoutFor(menus ...lifecycle.Menu) Layout {
	var layout Layout
	for _, m := range menus {
		for i, g := range groups(m) {
			if i >= len(layout) {
				layout = append(layout, 0)
			}
			if len(g) > layout[i] {
				layout[i] = len(g)
			}
		}
	}
	return layout
}

// DefaultLayout fits every menu the lifecycle controller can build.
func DefaultLayout() Layout {
	return LayoutFor(
		lifecycle.BuildMenu(lifecycle.State{}),
		lifecycle.BuildMenu(lifecycle.State{Paused: true, Recognized: true, Identity: "0"}),
	)
}

// groups splits m at its separators.
func groups(m lifecycle.Menu) [][]lifecycle.MenuItem {
	out := [][]lifecycle.MenuItem{nil}
	for _, item := range m {
		if item.Kind == lifecycle.KindSeparator {
			out = append(out, nil)
			continue
		}
		out[len(out)-1] = append(out[len(out)-1], item)
	}
	return out
}
