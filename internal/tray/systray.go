package tray

import (
	"github.com/getlantern/systray"
)

// Run starts the system tray and blocks the calling goroutine, which must be
// the main one. onReady runs once the tray is up; onExit runs after Quit.
func Run(onReady func(b Builder), onExit func()) {
	systray.Run(func() { onReady(systrayBuilder{}) }, onExit)
}

// Quit stops the tray; Run returns after onExit.
func Quit() {
	systray.Quit()
}

type systrayBuilder struct{}

func (systrayBuilder) AddItem(title string) Item {
	return systrayItem{systray.AddMenuItem(title, "")}
}

func (systrayBuilder) AddSeparator() {
	systray.AddSeparator()
}

func (systrayBuilder) SetIcon(icon []byte) {
	systray.SetIcon(icon)
}

func (systrayBuilder) SetTooltip(tooltip string) {
	systray.SetTooltip(tooltip)
}

type systrayItem struct {
	*systray.MenuItem
}

func (i systrayItem) AddSubItem(title string) Item {
	return systrayItem{i.AddSubMenuItem(title, "")}
}

func (i systrayItem) Clicked() <-chan struct{} {
	return i.ClickedCh
}
