package tray

// Item is a tray menu entry.
type Item interface {
	AddSubItem(title string) Item
	SetTitle(title string)
	Show()
	Hide()
	Enable()
	Disable()
	Clicked() <-chan struct{}
}

// Builder creates tray entries in display order.
type Builder interface {
	AddItem(title string) Item
	AddSeparator()
	SetIcon(icon []byte)
	SetTooltip(tooltip string)
}
