package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

var (
	activeColor   = color.RGBA{R: 0x2e, G: 0x9e, B: 0x5b, A: 0xff}
	disabledColor = color.RGBA{R: 0x9a, G: 0x9a, B: 0x9a, A: 0xff}

	iconOnce     sync.Once
	activeIcon   []byte
	disabledIcon []byte
)

// Icon returns the tray icon for the active or paused state, encoded for
// the current platform.
func Icon(active bool) []byte {
	iconOnce.Do(func() {
		activeIcon = platformIcon(ringPNG(activeColor))
		disabledIcon = platformIcon(ringPNG(disabledColor))
	})
	if active {
		return activeIcon
	}
	return disabledIcon
}

// IconPNG returns the raw PNG of the active icon, for notifications.
func IconPNG() []byte {
	return ringPNG(activeColor)
}

// ringPNG draws a 32x32 ring with a filled centre dot.
func ringPNG(c color.RGBA) []byte {
	const size = 32
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cx, cy := float64(size)/2, float64(size)/2
	outer := float64(size)/2 - 1
	inner := outer - 4
	dot := outer / 3
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			d := dx*dx + dy*dy
			if (d <= outer*outer && d >= inner*inner) || d <= dot*dot {
				img.Set(x, y, c)
			}
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
