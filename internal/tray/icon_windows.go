//go:build windows

package tray

import (
	"bytes"
	"encoding/binary"
)

// platformIcon wraps the PNG in a single-image ICO container, which is what
// the Windows tray loads.
func platformIcon(pngData []byte) []byte {
	var buf bytes.Buffer
	// ICONDIR
	binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY: 32x32, no palette, 1 plane, 32 bpp
	buf.Write([]byte{32, 32, 0, 0})
	binary.Write(&buf, binary.LittleEndian, [2]uint16{1, 32})
	binary.Write(&buf, binary.LittleEndian, [2]uint32{uint32(len(pngData)), 6 + 16})
	buf.Write(pngData)
	return buf.Bytes()
}
