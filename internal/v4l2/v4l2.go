// Package v4l2 captures YUYV frames from a host webcam through Video4Linux2.
// It feeds the same frame pipeline as the usbfs path so the JPEG, preview and
// snapshot stages can be exercised on a desktop.
package v4l2

import (
	"errors"
	"strings"
)

// FourCCYUYV is V4L2_PIX_FMT_YUYV, the packed 4:2:2 layout UVC cameras emit.
const FourCCYUYV uint32 = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24

var (
	ErrNotSupported = errors.New("v4l2: not supported on this platform")
	ErrFormat       = errors.New("v4l2: device does not offer YUYV")
)

// Handler receives one complete frame. The slice is owned by the handler.
type Handler func(frame []byte)

// FourCC packs a four character code. Shorter codes are space padded.
func FourCC(code string) uint32 {
	code = (code + "    ")[:4]
	return uint32(code[0]) | uint32(code[1])<<8 | uint32(code[2])<<16 | uint32(code[3])<<24
}

// FourCCString unpacks a four character code.
func FourCCString(v uint32) string {
	b := []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	return strings.TrimRight(string(b), " \x00")
}
