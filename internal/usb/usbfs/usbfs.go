// Package usbfs talks to USB devices through Linux usbfs nodes, either opened
// from /dev/bus/usb or handed over as a file descriptor by Android's
// UsbDeviceConnection.getFileDescriptor().
package usbfs

import (
	"sort"

	"github.com/mikeyg42/otgcam/internal/usb"
)

// DefaultRoot is where usbfs device nodes live.
const DefaultRoot = "/dev/bus/usb"

// maxDescriptorBytes bounds the descriptor read from a node.
const maxDescriptorBytes = 64 * 1024

func sortDevices(devs []usb.Device) {
	sort.Slice(devs, func(i, j int) bool { return devs[i].Name < devs[j].Name })
}
