package camera

import (
	"fmt"

	"github.com/mikeyg42/otgcam/internal/usb"
)

// Finder picks the first IN endpoint across the given devices.
type Finder struct {
	notify Notifier
	// VideoClassOnly restricts candidates to USB Video Class interfaces.
	VideoClassOnly bool
}

// NewFinder creates a finder reporting to n.
func NewFinder(n Notifier, videoClassOnly bool) *Finder {
	return &Finder{notify: orNop(n), VideoClassOnly: videoClassOnly}
}

// Find walks every device, interface and endpoint, reporting each, and returns
// the first IN endpoint it meets.
func (f *Finder) Find(devices []usb.Device) (*Candidate, error) {
	f.notify.Show("Searching for camera...")

	for d := range devices {
		dev := &devices[d]
		f.notify.Show("Device found: " + dev.Name)

		for i, intf := range dev.Interfaces {
			f.notify.Show(fmt.Sprintf("Interface %d: Class = %d, SubClass = %d", i, intf.Class, intf.SubClass))

			for j, ep := range intf.Endpoints {
				f.notify.Show(fmt.Sprintf("Endpoint %d: Address = %d, Attributes = %d, Direction = %d, Type = %d",
					j, ep.Address, ep.Attributes, uint8(ep.Direction()), uint8(ep.Type())))

				if ep.Direction() != usb.DirIn {
					continue
				}
				if f.VideoClassOnly && intf.Class != usb.ClassVideo {
					continue
				}
				f.notify.Show(fmt.Sprintf("Trying to open device with interface %d and endpoint %d", i, j))
				return &Candidate{Device: dev, Interface: intf, Endpoint: ep}, nil
			}
		}
	}

	f.notify.Show("No suitable USB camera found")
	return nil, ErrNoCamera
}
