// Package camera finds a USB camera, claims it and walks its endpoints looking
// for one that delivers data.
package camera

import (
	"errors"
	"time"

	"github.com/mikeyg42/otgcam/internal/usb"
)

var (
	ErrNoCamera = errors.New("no suitable USB camera found")
	ErrNotReady = errors.New("interface or connection is nil")
	ErrClaim    = errors.New("failed to claim interface")
	ErrNoData   = errors.New("no endpoint delivered data")
)

// Conn is an open device connection. *usbfs.Conn satisfies it.
type Conn interface {
	ClaimInterface(intf usb.Interface, force bool) error
	ReleaseInterface(intf usb.Interface) error
	BulkTransfer(ep usb.Endpoint, buf []byte, timeout time.Duration) (int, error)
	IsoTransfer(ep usb.Endpoint, buf []byte, timeout time.Duration) (int, error)
	Close() error
}

// Notifier displays progress text to the user. *messages.Board satisfies it.
type Notifier interface {
	Show(msg string)
}

// PayloadHandler receives bytes read from an endpoint. The slice is only valid
// for the duration of the call.
type PayloadHandler func(payload []byte)

// Candidate is the device, interface and endpoint chosen by the finder.
type Candidate struct {
	Device    *usb.Device
	Interface usb.Interface
	Endpoint  usb.Endpoint
}

type nopNotifier struct{}

func (nopNotifier) Show(string) {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
