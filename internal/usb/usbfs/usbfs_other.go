//go:build !linux

package usbfs

import (
	"time"

	"github.com/mikeyg42/otgcam/internal/usb"
)

// Conn is unavailable off Linux; every method reports usb.ErrNotSupported.
type Conn struct{}

func Open(path string) (*Conn, error)             { return nil, usb.ErrNotSupported }
func FromFD(fd int, name string) (*Conn, error)   { return nil, usb.ErrNotSupported }
func Enumerate(root string) ([]usb.Device, error) { return nil, usb.ErrNotSupported }

func (c *Conn) Device() *usb.Device                                 { return nil }
func (c *Conn) ClaimInterface(intf usb.Interface, force bool) error { return usb.ErrNotSupported }
func (c *Conn) ReleaseInterface(intf usb.Interface) error           { return usb.ErrNotSupported }
func (c *Conn) Close() error                                        { return nil }

func (c *Conn) BulkTransfer(ep usb.Endpoint, buf []byte, timeout time.Duration) (int, error) {
	return 0, usb.ErrNotSupported
}

func (c *Conn) IsoTransfer(ep usb.Endpoint, buf []byte, timeout time.Duration) (int, error) {
	return 0, usb.ErrNotSupported
}
