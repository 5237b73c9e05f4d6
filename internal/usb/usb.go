// Package usb describes USB devices the way Android's UsbManager presents them.
package usb

import "fmt"

// Direction of an endpoint. Values match android.hardware.usb.UsbConstants.
type Direction uint8

const (
	DirOut Direction = 0x00
	DirIn  Direction = 0x80
)

func (d Direction) String() string {
	if d == DirIn {
		return "IN"
	}
	return "OUT"
}

// TransferType of an endpoint (bmAttributes bits 0..1).
type TransferType uint8

const (
	TransferControl     TransferType = 0
	TransferIsochronous TransferType = 1
	TransferBulk        TransferType = 2
	TransferInterrupt   TransferType = 3
)

func (t TransferType) String() string {
	switch t {
	case TransferControl:
		return "CONTROL"
	case TransferIsochronous:
		return "ISOCHRONOUS"
	case TransferBulk:
		return "BULK"
	case TransferInterrupt:
		return "INTERRUPT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// ClassVideo is the USB Video Class interface code.
const ClassVideo = 0x0E

// Endpoint is one endpoint of an interface alternate setting.
type Endpoint struct {
	Address       uint8
	Attributes    uint8
	MaxPacketSize uint16
	Interval      uint8
}

func (e Endpoint) Direction() Direction { return Direction(e.Address & 0x80) }
func (e Endpoint) Type() TransferType   { return TransferType(e.Attributes & 0x03) }
func (e Endpoint) Number() int          { return int(e.Address & 0x0F) }

// PacketSize returns the per-microframe payload size, accounting for
// high-bandwidth multipliers in bits 11..12.
func (e Endpoint) PacketSize() int {
	base := int(e.MaxPacketSize & 0x07FF)
	mult := int((e.MaxPacketSize>>11)&0x03) + 1
	return base * mult
}

// Interface is one interface alternate setting. Index is its position in the
// device's flattened interface list.
type Interface struct {
	Index            int
	Number           uint8
	AlternateSetting uint8
	Class            uint8
	SubClass         uint8
	Protocol         uint8
	Endpoints        []Endpoint
	// Extra holds class-specific descriptors that followed the interface descriptor.
	Extra []byte
}

// Device is a USB device with the interfaces of its first configuration.
type Device struct {
	Name       string
	VendorID   uint16
	ProductID  uint16
	Class      uint8
	SubClass   uint8
	Protocol   uint8
	Interfaces []Interface
}

func (d *Device) String() string {
	return fmt.Sprintf("%s (%04x:%04x)", d.Name, d.VendorID, d.ProductID)
}
