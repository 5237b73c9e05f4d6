package usb

import (
	"encoding/binary"
	"fmt"
)

// Standard descriptor types.
const (
	DescDevice        = 0x01
	DescConfiguration = 0x02
	DescInterface     = 0x04
	DescEndpoint      = 0x05
)

const (
	deviceDescLen    = 18
	configDescLen    = 9
	interfaceDescLen = 9
	endpointDescLen  = 7
)

// ParseDescriptors decodes the blob returned by reading a usbfs node (or by
// UsbDeviceConnection.getRawDescriptors): the device descriptor followed by
// every configuration descriptor. Only the first configuration is decoded.
func ParseDescriptors(name string, raw []byte) (*Device, error) {
	if len(raw) < deviceDescLen {
		return nil, fmt.Errorf("device descriptor: %d bytes: %w", len(raw), ErrInvalidDescriptor)
	}
	if raw[0] != deviceDescLen || raw[1] != DescDevice {
		return nil, fmt.Errorf("device descriptor: length %d type 0x%02x: %w", raw[0], raw[1], ErrInvalidDescriptor)
	}

	dev := &Device{
		Name:      name,
		Class:     raw[4],
		SubClass:  raw[5],
		Protocol:  raw[6],
		VendorID:  binary.LittleEndian.Uint16(raw[8:10]),
		ProductID: binary.LittleEndian.Uint16(raw[10:12]),
	}
	if raw[17] == 0 || len(raw) == deviceDescLen {
		return dev, nil
	}

	cfg := raw[deviceDescLen:]
	if len(cfg) < configDescLen || cfg[1] != DescConfiguration || cfg[0] < configDescLen {
		return nil, fmt.Errorf("configuration descriptor: %w", ErrInvalidDescriptor)
	}
	total := int(binary.LittleEndian.Uint16(cfg[2:4]))
	if total < configDescLen || total > len(cfg) {
		return nil, fmt.Errorf("configuration descriptor: total length %d of %d available: %w", total, len(cfg), ErrInvalidDescriptor)
	}

	ifaces, err := parseConfiguration(cfg[cfg[0]:total])
	if err != nil {
		return nil, err
	}
	dev.Interfaces = ifaces
	return dev, nil
}

func parseConfiguration(b []byte) ([]Interface, error) {
	var ifaces []Interface
	cur := -1
	for off := 0; off < len(b); {
		if len(b)-off < 2 {
			return nil, fmt.Errorf("descriptor header at offset %d: %w", off, ErrInvalidDescriptor)
		}
		length := int(b[off])
		if length < 2 || off+length > len(b) {
			return nil, fmt.Errorf("descriptor length %d at offset %d: %w", length, off, ErrInvalidDescriptor)
		}
		d := b[off : off+length]

		switch d[1] {
		case DescInterface:
			if length < interfaceDescLen {
				return nil, fmt.Errorf("interface descriptor length %d: %w", length, ErrInvalidDescriptor)
			}
			ifaces = append(ifaces, Interface{
				Index:            len(ifaces),
				Number:           d[2],
				AlternateSetting: d[3],
				Class:            d[5],
				SubClass:         d[6],
				Protocol:         d[7],
			})
			cur = len(ifaces) - 1
		case DescEndpoint:
			if length < endpointDescLen {
				return nil, fmt.Errorf("endpoint descriptor length %d: %w", length, ErrInvalidDescriptor)
			}
			if cur < 0 {
				return nil, fmt.Errorf("endpoint descriptor outside an interface: %w", ErrInvalidDescriptor)
			}
			ifaces[cur].Endpoints = append(ifaces[cur].Endpoints, Endpoint{
				Address:       d[2],
				Attributes:    d[3],
				MaxPacketSize: binary.LittleEndian.Uint16(d[4:6]),
				Interval:      d[6],
			})
		default:
			if cur >= 0 {
				ifaces[cur].Extra = append(ifaces[cur].Extra, d...)
			}
		}
		off += length
	}
	return ifaces, nil
}
