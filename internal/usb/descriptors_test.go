package usb

import (
	"bytes"
	"errors"
	"testing"
)

// webcamDescriptors returns a trimmed descriptor blob of a UVC webcam: a video
// control interface with an interrupt endpoint and a streaming interface whose
// second alternate setting carries an isochronous endpoint.
func webcamDescriptors() []byte {
	device := []byte{18, DescDevice, 0x00, 0x02, 0xEF, 0x02, 0x01, 64, 0x6D, 0x04, 0x25, 0x08, 0x10, 0x00, 1, 2, 0, 1}
	body := [][]byte{
		{8, 0x0B, 0, 2, 0x0E, 0x03, 0x00, 2},
		{9, DescInterface, 0, 0, 1, ClassVideo, 0x01, 0x00, 2},
		{13, 0x24, 0x01, 0x00, 0x01, 0x4D, 0x00, 0x80, 0x8D, 0x5B, 0x00, 1, 1},
		{7, DescEndpoint, 0x83, 0x03, 0x10, 0x00, 6},
		{5, 0x25, 0x03, 0x10, 0x00},
		{9, DescInterface, 1, 0, 0, ClassVideo, 0x02, 0x00, 0},
		{4, 0x24, 0x01, 0x01},
		{9, DescInterface, 1, 1, 1, ClassVideo, 0x02, 0x00, 0},
		{7, DescEndpoint, 0x81, 0x05, 0x00, 0x14, 1},
	}
	cfg := bytes.Join(body, nil)
	total := configDescLen + len(cfg)
	header := []byte{9, DescConfiguration, byte(total), byte(total >> 8), 2, 1, 0, 0x80, 250}

	out := append([]byte{}, device...)
	out = append(out, header...)
	return append(out, cfg...)
}

func TestParseDescriptorsWebcam(t *testing.T) {
	dev, err := ParseDescriptors("/dev/bus/usb/001/004", webcamDescriptors())
	if err != nil {
		t.Fatalf("ParseDescriptors failed: %v", err)
	}

	if dev.VendorID != 0x046D || dev.ProductID != 0x0825 {
		t.Fatalf("unexpected ids %04x:%04x", dev.VendorID, dev.ProductID)
	}
	if dev.Name != "/dev/bus/usb/001/004" {
		t.Fatalf("name = %q", dev.Name)
	}
	if len(dev.Interfaces) != 3 {
		t.Fatalf("expected 3 interface settings, got %d", len(dev.Interfaces))
	}

	vc := dev.Interfaces[0]
	if vc.Index != 0 || vc.Class != ClassVideo || vc.SubClass != 0x01 {
		t.Fatalf("unexpected control interface %+v", vc)
	}
	if len(vc.Endpoints) != 1 || vc.Endpoints[0].Type() != TransferInterrupt || vc.Endpoints[0].Direction() != DirIn {
		t.Fatalf("unexpected control endpoints %+v", vc.Endpoints)
	}
	// class-specific interface and endpoint descriptors are retained
	if len(vc.Extra) != 13+5 {
		t.Fatalf("expected 18 extra bytes, got %d", len(vc.Extra))
	}

	alt0 := dev.Interfaces[1]
	if alt0.Number != 1 || alt0.AlternateSetting != 0 || len(alt0.Endpoints) != 0 {
		t.Fatalf("unexpected alt 0 %+v", alt0)
	}

	alt1 := dev.Interfaces[2]
	if alt1.Index != 2 || alt1.AlternateSetting != 1 || len(alt1.Endpoints) != 1 {
		t.Fatalf("unexpected alt 1 %+v", alt1)
	}
	ep := alt1.Endpoints[0]
	if ep.Type() != TransferIsochronous || ep.Number() != 1 {
		t.Fatalf("unexpected streaming endpoint %+v", ep)
	}
	if ep.PacketSize() != 3*1024 {
		t.Fatalf("PacketSize = %d, want 3072", ep.PacketSize())
	}
}

func TestParseDescriptorsDeviceOnly(t *testing.T) {
	raw := webcamDescriptors()[:deviceDescLen]
	dev, err := ParseDescriptors("x", raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(dev.Interfaces) != 0 {
		t.Fatalf("expected no interfaces, got %d", len(dev.Interfaces))
	}
}

func TestParseDescriptorsInvalid(t *testing.T) {
	good := webcamDescriptors()

	badLength := append([]byte{}, good...)
	badLength[deviceDescLen+configDescLen] = 0 // first body descriptor claims length 0

	badTotal := append([]byte{}, good...)
	badTotal[deviceDescLen+2] = 0xFF
	badTotal[deviceDescLen+3] = 0xFF

	orphanEndpoint := append([]byte{}, good[:deviceDescLen]...)
	orphanEndpoint = append(orphanEndpoint, 9, DescConfiguration, 16, 0, 1, 1, 0, 0x80, 50)
	orphanEndpoint = append(orphanEndpoint, 7, DescEndpoint, 0x81, 0x02, 0x00, 0x02, 0)

	testCases := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"short device", good[:10]},
		{"wrong device type", append([]byte{18, DescConfiguration}, good[2:]...)},
		{"bad descriptor length", badLength},
		{"bad total length", badTotal},
		{"endpoint outside interface", orphanEndpoint},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDescriptors("x", tc.raw)
			if !errors.Is(err, ErrInvalidDescriptor) {
				t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
			}
		})
	}
}

func TestEndpointAccessors(t *testing.T) {
	ep := Endpoint{Address: 0x02, Attributes: 0x02, MaxPacketSize: 512}
	if ep.Direction() != DirOut || ep.Type() != TransferBulk || ep.PacketSize() != 512 {
		t.Fatalf("unexpected accessors for %+v", ep)
	}
	if TransferBulk.String() != "BULK" || DirIn.String() != "IN" {
		t.Fatal("unexpected string forms")
	}
}

func TestTransferErrorUnwrap(t *testing.T) {
	err := &TransferError{Op: "bulk", Endpoint: 0x81, Err: ErrTimeout}
	if !errors.Is(err, ErrTimeout) {
		t.Fatal("TransferError should unwrap to ErrTimeout")
	}
	if err.Error() != "bulk endpoint 0x81: transfer timed out" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
