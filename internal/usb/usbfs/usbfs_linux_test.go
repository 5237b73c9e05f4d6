//go:build linux

package usbfs

import (
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"
)

func TestRequestNumbers(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("reference values are for 64-bit kernels")
	}
	testCases := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"BULK", usbdevfsBulk, 0xC0185502},
		{"SETINTERFACE", usbdevfsSetInterface, 0x80085504},
		{"SUBMITURB", usbdevfsSubmitURB, 0x8038550A},
		{"DISCARDURB", usbdevfsDiscardURB, 0x0000550B},
		{"REAPURBNDELAY", usbdevfsReapURBNDelay, 0x4008550D},
		{"CLAIMINTERFACE", usbdevfsClaimInterface, 0x8004550F},
		{"RELEASEINTERFACE", usbdevfsReleaseInterface, 0x80045510},
		{"IOCTL", usbdevfsIoctl, 0xC0105512},
		{"DISCONNECT", usbdevfsDisconnect, 0x00005516},
	}
	for _, tc := range testCases {
		if tc.got != tc.want {
			t.Errorf("USBDEVFS_%s = %#x, want %#x", tc.name, tc.got, tc.want)
		}
	}
}

func TestReapEvents(t *testing.T) {
	// usbfs_poll signals reapable URBs with EPOLLOUT | EPOLLWRNORM
	if reapEvents != 0x4 || reapEvents&unix.POLLOUT == 0 {
		t.Fatalf("reapEvents = %#x, want POLLOUT", reapEvents)
	}
}

// bulkCamera is a device with one vendor-specific interface and a bulk IN endpoint.
func bulkCamera(vendor byte) []byte {
	return []byte{
		18, 0x01, 0x00, 0x02, 0xFF, 0x00, 0x00, 64, vendor, 0x12, 0x34, 0x56, 0x00, 0x01, 0, 0, 0, 1,
		9, 0x02, 25, 0, 1, 1, 0, 0x80, 50,
		9, 0x04, 0, 0, 1, 0xFF, 0x00, 0x00, 0,
		7, 0x05, 0x81, 0x02, 0x00, 0x02, 0,
	}
}

func TestEnumerate(t *testing.T) {
	root := t.TempDir()
	write := func(rel string, data []byte) {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("002/003", bulkCamera(0x02))
	write("001/004", bulkCamera(0x01))
	write("001/005", []byte{1, 2, 3}) // unreadable descriptors are skipped
	write("001/readme", []byte("not a node"))

	devs, err := Enumerate(root)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	if len(devs) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devs))
	}
	if devs[0].Name != filepath.Join(root, "001/004") || devs[1].Name != filepath.Join(root, "002/003") {
		t.Fatalf("unexpected order: %s, %s", devs[0].Name, devs[1].Name)
	}
	if devs[0].VendorID != 0x1201 {
		t.Fatalf("vendor = %04x", devs[0].VendorID)
	}
	if len(devs[0].Interfaces) != 1 || len(devs[0].Interfaces[0].Endpoints) != 1 {
		t.Fatalf("unexpected interfaces %+v", devs[0].Interfaces)
	}
}

func TestEnumerateEmptyRoot(t *testing.T) {
	devs, err := Enumerate(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(devs) != 0 {
		t.Fatalf("expected no devices, got %d", len(devs))
	}
}

func TestAlignUp(t *testing.T) {
	if alignUp(0, 64) != 0 || alignUp(1, 64) != 64 || alignUp(64, 64) != 64 || alignUp(65, 64) != 128 {
		t.Fatal("alignUp misbehaves")
	}
}
