//go:build linux

package usbfs

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Request encoding from <asm-generic/ioctl.h>.
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | typ<<8 | nr
}

// Structures from <linux/usbdevice_fs.h>. Go's natural alignment matches the C layout.

type bulkTransfer struct {
	Ep      uint32
	Len     uint32
	Timeout uint32 // milliseconds
	Data    uintptr
}

type setInterface struct {
	Interface  uint32
	AltSetting uint32
}

type ioctlRequest struct {
	IfNo      int32
	IoctlCode int32
	Data      uintptr
}

type urb struct {
	Type            uint8
	Endpoint        uint8
	Status          int32
	Flags           uint32
	Buffer          uintptr
	BufferLength    int32
	ActualLength    int32
	StartFrame      int32
	NumberOfPackets int32
	ErrorCount      int32
	Signr           uint32
	UserContext     uintptr
}

type isoPacketDesc struct {
	Length       uint32
	ActualLength uint32
	Status       uint32
}

const (
	urbTypeIso  = 0
	urbIsoASAP  = 0x02
	maxIsoFrame = 32
)

var (
	usbdevfsBulk             = ioc(iocRead|iocWrite, 'U', 2, unsafe.Sizeof(bulkTransfer{}))
	usbdevfsSetInterface     = ioc(iocRead, 'U', 4, unsafe.Sizeof(setInterface{}))
	usbdevfsSubmitURB        = ioc(iocRead, 'U', 10, unsafe.Sizeof(urb{}))
	usbdevfsDiscardURB       = ioc(iocNone, 'U', 11, 0)
	usbdevfsReapURBNDelay    = ioc(iocWrite, 'U', 13, unsafe.Sizeof(uintptr(0)))
	usbdevfsClaimInterface   = ioc(iocRead, 'U', 15, unsafe.Sizeof(uint32(0)))
	usbdevfsReleaseInterface = ioc(iocRead, 'U', 16, unsafe.Sizeof(uint32(0)))
	usbdevfsIoctl            = ioc(iocRead|iocWrite, 'U', 18, unsafe.Sizeof(ioctlRequest{}))
	usbdevfsDisconnect       = ioc(iocNone, 'U', 22, 0)
)

func ioctl(fd int, req uintptr, arg unsafe.Pointer) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return int(r), errno
	}
	return int(r), nil
}
