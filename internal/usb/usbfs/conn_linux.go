//go:build linux

package usbfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/mikeyg42/otgcam/internal/usb"
)

// bounceSize is the largest single transfer. Transfer memory is mmap'd so the
// kernel never holds a pointer into the Go heap.
const bounceSize = 64 * 1024

// Conn is an open usbfs device.
type Conn struct {
	fd     int
	file   *os.File // set when the node was opened by path; nil for borrowed fds
	dev    *usb.Device
	logger *zap.Logger

	mu      sync.Mutex
	bounce  []byte
	isoMem  []byte
	claimed map[uint8]bool
	closed  bool
}

// Open opens a usbfs node such as /dev/bus/usb/001/004 for read/write.
func Open(path string) (*Conn, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, mapErrno(err))
	}
	c, err := newConn(int(f.Fd()), path)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.file = f
	return c, nil
}

// FromFD wraps a descriptor owned by someone else (Android's UsbDeviceConnection).
// Close releases claimed interfaces but leaves the descriptor open.
func FromFD(fd int, name string) (*Conn, error) {
	return newConn(fd, name)
}

func newConn(fd int, name string) (*Conn, error) {
	raw, err := readDescriptors(fd)
	if err != nil {
		return nil, fmt.Errorf("read descriptors of %s: %w", name, err)
	}
	dev, err := usb.ParseDescriptors(name, raw)
	if err != nil {
		return nil, err
	}

	bounce, err := unix.Mmap(-1, 0, bounceSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap transfer buffer: %w", err)
	}

	return &Conn{
		fd:      fd,
		dev:     dev,
		logger:  zap.L().Named("usbfs").With(zap.String("device", name)),
		bounce:  bounce,
		claimed: make(map[uint8]bool),
	}, nil
}

func readDescriptors(fd int) ([]byte, error) {
	buf := make([]byte, maxDescriptorBytes)
	n, err := unix.Pread(fd, buf, 0)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Device returns the parsed descriptors.
func (c *Conn) Device() *usb.Device { return c.dev }

// ClaimInterface claims intf.Number, detaching a kernel driver first when force
// is set, and selects the alternate setting when it is not zero.
func (c *Conn) ClaimInterface(intf usb.Interface, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return usb.ErrNoDevice
	}

	if force {
		req := ioctlRequest{IfNo: int32(intf.Number), IoctlCode: int32(usbdevfsDisconnect)}
		if _, err := ioctl(c.fd, usbdevfsIoctl, unsafe.Pointer(&req)); err != nil && !errors.Is(err, unix.ENODATA) {
			c.logger.Debug("kernel driver detach failed", zap.Uint8("interface", intf.Number), zap.Error(err))
		}
	}

	num := uint32(intf.Number)
	if _, err := ioctl(c.fd, usbdevfsClaimInterface, unsafe.Pointer(&num)); err != nil {
		return &usb.TransferError{Op: "claim interface", Endpoint: intf.Number, Err: mapErrno(err)}
	}
	c.claimed[intf.Number] = true

	if intf.AlternateSetting != 0 {
		si := setInterface{Interface: uint32(intf.Number), AltSetting: uint32(intf.AlternateSetting)}
		if _, err := ioctl(c.fd, usbdevfsSetInterface, unsafe.Pointer(&si)); err != nil {
			return &usb.TransferError{Op: "set interface", Endpoint: intf.Number, Err: mapErrno(err)}
		}
	}
	return nil
}

// ReleaseInterface releases a previously claimed interface.
func (c *Conn) ReleaseInterface(intf usb.Interface) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.release(intf.Number)
}

func (c *Conn) release(number uint8) error {
	if !c.claimed[number] {
		return nil
	}
	num := uint32(number)
	delete(c.claimed, number)
	if _, err := ioctl(c.fd, usbdevfsReleaseInterface, unsafe.Pointer(&num)); err != nil {
		return &usb.TransferError{Op: "release interface", Endpoint: number, Err: mapErrno(err)}
	}
	return nil
}

// BulkTransfer performs a synchronous bulk or interrupt transfer. For IN
// endpoints the received bytes are copied into buf.
func (c *Conn) BulkTransfer(ep usb.Endpoint, buf []byte, timeout time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, usb.ErrNoDevice
	}

	n := min(len(buf), len(c.bounce))
	if ep.Direction() == usb.DirOut {
		copy(c.bounce, buf[:n])
	}
	bt := bulkTransfer{
		Ep:      uint32(ep.Address),
		Len:     uint32(n),
		Timeout: uint32(timeout / time.Millisecond),
		Data:    uintptr(unsafe.Pointer(&c.bounce[0])),
	}
	got, err := ioctl(c.fd, usbdevfsBulk, unsafe.Pointer(&bt))
	if err != nil {
		return 0, &usb.TransferError{Op: "bulk", Endpoint: ep.Address, Err: mapErrno(err)}
	}
	if ep.Direction() == usb.DirIn {
		copy(buf, c.bounce[:got])
	}
	return got, nil
}

// IsoTransfer submits one isochronous URB sized to fill buf with whole packets
// and waits up to timeout for it to complete. Received packets are packed
// contiguously into buf.
func (c *Conn) IsoTransfer(ep usb.Endpoint, buf []byte, timeout time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, usb.ErrNoDevice
	}

	packetSize := ep.PacketSize()
	if packetSize == 0 {
		return 0, &usb.TransferError{Op: "iso", Endpoint: ep.Address, Err: usb.ErrInvalidDescriptor}
	}
	packets := len(buf) / packetSize
	if packets == 0 {
		packets = 1
	}
	packets = min(packets, maxIsoFrame)

	mem, err := c.isoBuffer(packets, packetSize)
	if err != nil {
		return 0, err
	}

	hdr := (*urb)(unsafe.Pointer(&mem[0]))
	descOff := unsafe.Sizeof(urb{})
	descs := unsafe.Slice((*isoPacketDesc)(unsafe.Pointer(&mem[descOff])), packets)
	dataOff := alignUp(int(descOff)+packets*int(unsafe.Sizeof(isoPacketDesc{})), 64)
	data := mem[dataOff : dataOff+packets*packetSize]

	*hdr = urb{
		Type:            urbTypeIso,
		Endpoint:        ep.Address,
		Flags:           urbIsoASAP,
		Buffer:          uintptr(unsafe.Pointer(&data[0])),
		BufferLength:    int32(len(data)),
		NumberOfPackets: int32(packets),
	}
	for i := range descs {
		descs[i] = isoPacketDesc{Length: uint32(packetSize)}
	}

	if _, err := ioctl(c.fd, usbdevfsSubmitURB, unsafe.Pointer(hdr)); err != nil {
		return 0, &usb.TransferError{Op: "iso submit", Endpoint: ep.Address, Err: mapErrno(err)}
	}

	if err := c.reap(hdr, timeout); err != nil {
		return 0, &usb.TransferError{Op: "iso reap", Endpoint: ep.Address, Err: err}
	}

	n := 0
	for i, d := range descs {
		if d.Status != 0 || d.ActualLength == 0 {
			continue
		}
		start := i * packetSize
		n += copy(buf[n:], data[start:start+int(d.ActualLength)])
		if n == len(buf) {
			break
		}
	}
	return n, nil
}

// reapEvents is what usbfs poll reports once a URB can be reaped.
const reapEvents = unix.POLLOUT

// reap waits for hdr to complete, discarding it when the timeout expires.
func (c *Conn) reap(hdr *urb, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			ioctl(c.fd, usbdevfsDiscardURB, unsafe.Pointer(hdr))
			c.drain(hdr)
			return usb.ErrTimeout
		}

		fds := []unix.PollFd{{Fd: int32(c.fd), Events: reapEvents}}
		if _, err := unix.Poll(fds, int(remaining/time.Millisecond)+1); err != nil && !errors.Is(err, unix.EINTR) {
			return mapErrno(err)
		}

		var done uintptr
		if _, err := ioctl(c.fd, usbdevfsReapURBNDelay, unsafe.Pointer(&done)); err != nil {
			if errors.Is(err, unix.EAGAIN) {
				continue
			}
			return mapErrno(err)
		}
		if done == uintptr(unsafe.Pointer(hdr)) {
			// -EXDEV marks a partially completed iso URB; packets carry their own status
			if hdr.Status != 0 && hdr.Status != -int32(unix.EXDEV) {
				return mapErrno(unix.Errno(-hdr.Status))
			}
			return nil
		}
	}
}

// drain reaps a discarded URB so its memory can be reused.
func (c *Conn) drain(hdr *urb) {
	for i := 0; i < 100; i++ {
		var done uintptr
		if _, err := ioctl(c.fd, usbdevfsReapURBNDelay, unsafe.Pointer(&done)); err == nil {
			if done == uintptr(unsafe.Pointer(hdr)) {
				return
			}
			continue
		}
		time.Sleep(time.Millisecond)
	}
	c.logger.Warn("discarded URB was not reaped")
}

func (c *Conn) isoBuffer(packets, packetSize int) ([]byte, error) {
	need := alignUp(int(unsafe.Sizeof(urb{}))+packets*int(unsafe.Sizeof(isoPacketDesc{})), 64) + packets*packetSize
	if len(c.isoMem) >= need {
		return c.isoMem, nil
	}
	if c.isoMem != nil {
		unix.Munmap(c.isoMem)
		c.isoMem = nil
	}
	mem, err := unix.Mmap(-1, 0, alignUp(need, os.Getpagesize()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap iso buffer: %w", err)
	}
	c.isoMem = mem
	return mem, nil
}

// Close releases claimed interfaces and transfer memory. The descriptor is
// closed only when Conn opened it.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for num := range c.claimed {
		if err := c.release(num); err != nil {
			errs = append(errs, err)
		}
	}
	if c.bounce != nil {
		errs = append(errs, unix.Munmap(c.bounce))
		c.bounce = nil
	}
	if c.isoMem != nil {
		errs = append(errs, unix.Munmap(c.isoMem))
		c.isoMem = nil
	}
	if c.file != nil {
		errs = append(errs, c.file.Close())
	}
	return errors.Join(errs...)
}

// Enumerate reads the descriptors of every node under root (BBB/DDD).
// Nodes that cannot be read are skipped.
func Enumerate(root string) ([]usb.Device, error) {
	paths, err := filepath.Glob(filepath.Join(root, "[0-9][0-9][0-9]", "[0-9][0-9][0-9]"))
	if err != nil {
		return nil, err
	}

	logger := zap.L().Named("usbfs")
	devs := make([]usb.Device, 0, len(paths))
	for _, p := range paths {
		dev, err := describe(p)
		if err != nil {
			logger.Debug("skipping device node", zap.String("path", p), zap.Error(err))
			continue
		}
		devs = append(devs, *dev)
	}
	sortDevices(devs)
	return devs, nil
}

func describe(path string) (*usb.Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := readDescriptors(int(f.Fd()))
	if err != nil {
		return nil, err
	}
	return usb.ParseDescriptors(path, raw)
}

func mapErrno(err error) error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return err
	}
	switch errno {
	case unix.ETIMEDOUT:
		return fmt.Errorf("%w (%w)", usb.ErrTimeout, errno)
	case unix.ENODEV, unix.ENOENT, unix.ESHUTDOWN:
		return fmt.Errorf("%w (%w)", usb.ErrNoDevice, errno)
	case unix.EBUSY:
		return fmt.Errorf("%w (%w)", usb.ErrBusy, errno)
	default:
		return errno
	}
}

func alignUp(n, a int) int {
	return (n + a - 1) / a * a
}
