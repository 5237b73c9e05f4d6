package usb

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDescriptor = errors.New("invalid descriptor")
	ErrTimeout           = errors.New("transfer timed out")
	ErrNoDevice          = errors.New("no such device")
	ErrBusy              = errors.New("resource busy")
	ErrNotSupported      = errors.New("operation not supported on this platform")
)

// TransferError reports a failed operation on an endpoint or interface.
type TransferError struct {
	Op       string
	Endpoint uint8
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s endpoint 0x%02x: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
