//go:build !linux

package v4l2

import "context"

// Capture is unavailable off Linux.
type Capture struct{}

func Open(path string, width, height int) (*Capture, error) { return nil, ErrNotSupported }

func (c *Capture) Size() (width, height int)                      { return 0, 0 }
func (c *Capture) Frames() uint64                                 { return 0 }
func (c *Capture) Run(ctx context.Context, handler Handler) error { return ErrNotSupported }
func (c *Capture) Close() error                                   { return nil }
