//go:build linux

package v4l2

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/blackjack/webcam"
	"go.uber.org/zap"
)

const (
	waitSeconds = 1
	bufferCount = 4
)

// Capture streams frames from one V4L2 device.
type Capture struct {
	cam    *webcam.Webcam
	path   string
	width  int
	height int
	frames atomic.Uint64
	logger *zap.Logger
}

// Open configures path for width x height YUYV and starts streaming. The
// driver may adjust the size; Size reports what it chose.
func Open(path string, width, height int) (*Capture, error) {
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	formats := cam.GetSupportedFormats()
	if _, ok := formats[webcam.PixelFormat(FourCCYUYV)]; !ok {
		cam.Close()
		return nil, fmt.Errorf("%w (%s offers %s)", ErrFormat, path, formatList(formats))
	}

	f, w, h, err := cam.SetImageFormat(webcam.PixelFormat(FourCCYUYV), uint32(width), uint32(height))
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("set format on %s: %w", path, err)
	}
	if uint32(f) != FourCCYUYV {
		cam.Close()
		return nil, fmt.Errorf("%w (driver chose %s)", ErrFormat, FourCCString(uint32(f)))
	}
	if err := cam.SetBufferCount(bufferCount); err != nil {
		cam.Close()
		return nil, fmt.Errorf("set buffer count: %w", err)
	}
	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("start streaming %s: %w", path, err)
	}

	c := &Capture{
		cam:    cam,
		path:   path,
		width:  int(w),
		height: int(h),
		logger: zap.L().Named("v4l2"),
	}
	c.logger.Info("streaming",
		zap.String("device", path),
		zap.Int("width", c.width),
		zap.Int("height", c.height))
	return c, nil
}

// Size returns the negotiated frame size.
func (c *Capture) Size() (width, height int) {
	return c.width, c.height
}

// Frames returns the number of frames delivered.
func (c *Capture) Frames() uint64 {
	return c.frames.Load()
}

// Run delivers frames to handler until ctx is done or the device fails.
func (c *Capture) Run(ctx context.Context, handler Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.cam.WaitForFrame(waitSeconds)
		var timeout *webcam.Timeout
		switch {
		case errors.As(err, &timeout):
			continue
		case err != nil:
			return fmt.Errorf("wait for frame: %w", err)
		}

		data, err := c.cam.ReadFrame()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if len(data) == 0 {
			continue
		}
		// data points into the driver's mmap buffer
		buf := make([]byte, len(data))
		copy(buf, data)
		c.frames.Add(1)
		handler(buf)
	}
}

// Close stops streaming and closes the device.
func (c *Capture) Close() error {
	stopErr := c.cam.StopStreaming()
	closeErr := c.cam.Close()
	c.logger.Info("closed", zap.String("device", c.path), zap.Uint64("frames", c.frames.Load()))
	return errors.Join(stopErr, closeErr)
}

func formatList(formats map[webcam.PixelFormat]string) string {
	names := make([]string, 0, len(formats))
	for f, desc := range formats {
		names = append(names, FourCCString(uint32(f))+" ("+desc+")")
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
