package camera

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/mikeyg42/otgcam/internal/config"
	"github.com/mikeyg42/otgcam/internal/usb"
)

// maxConsecutiveFailures ends a stream whose endpoint keeps failing.
const maxConsecutiveFailures = 20

// Streamer reads continuously from one endpoint once probing found it delivers data.
type Streamer struct {
	conn    Conn
	ep      usb.Endpoint
	handler PayloadHandler
	cfg     config.ProbeConfig
	logger  *zap.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	payloads atomic.Uint64
	bytes    atomic.Uint64
}

// NewStreamer creates a streamer over ep.
func NewStreamer(conn Conn, ep usb.Endpoint, handler PayloadHandler, cfg config.ProbeConfig) *Streamer {
	return &Streamer{
		conn:    conn,
		ep:      ep,
		handler: handler,
		cfg:     cfg,

		minBackoff: 10 * time.Millisecond,
		maxBackoff: time.Second,
		logger:     zap.L().Named("streamer").With(zap.Uint8("endpoint", ep.Address)),
	}
}

// Run reads until ctx is cancelled, the device disappears, or the endpoint
// fails maxConsecutiveFailures times in a row. Failures back off exponentially.
func (s *Streamer) Run(ctx context.Context) error {
	size := s.cfg.BufferSize
	if s.ep.Type() == usb.TransferIsochronous {
		// one URB worth of packets keeps up with the camera
		size = max(size, s.ep.PacketSize()*8)
	}
	buf := make([]byte, size)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.minBackoff
	bo.MaxInterval = s.maxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := s.read(buf)
		if err == nil && n > 0 {
			failures = 0
			bo.Reset()
			s.payloads.Add(1)
			s.bytes.Add(uint64(n))
			if s.handler != nil {
				s.handler(buf[:n])
			}
			continue
		}
		if errors.Is(err, usb.ErrNoDevice) {
			return err
		}

		failures++
		if failures >= maxConsecutiveFailures {
			return fmt.Errorf("endpoint 0x%02x: %d consecutive failed reads: %w", s.ep.Address, failures, errors.Join(err, usb.ErrTimeout))
		}
		s.logger.Debug("read failed", zap.Int("failures", failures), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
}

func (s *Streamer) read(buf []byte) (int, error) {
	if s.ep.Type() == usb.TransferIsochronous {
		return s.conn.IsoTransfer(s.ep, buf, s.cfg.TransferTimeout)
	}
	return s.conn.BulkTransfer(s.ep, buf, s.cfg.TransferTimeout)
}

// Stats returns the number of payloads and bytes delivered.
func (s *Streamer) Stats() (payloads, bytes uint64) {
	return s.payloads.Load(), s.bytes.Load()
}
