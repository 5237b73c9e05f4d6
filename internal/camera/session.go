package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikeyg42/otgcam/internal/config"
	"github.com/mikeyg42/otgcam/internal/usb"
)

// Session owns a claimed camera interface.
type Session struct {
	id     string
	cand   *Candidate
	conn   Conn
	notify Notifier
	cfg    config.ProbeConfig
	logger *zap.Logger

	running   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewSession binds a candidate to its open connection.
func NewSession(cand *Candidate, conn Conn, n Notifier, cfg config.ProbeConfig) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		cand:   cand,
		conn:   conn,
		notify: orNop(n),
		cfg:    cfg,
		logger: zap.L().Named("camera").With(zap.String("session", id)),
	}
}

// ID identifies the session in logs and storage keys.
func (s *Session) ID() string { return s.id }

// Candidate returns what the finder chose.
func (s *Session) Candidate() *Candidate { return s.cand }

// Running reports whether the interface is claimed.
func (s *Session) Running() bool { return s.running.Load() }

// Setup claims the candidate interface, detaching any kernel driver, retrying
// transient failures up to ProbeConfig.ClaimRetries times.
func (s *Session) Setup(ctx context.Context) error {
	if s.cand == nil || s.cand.Device == nil || s.conn == nil {
		s.notify.Show("UsbInterface or UsbConnection is null")
		return ErrNotReady
	}
	s.notify.Show("Setting up device: " + s.cand.Device.Name)

	newBackoff := func() backoff.BackOff {
		ebo := backoff.NewExponentialBackOff()
		ebo.InitialInterval = s.cfg.Interval
		ebo.MaxElapsedTime = 0
		ebo.Reset()
		return backoff.WithContext(backoff.WithMaxRetries(ebo, uint64(s.cfg.ClaimRetries)), ctx)
	}

	attempt := 0
	op := func() error {
		attempt++
		err := s.conn.ClaimInterface(s.cand.Interface, true)
		if err == nil {
			return nil
		}
		s.logger.Debug("claim attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if errors.Is(err, usb.ErrNoDevice) || errors.Is(err, usb.ErrNotSupported) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, newBackoff()); err != nil {
		s.notify.Show("Failed to claim interface or open device")
		s.logger.Warn("claim failed", zap.Int("attempts", attempt), zap.Error(err))
		return fmt.Errorf("%w %d on %s: %w", ErrClaim, s.cand.Interface.Number, s.cand.Device.Name, err)
	}

	s.running.Store(true)
	s.notify.Show("Device connected and interface claimed")
	s.logger.Info("interface claimed",
		zap.String("device", s.cand.Device.Name),
		zap.Uint8("interface", s.cand.Interface.Number),
		zap.Uint8("alt", s.cand.Interface.AlternateSetting))
	return nil
}

// Prober returns a prober over the session's device.
func (s *Session) Prober(handler PayloadHandler) *Prober {
	var dev *usb.Device
	if s.cand != nil {
		dev = s.cand.Device
	}
	return NewProber(dev, s.conn, s.notify, handler, s.cfg)
}

// Streamer returns a streamer reading continuously from ep.
func (s *Session) Streamer(ep usb.Endpoint, handler PayloadHandler) *Streamer {
	return NewStreamer(s.conn, ep, handler, s.cfg)
}

// ProbeAndStream probes the device, then streams from the first endpoint that
// delivered data. streamFor bounds the stream; zero streams until ctx is done,
// and a stream ended by streamFor returns nil. The report is returned even
// when probing is interrupted. ErrNoData means no endpoint worked.
func (s *Session) ProbeAndStream(ctx context.Context, handler PayloadHandler, streamFor time.Duration) (*ProbeReport, error) {
	report, err := s.Prober(handler).Run(ctx)
	if err != nil {
		return report, err
	}
	res, ok := report.Working()
	if !ok {
		return report, ErrNoData
	}

	ep := s.cand.Device.Interfaces[res.Interface].Endpoints[res.Endpoint]
	s.notify.Show(fmt.Sprintf("Streaming from interface %d, endpoint %d", res.Interface, res.Endpoint))

	streamCtx := ctx
	if streamFor > 0 {
		var cancel context.CancelFunc
		streamCtx, cancel = context.WithTimeout(ctx, streamFor)
		defer cancel()
	}
	err = s.Streamer(ep, handler).Run(streamCtx)
	if streamFor > 0 && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = nil
	}
	return report, err
}

// Close releases the interface and closes the connection. It is safe to call
// more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.running.Store(false)
		if s.conn == nil {
			return
		}
		var errs []error
		if s.cand != nil {
			errs = append(errs, s.conn.ReleaseInterface(s.cand.Interface))
		}
		errs = append(errs, s.conn.Close())
		s.closeErr = errors.Join(errs...)
		s.logger.Info("session closed")
	})
	return s.closeErr
}
