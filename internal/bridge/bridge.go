// Package bridge is the Go side of the JNI surface exported by cmd/otgcam-native.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/otgcam/internal/camera"
	"github.com/mikeyg42/otgcam/internal/config"
	"github.com/mikeyg42/otgcam/internal/frame"
	"github.com/mikeyg42/otgcam/internal/messages"
	"github.com/mikeyg42/otgcam/internal/preview"
	"github.com/mikeyg42/otgcam/internal/usb"
	"github.com/mikeyg42/otgcam/internal/usb/usbfs"
)

// LogTag is the platform log tag of the native library.
const LogTag = "native-lib"

const startCameraMessage = "Start Camera"

const previewShutdownTimeout = 5 * time.Second

// StartCamera writes the fixed start message at info level. It is the whole
// behaviour of MainActivity.startCamera.
func StartCamera(l *zap.Logger) {
	l.Info(startCameraMessage)
}

var (
	ErrAlreadyAttached = errors.New("a device is already attached")
	ErrNotAttached     = errors.New("no device attached")
)

// Device is an open USB device with its parsed descriptors.
type Device interface {
	camera.Conn
	Device() *usb.Device
}

// Opener wraps a usbfs descriptor handed over by Java.
type Opener func(fd int, name string) (Device, error)

func openUSBFS(fd int, name string) (Device, error) {
	c, err := usbfs.FromFD(fd, name)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithOpener replaces the usbfs opener.
func WithOpener(o Opener) Option {
	return func(b *Bridge) { b.open = o }
}

// WithSink adds a consumer of finished frames (preview, snapshots).
func WithSink(s frame.Sink) Option {
	return func(b *Bridge) { b.sinks = append(b.sinks, s) }
}

// WithOnMessage receives each displayed message.
func WithOnMessage(fn func(msg string)) Option {
	return func(b *Bridge) { b.onMessage = fn }
}

// Bridge holds the state shared by the JNI exports.
type Bridge struct {
	cfg       *config.Config
	logger    *zap.Logger
	open      Opener
	sinks     []frame.Sink
	onMessage func(string)

	board   *messages.Board
	ring    *frame.Ring
	preview *preview.Server

	mu  sync.Mutex
	att *attachment
}

type attachment struct {
	session   *camera.Session
	processor *frame.Processor
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a bridge. logger should write to the platform log under LogTag.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		cfg:    cfg,
		logger: logger,
		open:   openUSBFS,
		ring:   frame.NewRing(cfg.Camera.RingSize),
	}
	for _, opt := range opts {
		opt(b)
	}

	boardOpts := []messages.Option{messages.WithLogger(logger.Named("messages"))}
	if b.onMessage != nil || cfg.Preview.Enabled {
		boardOpts = append(boardOpts, messages.WithOnMessage(b.announce))
	}
	b.board = messages.NewBoard(cfg.Messages, boardOpts...)

	if cfg.Preview.Enabled {
		b.preview = preview.NewServer(cfg.Preview, b.ring, b.board)
		b.sinks = append(b.sinks, b.preview)
	}
	return b
}

func (b *Bridge) announce(msg string) {
	if b.onMessage != nil {
		b.onMessage(msg)
	}
	if b.preview != nil {
		b.preview.Announce(msg)
	}
}

// Preview returns the preview server, or nil when preview.enabled is off. The
// caller starts it; Close shuts it down.
func (b *Bridge) Preview() *preview.Server {
	return b.preview
}

// StartCamera implements MainActivity.startCamera.
func (b *Bridge) StartCamera() {
	StartCamera(b.logger)
}

// AttachDevice takes over a device Java has opened and been granted access to:
// it finds the camera endpoint, claims the interface and starts probing and
// streaming in the background. cam overrides the configured frame geometry when
// its fields are positive.
func (b *Bridge) AttachDevice(ctx context.Context, fd int, name string, cam config.CameraConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.att != nil {
		return ErrAlreadyAttached
	}

	camCfg := b.cfg.Camera
	if cam.Width > 0 && cam.Height > 0 {
		camCfg.Width, camCfg.Height = cam.Width, cam.Height
	}
	if cam.FrameRate > 0 {
		camCfg.FrameRate = cam.FrameRate
	}
	if camCfg.Width%2 != 0 {
		return fmt.Errorf("frame width %d is not even", camCfg.Width)
	}

	dev, err := b.open(fd, name)
	if err != nil {
		b.board.Show("Failed to claim interface or open device")
		return fmt.Errorf("open %s: %w", name, err)
	}

	cand, err := camera.NewFinder(b.board, b.cfg.Probe.VideoClassOnly).Find([]usb.Device{*dev.Device()})
	if err != nil {
		dev.Close()
		return err
	}

	session := camera.NewSession(cand, dev, b.board, b.cfg.Probe)
	if err := session.Setup(ctx); err != nil {
		session.Close()
		return err
	}

	sinks := append([]frame.Sink{b.ring}, b.sinks...)
	processor := frame.NewProcessor(camCfg.Width, camCfg.Height, camCfg.JPEGQuality, camCfg.StripUVCHeaders, sinks...)

	runCtx, cancel := context.WithCancel(context.Background())
	att := &attachment{
		session:   session,
		processor: processor,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	b.att = att

	b.logger.Info("device attached",
		zap.String("device", name),
		zap.String("session", session.ID()),
		zap.Int("width", camCfg.Width),
		zap.Int("height", camCfg.Height),
		zap.Int("fps", camCfg.FrameRate))

	go b.run(runCtx, att)
	return nil
}

func (b *Bridge) run(ctx context.Context, att *attachment) {
	defer close(att.done)
	logger := b.logger.With(zap.String("session", att.session.ID()))

	handler := func(payload []byte) {
		if _, err := att.processor.Process(payload); err != nil {
			logger.Debug("frame processing failed", zap.Error(err))
		}
	}

	report, err := att.session.ProbeAndStream(ctx, handler, 0)
	if errors.Is(err, camera.ErrNoData) {
		logger.Warn("no endpoint delivered data", zap.Int("tested", len(report.Results)))
		return
	}
	stats, encodeErrors := att.processor.Stats()
	logger.Info("camera stopped",
		zap.Error(err),
		zap.Uint64("frames", stats.Frames),
		zap.Uint64("dropped", stats.Dropped),
		zap.Uint64("encode_errors", encodeErrors))
}

// Detach stops background work and releases the device.
func (b *Bridge) Detach() error {
	b.mu.Lock()
	att := b.att
	b.att = nil
	b.mu.Unlock()

	if att == nil {
		return ErrNotAttached
	}
	att.cancel()
	<-att.done
	err := att.session.Close()
	b.logger.Info("device detached", zap.String("session", att.session.ID()))
	return err
}

// Running reports whether an attached session holds its interface.
func (b *Bridge) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.att != nil && b.att.session.Running()
}

// Messages returns the displayed message text.
func (b *Bridge) Messages() string {
	return b.board.Text()
}

// LatestFrame returns the newest JPEG frame.
func (b *Bridge) LatestFrame() ([]byte, bool) {
	fr, ok := b.ring.Latest()
	if !ok {
		return nil, false
	}
	return fr.Data, true
}

// Close detaches any device and stops the message board.
func (b *Bridge) Close() {
	if err := b.Detach(); err != nil && !errors.Is(err, ErrNotAttached) {
		b.logger.Warn("detach on close failed", zap.Error(err))
	}
	if b.preview != nil {
		ctx, cancel := context.WithTimeout(context.Background(), previewShutdownTimeout)
		defer cancel()
		if err := b.preview.Shutdown(ctx); err != nil {
			b.logger.Warn("preview shutdown", zap.Error(err))
		}
	}
	b.board.Close()
}
