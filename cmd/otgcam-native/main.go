// Command otgcam-native is the shared library loaded by the Android app
// (System.loadLibrary("native-lib")). Build it with
//
//	GOOS=android CGO_ENABLED=1 go build -buildmode=c-shared -o libnative-lib.so ./cmd/otgcam-native
//
// The JNI exports live in jni.go; this file holds the process-wide state they share.
package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/otgcam/internal/bridge"
	"github.com/mikeyg42/otgcam/internal/config"
	"github.com/mikeyg42/otgcam/internal/logging"
	"github.com/mikeyg42/otgcam/internal/snapshot"
)

const uploadDrainTimeout = 5 * time.Second

// Application holds the bridge and its logger for the lifetime of the process.
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	bridge   *bridge.Bridge
	uploader *snapshot.Uploader
}

var (
	appOnce sync.Once
	app     *Application
)

// NewApplication builds the logger and bridge from cfg. The preview server and
// snapshot uploader start only when their config sections are enabled.
func NewApplication(cfg *config.Config, opts ...logging.Option) (*Application, error) {
	logger, err := logging.New(cfg.Log, opts...)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	logging.Install(logger)

	a := &Application{config: cfg, logger: logger}
	var bridgeOpts []bridge.Option
	if cfg.Snapshot.Enabled {
		store, err := snapshot.NewMinIOStore(context.Background(), cfg.Snapshot.MinIO)
		if err != nil {
			return nil, fmt.Errorf("snapshot store: %w", err)
		}
		a.uploader = snapshot.NewUploader(store, cfg.Snapshot)
		bridgeOpts = append(bridgeOpts, bridge.WithSink(a.uploader))
	}
	a.bridge = bridge.New(cfg, logger, bridgeOpts...)
	if srv := a.bridge.Preview(); srv != nil {
		srv.StartInBackground()
	}
	return a, nil
}

// Close stops the bridge and drains pending uploads.
func (a *Application) Close() {
	a.bridge.Close()
	if a.uploader != nil {
		ctx, cancel := context.WithTimeout(context.Background(), uploadDrainTimeout)
		defer cancel()
		if err := a.uploader.Close(ctx); err != nil {
			a.logger.Warn("snapshot uploads abandoned", zap.Error(err))
		}
	}
}

func nativeConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Log.Android = true
	cfg.Log.Console = false
	cfg.Log.Tag = bridge.LogTag
	return cfg
}

func native() *Application {
	appOnce.Do(func() {
		a, err := NewApplication(nativeConfig())
		if err != nil {
			// the platform log is unavailable; fall back to a no-op logger
			a = &Application{config: nativeConfig(), logger: zap.NewNop()}
			a.bridge = bridge.New(a.config, a.logger)
		}
		app = a
	})
	return app
}

// guard keeps a Go panic from unwinding into the JVM.
func (a *Application) guard(op string) {
	if r := recover(); r != nil {
		a.logger.Error("native call panicked", zap.String("op", op), zap.Any("panic", r))
	}
}

func (a *Application) startCamera() {
	defer a.guard("startCamera")
	a.bridge.StartCamera()
}

func (a *Application) attachDevice(fd, width, height, fps int) (ok bool) {
	defer a.guard("attachDevice")
	cam := config.CameraConfig{Width: width, Height: height, FrameRate: fps}
	if err := a.bridge.AttachDevice(context.Background(), fd, fmt.Sprintf("fd:%d", fd), cam); err != nil {
		a.logger.Warn("attach failed", zap.Int("fd", fd), zap.Error(err))
		return false
	}
	return true
}

func (a *Application) detachDevice() {
	defer a.guard("detachDevice")
	if err := a.bridge.Detach(); err != nil {
		a.logger.Debug("detach", zap.Error(err))
	}
}

func (a *Application) messages() (text string) {
	defer a.guard("messages")
	return a.bridge.Messages()
}

func (a *Application) latestFrame() (data []byte) {
	defer a.guard("latestFrame")
	data, _ = a.bridge.LatestFrame()
	return data
}

func main() {}
