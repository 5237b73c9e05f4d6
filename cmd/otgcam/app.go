package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/otgcam/internal/config"
	"github.com/mikeyg42/otgcam/internal/frame"
	"github.com/mikeyg42/otgcam/internal/logging"
	"github.com/mikeyg42/otgcam/internal/messages"
	"github.com/mikeyg42/otgcam/internal/preview"
	"github.com/mikeyg42/otgcam/internal/snapshot"
)

const shutdownTimeout = 5 * time.Second

// Application holds the pieces shared by the capture commands.
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	restore  func()
	board    *messages.Board
	ring     *frame.Ring
	preview  *preview.Server
	uploader *snapshot.Uploader
}

// NewApplication builds logging, the message board and the frame ring.
func NewApplication(cfg *config.Config) (*Application, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &Application{
		config:  cfg,
		logger:  logger,
		restore: logging.Install(logger),
		ring:    frame.NewRing(cfg.Camera.RingSize),
	}
	a.board = messages.NewBoard(cfg.Messages,
		messages.WithLogger(logger.Named("messages")),
		messages.WithOnMessage(func(msg string) {
			if a.preview != nil {
				a.preview.Announce(msg)
			}
		}))
	return a, nil
}

// Initialize starts the optional preview server and snapshot uploader.
func (a *Application) Initialize(ctx context.Context) error {
	if a.config.Preview.Enabled {
		a.preview = preview.NewServer(a.config.Preview, a.ring, a.board)
		a.preview.StartInBackground()
	}
	if a.config.Snapshot.Enabled {
		store, err := snapshot.NewMinIOStore(ctx, a.config.Snapshot.MinIO)
		if err != nil {
			return fmt.Errorf("snapshot store: %w", err)
		}
		a.uploader = snapshot.NewUploader(store, a.config.Snapshot)
	}
	return nil
}

// Sinks returns every consumer a processor should feed.
func (a *Application) Sinks() []frame.Sink {
	sinks := []frame.Sink{a.ring}
	if a.preview != nil {
		sinks = append(sinks, a.preview)
	}
	if a.uploader != nil {
		sinks = append(sinks, a.uploader)
	}
	return sinks
}

// Cleanup stops everything Initialize started.
func (a *Application) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.uploader != nil {
		if err := a.uploader.Close(ctx); err != nil {
			a.logger.Warn("snapshot uploads abandoned", zap.Error(err))
		}
		uploaded, dropped, failed := a.uploader.Stats()
		a.logger.Info("snapshots",
			zap.Uint64("uploaded", uploaded),
			zap.Uint64("dropped", dropped),
			zap.Uint64("failed", failed))
	}
	if a.preview != nil {
		if err := a.preview.Shutdown(ctx); err != nil {
			a.logger.Warn("preview shutdown", zap.Error(err))
		}
	}
	a.board.Close()
	a.logger.Sync()
	a.restore()
}
