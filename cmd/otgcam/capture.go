package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mikeyg42/otgcam/internal/config"
	"github.com/mikeyg42/otgcam/internal/frame"
	"github.com/mikeyg42/otgcam/internal/v4l2"
)

func runCapture(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	video := fs.String("video", "/dev/video0", "V4L2 device")
	out := fs.String("out", "", "directory for JPEG files (none when empty)")
	count := fs.Int("count", 0, "stop after this many frames (0 runs until interrupted)")
	fs.BoolVar(&cfg.Preview.Enabled, "preview", cfg.Preview.Enabled, "serve frames over HTTP")
	fs.StringVar(&cfg.Preview.Addr, "addr", cfg.Preview.Addr, "preview listen address")
	fs.BoolVar(&cfg.Snapshot.Enabled, "snapshots", cfg.Snapshot.Enabled, "upload snapshots to MinIO")
	fs.IntVar(&cfg.Camera.Width, "width", cfg.Camera.Width, "frame width")
	fs.IntVar(&cfg.Camera.Height, "height", cfg.Camera.Height, "frame height")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return err
	}
	defer app.Cleanup()
	if err := app.Initialize(ctx); err != nil {
		return err
	}

	capture, err := v4l2.Open(*video, cfg.Camera.Width, cfg.Camera.Height)
	if err != nil {
		return err
	}
	defer capture.Close()
	width, height := capture.Size()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sinks := app.Sinks()
	var files *fileSink
	if *out != "" {
		if err := os.MkdirAll(*out, 0o755); err != nil {
			return err
		}
		files = &fileSink{dir: *out, logger: app.logger}
		sinks = append(sinks, files)
	}
	var seen atomic.Int64
	if *count > 0 {
		sinks = append(sinks, frame.SinkFunc(func(frame.Frame) {
			if seen.Add(1) >= int64(*count) {
				cancel()
			}
		}))
	}

	processor := frame.NewProcessor(width, height, cfg.Camera.JPEGQuality, false, sinks...)
	err = capture.Run(ctx, func(buf []byte) {
		if _, err := processor.ProcessFrame(buf); err != nil {
			app.logger.Warn("frame dropped", zap.Error(err))
		}
	})

	written := 0
	if files != nil {
		written = int(files.written.Load())
	}
	fmt.Fprintf(stdout, "captured %d frames at %dx%d, wrote %d files\n", capture.Frames(), width, height, written)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// fileSink writes each frame as <dir>/frame-<seq>.jpg.
type fileSink struct {
	dir     string
	logger  *zap.Logger
	written atomic.Int64
}

func (s *fileSink) path(seq uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("frame-%08d.jpg", seq))
}

func (s *fileSink) HandleFrame(fr frame.Frame) {
	p := s.path(fr.Sequence)
	if err := os.WriteFile(p, fr.Data, 0o644); err != nil {
		s.logger.Error("write frame", zap.String("path", p), zap.Error(err))
		return
	}
	s.written.Add(1)
}
