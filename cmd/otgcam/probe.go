package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/mikeyg42/otgcam/internal/camera"
	"github.com/mikeyg42/otgcam/internal/config"
	"github.com/mikeyg42/otgcam/internal/frame"
	"github.com/mikeyg42/otgcam/internal/usb"
	"github.com/mikeyg42/otgcam/internal/usb/usbfs"
)

func runProbe(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	device := fs.String("device", "", "usbfs node, e.g. /dev/bus/usb/001/004")
	stream := fs.Duration("stream", 0, "stream from the working endpoint for this long after probing")
	fs.BoolVar(&cfg.Preview.Enabled, "preview", cfg.Preview.Enabled, "serve frames over HTTP")
	fs.StringVar(&cfg.Preview.Addr, "addr", cfg.Preview.Addr, "preview listen address")
	fs.IntVar(&cfg.Camera.Width, "width", cfg.Camera.Width, "frame width")
	fs.IntVar(&cfg.Camera.Height, "height", cfg.Camera.Height, "frame height")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *device == "" {
		return errors.New("-device is required")
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

	conn, err := usbfs.Open(*device)
	if err != nil {
		return err
	}
	cand, err := camera.NewFinder(app.board, cfg.Probe.VideoClassOnly).Find([]usb.Device{*conn.Device()})
	if err != nil {
		conn.Close()
		return err
	}
	session := camera.NewSession(cand, conn, app.board, cfg.Probe)
	defer session.Close()
	if err := session.Setup(ctx); err != nil {
		return err
	}

	processor := frame.NewProcessor(cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.JPEGQuality, cfg.Camera.StripUVCHeaders, app.Sinks()...)
	handler := func(payload []byte) {
		if _, err := processor.Process(payload); err != nil {
			app.logger.Debug("frame processing failed", zap.Error(err))
		}
	}

	if *stream <= 0 {
		report, err := session.Prober(handler).Run(ctx)
		printReport(stdout, cand.Device, report)
		return err
	}

	report, err := session.ProbeAndStream(ctx, handler, *stream)
	printReport(stdout, cand.Device, report)
	stats, encodeErrors := processor.Stats()
	fmt.Fprintf(stdout, "streamed %d frames (%d dropped, %d encode errors)\n", stats.Frames, stats.Dropped, encodeErrors)
	if errors.Is(err, camera.ErrNoData) {
		return nil
	}
	return err
}

func printReport(w io.Writer, dev *usb.Device, report *camera.ProbeReport) {
	if report == nil {
		return
	}
	fmt.Fprintf(w, "%s: %d endpoint(s) tested in %d step(s)\n", dev, len(report.Results), report.Steps)
	for _, r := range report.Results {
		status := "no data"
		switch {
		case r.Skipped:
			status = "skipped"
		case r.Received > 0:
			status = fmt.Sprintf("%d bytes", r.Received)
		case r.Err != nil:
			status = r.Err.Error()
		}
		fmt.Fprintf(w, "  interface %d endpoint %d (0x%02x %s): %s\n", r.Interface, r.Endpoint, r.Address, r.Type, status)
	}
	if res, ok := report.Working(); ok {
		fmt.Fprintf(w, "working endpoint: interface %d endpoint %d\n", res.Interface, res.Endpoint)
	}
}
