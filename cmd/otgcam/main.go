// Command otgcam exercises the camera pipeline on a Linux host: it lists USB
// and V4L2 cameras, probes a camera through usbfs the way the Android app does,
// and captures JPEG frames from a V4L2 device.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikeyg42/otgcam/internal/config"
)

const usage = `usage: otgcam [-config file] [-v] <command> [flags]

commands:
  list      list usbfs devices (and V4L2 inputs with -v4l2)
  probe     find and probe a USB camera through usbfs
  capture   capture JPEG frames from a V4L2 device
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("otgcam", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "YAML configuration file")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg := config.NewDefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "otgcam: %v\n", err)
			return 1
		}
		cfg = loaded
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	var cmd func(context.Context, *config.Config, []string, io.Writer) error
	switch fs.Arg(0) {
	case "list":
		cmd = runList
	case "probe":
		cmd = runProbe
	case "capture":
		cmd = runCapture
	default:
		fmt.Fprintf(stderr, "otgcam: unknown command %q\n", fs.Arg(0))
		fs.Usage()
		return 2
	}

	if err := cmd(ctx, cfg, fs.Args()[1:], stdout); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(stderr, "otgcam %s: %v\n", fs.Arg(0), err)
		return 1
	}
	return 0
}
