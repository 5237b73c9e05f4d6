package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // registers the V4L2 camera driver

	"github.com/mikeyg42/otgcam/internal/config"
	"github.com/mikeyg42/otgcam/internal/usb"
	"github.com/mikeyg42/otgcam/internal/usb/usbfs"
)

func runList(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	root := fs.String("root", usbfs.DefaultRoot, "usbfs device directory")
	withV4L2 := fs.Bool("v4l2", false, "also list V4L2 video inputs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	devs, err := usbfs.Enumerate(*root)
	if err != nil {
		return err
	}
	printDevices(stdout, devs)

	if *withV4L2 {
		printVideoInputs(stdout, mediadevices.EnumerateDevices())
	}
	return nil
}

func printDevices(w io.Writer, devs []usb.Device) {
	if len(devs) == 0 {
		fmt.Fprintln(w, "no USB devices")
		return
	}
	for _, dev := range devs {
		fmt.Fprintln(w, dev.String())
		for _, intf := range dev.Interfaces {
			fmt.Fprintf(w, "  interface %d (number %d, alt %d): class=0x%02x subclass=0x%02x\n",
				intf.Index, intf.Number, intf.AlternateSetting, intf.Class, intf.SubClass)
			for j, ep := range intf.Endpoints {
				fmt.Fprintf(w, "    endpoint %d: address=0x%02x %s %s maxpacket=%d\n",
					j, ep.Address, ep.Direction(), ep.Type(), ep.PacketSize())
			}
		}
	}
}

func printVideoInputs(w io.Writer, devices []mediadevices.MediaDeviceInfo) {
	n := 0
	for _, d := range devices {
		if d.Kind != mediadevices.VideoInput {
			continue
		}
		label := d.Label
		if label == "" {
			label = fmt.Sprintf("Camera %d", n+1)
		}
		fmt.Fprintf(w, "video input %d: %s (%s)\n", n, label, d.DeviceID)
		n++
	}
	if n == 0 {
		fmt.Fprintln(w, "no video inputs")
	}
}
