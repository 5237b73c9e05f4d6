package camera

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/otgcam/internal/config"
	"github.com/mikeyg42/otgcam/internal/usb"
)

// ProbeResult is the outcome of testing one endpoint.
type ProbeResult struct {
	Interface int
	Endpoint  int
	Address   uint8
	Type      usb.TransferType
	Received  int
	Skipped   bool
	Err       error
}

// ProbeReport collects every endpoint tested by a probe run.
type ProbeReport struct {
	Results []ProbeResult
	Steps   int
}

// Working returns the first result that received data.
func (r *ProbeReport) Working() (ProbeResult, bool) {
	for _, res := range r.Results {
		if res.Received > 0 {
			return res, true
		}
	}
	return ProbeResult{}, false
}

// Prober walks every interface and endpoint of a device, one step per tick,
// issuing a test transfer appropriate to each endpoint's type.
type Prober struct {
	dev     *usb.Device
	conn    Conn
	notify  Notifier
	handler PayloadHandler
	cfg     config.ProbeConfig
	logger  *zap.Logger

	iface int
	ep    int
	buf   []byte
}

// NewProber creates a prober. handler may be nil.
func NewProber(dev *usb.Device, conn Conn, n Notifier, handler PayloadHandler, cfg config.ProbeConfig) *Prober {
	return &Prober{
		dev:     dev,
		conn:    conn,
		notify:  orNop(n),
		handler: handler,
		cfg:     cfg,
		logger:  zap.L().Named("prober"),
		buf:     make([]byte, cfg.BufferSize),
	}
}

// Run performs the walk. The first step runs immediately, later ones every
// ProbeConfig.Interval. Cancelling ctx stops the walk and returns the partial
// report with ctx.Err().
func (p *Prober) Run(ctx context.Context) (*ProbeReport, error) {
	if p.dev == nil || p.conn == nil {
		p.notify.Show("UsbInterface or UsbConnection is null")
		return nil, ErrNotReady
	}

	interval := p.cfg.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	report := &ProbeReport{}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Steps++
		if p.step(report) {
			return report, nil
		}
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-ticker.C:
		}
	}
}

// step advances the walk by one position and reports whether it finished.
func (p *Prober) step(report *ProbeReport) bool {
	if p.iface >= len(p.dev.Interfaces) {
		p.notify.Show("All interfaces and endpoints checked")
		return true
	}

	intf := p.dev.Interfaces[p.iface]
	if p.ep >= len(intf.Endpoints) {
		p.iface++
		p.ep = 0
		return false
	}

	ep := intf.Endpoints[p.ep]
	p.notify.Show(fmt.Sprintf("Testing interface %d, endpoint %d: Address = %d, Type = %d",
		p.iface, p.ep, ep.Address, uint8(ep.Type())))

	res := ProbeResult{Interface: p.iface, Endpoint: p.ep, Address: ep.Address, Type: ep.Type()}
	if ep.Direction() != usb.DirIn {
		// test transfers only read; writing to an OUT endpoint would send garbage to the device
		p.notify.Show(fmt.Sprintf("Skipping OUT endpoint %d", ep.Address))
		res.Skipped = true
	} else {
		switch ep.Type() {
		case usb.TransferBulk, usb.TransferInterrupt:
			p.notify.Show("Testing " + ep.Type().String() + " transfer")
			res.Received, res.Err = p.conn.BulkTransfer(ep, p.buf, p.cfg.TransferTimeout)
		case usb.TransferIsochronous:
			p.notify.Show("Testing ISOCHRONOUS transfer")
			res.Received, res.Err = p.conn.IsoTransfer(ep, p.buf, p.cfg.TransferTimeout)
		case usb.TransferControl:
			p.notify.Show("Control transfer not supported")
			res.Skipped = true
		}

		if !res.Skipped {
			p.deliver(ep, res)
		}
	}

	report.Results = append(report.Results, res)
	p.ep++
	return false
}

func (p *Prober) deliver(ep usb.Endpoint, res ProbeResult) {
	if res.Err != nil {
		p.logger.Debug("test transfer failed",
			zap.Uint8("endpoint", ep.Address),
			zap.Stringer("type", ep.Type()),
			zap.Error(res.Err))
	}
	if res.Received <= 0 {
		p.notify.Show("No data received in " + ep.Type().String() + " transfer")
		return
	}
	p.notify.Show(fmt.Sprintf("Processing frame, length: %d", res.Received))
	if p.handler != nil {
		p.handler(p.buf[:res.Received])
	}
}
