package main

import (
	"testing"

	"github.com/mikeyg42/otgcam/internal/androidlog"
	"github.com/mikeyg42/otgcam/internal/logging"
)

type sinkRecord struct {
	prio androidlog.Priority
	tag  string
	msg  string
}

func TestStartCameraWritesPlatformLog(t *testing.T) {
	var got []sinkRecord
	sink := androidlog.SinkFunc(func(prio androidlog.Priority, tag, msg string) error {
		got = append(got, sinkRecord{prio, tag, msg})
		return nil
	})
	a, err := NewApplication(nativeConfig(), logging.WithSink(sink))
	if err != nil {
		t.Fatal(err)
	}
	defer a.bridge.Close()

	a.startCamera()

	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %+v", got)
	}
	if got[0] != (sinkRecord{androidlog.PriorityInfo, "native-lib", "Start Camera"}) {
		t.Fatalf("unexpected record %+v", got[0])
	}
}

func TestLatestFrameEmptyBeforeAttach(t *testing.T) {
	a, err := NewApplication(nativeConfig(), logging.WithSink(androidlog.SinkFunc(func(androidlog.Priority, string, string) error { return nil })))
	if err != nil {
		t.Fatal(err)
	}
	defer a.bridge.Close()

	if data := a.latestFrame(); len(data) != 0 {
		t.Fatalf("unexpected frame of %d bytes", len(data))
	}
	if a.messages() != "" {
		t.Fatalf("unexpected messages %q", a.messages())
	}
	a.detachDevice()
}

func TestGuardRecoversPanic(t *testing.T) {
	a, err := NewApplication(nativeConfig(), logging.WithSink(androidlog.SinkFunc(func(androidlog.Priority, string, string) error { return nil })))
	if err != nil {
		t.Fatal(err)
	}
	defer a.bridge.Close()

	func() {
		defer a.guard("test")
		panic("boom")
	}()
}

func TestNativePreviewFollowsConfig(t *testing.T) {
	cfg := nativeConfig()
	cfg.Preview.Enabled = true
	cfg.Preview.Addr = "127.0.0.1:0"
	a, err := NewApplication(cfg, logging.WithSink(androidlog.SinkFunc(func(androidlog.Priority, string, string) error { return nil })))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.bridge.Preview() == nil {
		t.Fatal("preview server not wired")
	}
	if a.uploader != nil {
		t.Fatal("uploader built while snapshots are disabled")
	}
}
