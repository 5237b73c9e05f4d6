package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Log.Tag != "native-lib" {
		t.Fatalf("expected default tag native-lib, got %q", cfg.Log.Tag)
	}
	if cfg.Probe.Interval != 100*time.Millisecond || cfg.Probe.BufferSize != 512 {
		t.Fatalf("unexpected probe defaults: %+v", cfg.Probe)
	}
	if got := cfg.Camera.FrameSize(); got != 640*480*2 {
		t.Fatalf("FrameSize = %d", got)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "otgcam.yaml")
	data := `
camera:
  width: 320
  height: 240
probe:
  interval: 250ms
  video_class_only: true
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Camera.Width != 320 || cfg.Camera.Height != 240 {
		t.Fatalf("camera not overridden: %+v", cfg.Camera)
	}
	if cfg.Camera.FrameRate != 30 {
		t.Fatalf("frame rate default lost: %d", cfg.Camera.FrameRate)
	}
	if cfg.Probe.Interval != 250*time.Millisecond || !cfg.Probe.VideoClassOnly {
		t.Fatalf("probe not overridden: %+v", cfg.Probe)
	}
	if cfg.Probe.TransferTimeout != time.Second {
		t.Fatalf("transfer timeout default lost: %v", cfg.Probe.TransferTimeout)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero width", func(c *Config) { c.Camera.Width = 0 }, "width and height"},
		{"odd width", func(c *Config) { c.Camera.Width = 641 }, "even"},
		{"zero frame rate", func(c *Config) { c.Camera.FrameRate = 0 }, "frame_rate"},
		{"bad quality", func(c *Config) { c.Camera.JPEGQuality = 101 }, "jpeg_quality"},
		{"zero interval", func(c *Config) { c.Probe.Interval = 0 }, "interval"},
		{"zero timeout", func(c *Config) { c.Probe.TransferTimeout = 0 }, "transfer_timeout"},
		{"zero buffer", func(c *Config) { c.Probe.BufferSize = 0 }, "buffer_size"},
		{"empty tag", func(c *Config) { c.Log.Tag = "" }, "tag"},
		{"preview without addr", func(c *Config) {
			c.Preview.Enabled = true
			c.Preview.Addr = ""
		}, "preview: addr"},
		{"negative frame requests", func(c *Config) { c.Preview.FrameRequests = -1 }, "frame_requests"},
		{"snapshot without bucket", func(c *Config) {
			c.Snapshot.Enabled = true
			c.Snapshot.MinIO.Bucket = ""
		}, "bucket"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	if _, err := Parse([]byte("camera:\n  width: -1\n")); err == nil {
		t.Fatal("expected error for negative width")
	}
	if _, err := Parse([]byte("camera: [")); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
