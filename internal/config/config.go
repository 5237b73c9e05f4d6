package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all native library and host tool configuration
type Config struct {
	Camera   CameraConfig   `yaml:"camera" json:"camera"`
	Probe    ProbeConfig    `yaml:"probe" json:"probe"`
	Messages MessagesConfig `yaml:"messages" json:"messages"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Preview  PreviewConfig  `yaml:"preview" json:"preview"`
	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`
}

// CameraConfig describes the frames the camera is expected to deliver.
type CameraConfig struct {
	Width     int `yaml:"width" json:"width"`
	Height    int `yaml:"height" json:"height"`
	FrameRate int `yaml:"frame_rate" json:"frame_rate"`

	// StripUVCHeaders removes UVC payload headers before frame assembly.
	StripUVCHeaders bool `yaml:"strip_uvc_headers" json:"strip_uvc_headers"`
	JPEGQuality     int  `yaml:"jpeg_quality" json:"jpeg_quality"`
	RingSize        int  `yaml:"ring_size" json:"ring_size"`
}

// ProbeConfig controls the endpoint walk.
type ProbeConfig struct {
	Interval        time.Duration `yaml:"interval" json:"interval"`
	TransferTimeout time.Duration `yaml:"transfer_timeout" json:"transfer_timeout"`
	BufferSize      int           `yaml:"buffer_size" json:"buffer_size"`
	ClaimRetries    int           `yaml:"claim_retries" json:"claim_retries"`
	VideoClassOnly  bool          `yaml:"video_class_only" json:"video_class_only"`
}

// MessagesConfig controls the on-screen message queue.
type MessagesConfig struct {
	Delay    time.Duration `yaml:"delay" json:"delay"`
	MaxLines int           `yaml:"max_lines" json:"max_lines"` // 0 = unbounded
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level   string `yaml:"level" json:"level"`
	Tag     string `yaml:"tag" json:"tag"`
	Android bool   `yaml:"android" json:"android"` // write to the platform log
	Console bool   `yaml:"console" json:"console"` // write to stderr
	JSON    bool   `yaml:"json" json:"json"`       // console encoding
}

// PreviewConfig controls the HTTP/websocket preview server.
type PreviewConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Addr        string `yaml:"addr" json:"addr"`
	ClientQueue int    `yaml:"client_queue" json:"client_queue"`
	// FrameRequests bounds GET /frame.jpg per client per second; 0 disables the limit.
	FrameRequests int `yaml:"frame_requests" json:"frame_requests"`
}

// SnapshotConfig controls frame uploads to object storage.
type SnapshotConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled"`
	Every   int         `yaml:"every" json:"every"` // upload every Nth frame
	Prefix  string      `yaml:"prefix" json:"prefix"`
	Queue   int         `yaml:"queue" json:"queue"`
	MinIO   MinIOConfig `yaml:"minio" json:"minio"`
}

// MinIOConfig contains MinIO-specific configuration
type MinIOConfig struct {
	Endpoint        string        `yaml:"endpoint" json:"endpoint"`
	AccessKeyID     string        `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key" json:"secret_access_key"`
	UseSSL          bool          `yaml:"use_ssl" json:"use_ssl"`
	Bucket          string        `yaml:"bucket" json:"bucket"`
	Region          string        `yaml:"region" json:"region"`
	MaxRetries      int           `yaml:"max_retries" json:"max_retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// NewDefaultConfig returns a Config with default values
func NewDefaultConfig() *Config {
	return &Config{
		Camera: CameraConfig{
			Width:           640,
			Height:          480,
			FrameRate:       30,
			StripUVCHeaders: true,
			JPEGQuality:     100,
			RingSize:        8,
		},
		Probe: ProbeConfig{
			Interval:        100 * time.Millisecond,
			TransferTimeout: time.Second,
			BufferSize:      512,
			ClaimRetries:    3,
		},
		Messages: MessagesConfig{
			Delay:    100 * time.Millisecond,
			MaxLines: 500,
		},
		Log: LogConfig{
			Level:   "info",
			Tag:     "native-lib",
			Console: true,
		},
		Preview: PreviewConfig{
			Addr:          "localhost:8090",
			ClientQueue:   4,
			FrameRequests: 30,
		},
		Snapshot: SnapshotConfig{
			Every:  30,
			Prefix: "snapshots",
			Queue:  16,
			MinIO: MinIOConfig{
				Endpoint:       "localhost:9000",
				Bucket:         "otgcam",
				MaxRetries:     3,
				RetryBackoff:   500 * time.Millisecond,
				ConnectTimeout: 10 * time.Second,
			},
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would make the camera path unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		errs = append(errs, fmt.Errorf("camera: width and height must be > 0, got %dx%d", c.Camera.Width, c.Camera.Height))
	}
	if c.Camera.Width%2 != 0 {
		errs = append(errs, fmt.Errorf("camera: width must be even for YUY2, got %d", c.Camera.Width))
	}
	if c.Camera.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("camera: frame_rate must be > 0, got %d", c.Camera.FrameRate))
	}
	if c.Camera.JPEGQuality < 1 || c.Camera.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("camera: jpeg_quality must be between 1 and 100, got %d", c.Camera.JPEGQuality))
	}
	if c.Probe.Interval <= 0 {
		errs = append(errs, errors.New("probe: interval must be > 0"))
	}
	if c.Probe.TransferTimeout <= 0 {
		errs = append(errs, errors.New("probe: transfer_timeout must be > 0"))
	}
	if c.Probe.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("probe: buffer_size must be > 0, got %d", c.Probe.BufferSize))
	}
	if c.Probe.ClaimRetries < 0 {
		errs = append(errs, fmt.Errorf("probe: claim_retries must be >= 0, got %d", c.Probe.ClaimRetries))
	}
	if c.Messages.Delay < 0 {
		errs = append(errs, errors.New("messages: delay must be >= 0"))
	}
	if c.Log.Tag == "" {
		errs = append(errs, errors.New("log: tag is required"))
	}
	if c.Preview.Enabled && c.Preview.Addr == "" {
		errs = append(errs, errors.New("preview: addr is required when enabled"))
	}
	if c.Preview.FrameRequests < 0 {
		errs = append(errs, fmt.Errorf("preview: frame_requests must be >= 0, got %d", c.Preview.FrameRequests))
	}
	if c.Snapshot.Enabled {
		if c.Snapshot.MinIO.Endpoint == "" || c.Snapshot.MinIO.Bucket == "" {
			errs = append(errs, errors.New("snapshot: minio endpoint and bucket are required when enabled"))
		}
		if c.Snapshot.Every <= 0 {
			errs = append(errs, fmt.Errorf("snapshot: every must be > 0, got %d", c.Snapshot.Every))
		}
	}
	return errors.Join(errs...)
}

// FrameSize returns the number of bytes in one YUY2 frame.
func (c CameraConfig) FrameSize() int {
	return c.Width * c.Height * 2
}
