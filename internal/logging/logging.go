// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mikeyg42/otgcam/internal/androidlog"
	"github.com/mikeyg42/otgcam/internal/config"
)

// Option customises logger construction.
type Option func(*options)

type options struct {
	sink androidlog.Sink
}

// WithSink replaces the platform log sink, mostly for tests.
func WithSink(sink androidlog.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// ParseLevel accepts debug, info, warn and error (case-insensitive).
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// New builds a logger from cfg. Console and Android outputs are teed when both are on;
// with neither enabled the logger is a no-op.
func New(cfg config.LogConfig, opts ...Option) (*zap.Logger, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	enab := zap.NewAtomicLevelAt(level)

	var cores []zapcore.Core
	if cfg.Console {
		encCfg := zap.NewDevelopmentEncoderConfig()
		var enc zapcore.Encoder
		if cfg.JSON {
			encCfg = zap.NewProductionEncoderConfig()
			enc = zapcore.NewJSONEncoder(encCfg)
		} else {
			enc = zapcore.NewConsoleEncoder(encCfg)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), enab))
	}
	if cfg.Android || o.sink != nil {
		cores = append(cores, androidlog.NewCore(o.sink, cfg.Tag, enab))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

// Install replaces zap's globals with l and returns a function restoring the previous ones.
func Install(l *zap.Logger) func() {
	if l == nil {
		return func() {}
	}
	return zap.ReplaceGlobals(l)
}
