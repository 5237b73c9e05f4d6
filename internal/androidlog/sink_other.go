//go:build !android

package androidlog

import "os"

// DefaultSink writes logcat-style lines to stderr off-device.
func DefaultSink() Sink { return NewWriterSink(os.Stderr) }
