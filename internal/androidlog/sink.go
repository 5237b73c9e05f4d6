package androidlog

import (
	"fmt"
	"io"
	"sync"
)

// Sink receives one formatted record per log entry.
type Sink interface {
	Write(prio Priority, tag, msg string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(prio Priority, tag, msg string) error

func (f SinkFunc) Write(prio Priority, tag, msg string) error { return f(prio, tag, msg) }

type writerSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink writes records to w in logcat's brief format ("I/tag: msg").
func NewWriterSink(w io.Writer) Sink {
	return &writerSink{w: w}
}

func (s *writerSink) Write(prio Priority, tag, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s/%s: %s\n", prio.Letter(), tag, msg)
	return err
}
