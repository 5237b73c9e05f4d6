package frame

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Frame is one compressed camera frame.
type Frame struct {
	Sequence  uint64
	Width     int
	Height    int
	Data      []byte // JPEG
	Timestamp time.Time
}

// Sink consumes finished frames.
type Sink interface {
	HandleFrame(Frame)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Frame)

func (f SinkFunc) HandleFrame(fr Frame) { f(fr) }

// Processor turns transfer payloads into JPEG frames and fans them out to sinks.
type Processor struct {
	width   int
	height  int
	quality int

	mu        sync.Mutex
	assembler *Assembler
	sinks     []Sink

	sequence atomic.Uint64
	errors   atomic.Uint64
	logger   *zap.Logger
	now      func() time.Time
}

// NewProcessor creates a processor for width x height YUY2 frames.
func NewProcessor(width, height, quality int, stripHeaders bool, sinks ...Sink) *Processor {
	return &Processor{
		width:     width,
		height:    height,
		quality:   quality,
		assembler: NewAssembler(width*height*2, stripHeaders),
		sinks:     sinks,
		logger:    zap.L().Named("frame"),
		now:       time.Now,
	}
}

// AddSink registers another consumer.
func (p *Processor) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

// Process consumes one payload and returns the number of frames it completed.
func (p *Processor) Process(payload []byte) (int, error) {
	p.mu.Lock()
	raw := p.assembler.Write(payload)
	sinks := append([]Sink(nil), p.sinks...)
	p.mu.Unlock()

	for i, buf := range raw {
		fr, err := p.encode(buf)
		if err != nil {
			p.errors.Add(1)
			return i, err
		}
		for _, s := range sinks {
			s.HandleFrame(fr)
		}
	}
	return len(raw), nil
}

// ProcessFrame encodes a buffer that already holds exactly one YUY2 frame,
// bypassing assembly (V4L2 delivers whole frames).
func (p *Processor) ProcessFrame(buf []byte) (Frame, error) {
	fr, err := p.encode(buf)
	if err != nil {
		p.errors.Add(1)
		return Frame{}, err
	}
	p.mu.Lock()
	sinks := append([]Sink(nil), p.sinks...)
	p.mu.Unlock()
	for _, s := range sinks {
		s.HandleFrame(fr)
	}
	return fr, nil
}

func (p *Processor) encode(buf []byte) (Frame, error) {
	img, err := DecodeYUY2(buf, p.width, p.height)
	if err != nil {
		return Frame{}, err
	}
	data, err := EncodeJPEG(img, p.quality)
	if err != nil {
		return Frame{}, fmt.Errorf("frame %d: %w", p.sequence.Load()+1, err)
	}
	fr := Frame{
		Sequence:  p.sequence.Add(1),
		Width:     p.width,
		Height:    p.height,
		Data:      data,
		Timestamp: p.now(),
	}
	p.logger.Debug("frame encoded", zap.Uint64("sequence", fr.Sequence), zap.Int("bytes", len(data)))
	return fr, nil
}

// Stats returns assembler counters plus the encode error count.
func (p *Processor) Stats() (AssemblerStats, uint64) {
	return p.assembler.Stats(), p.errors.Load()
}
