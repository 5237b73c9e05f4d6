package frame

import "sync/atomic"

// UVC payload header bits (bmHeaderInfo).
const (
	uvcFID = 0x01
	uvcEOF = 0x02
	uvcERR = 0x40
	uvcEOH = 0x80
)

// AssemblerStats counts assembler activity.
type AssemblerStats struct {
	Frames   uint64
	Dropped  uint64
	Payloads uint64
	Bytes    uint64
}

// Assembler accumulates transfer payloads into complete YUY2 frames.
//
// Without header stripping payloads are treated as a raw byte stream and split
// at frame-size boundaries. With header stripping each payload that starts with
// a valid UVC header loses it; a toggled FID bit starts a new frame, the EOF bit
// ends one, and the ERR bit discards it. Incomplete frames are dropped and bytes
// beyond the frame size are truncated. Write is not safe for concurrent use.
type Assembler struct {
	frameSize    int
	stripHeaders bool

	buf     []byte
	lastFID byte
	hasFID  bool

	frames   atomic.Uint64
	dropped  atomic.Uint64
	payloads atomic.Uint64
	bytes    atomic.Uint64
}

// NewAssembler creates an assembler for frames of frameSize bytes.
func NewAssembler(frameSize int, stripHeaders bool) *Assembler {
	return &Assembler{
		frameSize:    frameSize,
		stripHeaders: stripHeaders,
		buf:          make([]byte, 0, frameSize),
	}
}

// Write consumes one payload and returns any frames it completed. The returned
// slices are owned by the caller.
func (a *Assembler) Write(payload []byte) [][]byte {
	a.payloads.Add(1)
	a.bytes.Add(uint64(len(payload)))

	if a.stripHeaders {
		if hlen, info, ok := parseHeader(payload); ok {
			return a.writeWithHeader(payload[hlen:], info)
		}
	}
	return a.writeRaw(payload)
}

func (a *Assembler) writeRaw(data []byte) [][]byte {
	var out [][]byte
	for len(data) > 0 {
		n := min(a.frameSize-len(a.buf), len(data))
		a.buf = append(a.buf, data[:n]...)
		data = data[n:]
		if len(a.buf) == a.frameSize {
			out = append(out, a.take())
		}
	}
	return out
}

func (a *Assembler) writeWithHeader(data []byte, info byte) [][]byte {
	var out [][]byte

	fid := info & uvcFID
	if a.hasFID && fid != a.lastFID && len(a.buf) > 0 {
		if f := a.finish(); f != nil {
			out = append(out, f)
		}
	}
	a.lastFID = fid
	a.hasFID = true

	if info&uvcERR != 0 {
		a.drop()
		return out
	}

	n := min(a.frameSize-len(a.buf), len(data))
	a.buf = append(a.buf, data[:n]...)

	if info&uvcEOF != 0 {
		if f := a.finish(); f != nil {
			out = append(out, f)
		}
	}
	return out
}

// finish emits the buffered frame when complete and drops it otherwise.
func (a *Assembler) finish() []byte {
	if len(a.buf) == a.frameSize {
		return a.take()
	}
	a.drop()
	return nil
}

func (a *Assembler) take() []byte {
	f := make([]byte, len(a.buf))
	copy(f, a.buf)
	a.buf = a.buf[:0]
	a.frames.Add(1)
	return f
}

func (a *Assembler) drop() {
	if len(a.buf) > 0 {
		a.dropped.Add(1)
	}
	a.buf = a.buf[:0]
}

// Pending returns the number of bytes buffered toward the next frame.
func (a *Assembler) Pending() int { return len(a.buf) }

// Stats returns a snapshot of the counters.
func (a *Assembler) Stats() AssemblerStats {
	return AssemblerStats{
		Frames:   a.frames.Load(),
		Dropped:  a.dropped.Load(),
		Payloads: a.payloads.Load(),
		Bytes:    a.bytes.Load(),
	}
}

func parseHeader(p []byte) (hlen int, info byte, ok bool) {
	if len(p) < 2 {
		return 0, 0, false
	}
	hlen = int(p[0])
	info = p[1]
	if hlen < 2 || hlen > 12 || hlen > len(p) || info&uvcEOH == 0 {
		return 0, 0, false
	}
	return hlen, info, true
}
