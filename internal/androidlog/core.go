package androidlog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Core is a zapcore.Core that hands each entry to a Sink as a single record.
// The tag is the entry's logger name when set, otherwise the core's default tag.
type Core struct {
	zapcore.LevelEnabler
	sink   Sink
	tag    string
	fields []zapcore.Field
}

// NewCore creates a core writing to sink under tag.
func NewCore(sink Sink, tag string, enab zapcore.LevelEnabler) *Core {
	if sink == nil {
		sink = DefaultSink()
	}
	return &Core{LevelEnabler: enab, sink: sink, tag: tag}
}

func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	if len(fields) == 0 {
		return c
	}
	cp := &Core{LevelEnabler: c.LevelEnabler, sink: c.sink, tag: c.tag}
	cp.fields = make([]zapcore.Field, 0, len(c.fields)+len(fields))
	cp.fields = append(cp.fields, c.fields...)
	cp.fields = append(cp.fields, fields...)
	return cp
}

func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	tag := c.tag
	if ent.LoggerName != "" {
		tag = ent.LoggerName
	}
	return c.sink.Write(PriorityFor(ent.Level), tag, formatMessage(ent.Message, c.fields, fields))
}

func (c *Core) Sync() error { return nil }

// formatMessage appends context and call fields to msg as sorted key=value pairs.
func formatMessage(msg string, static, call []zapcore.Field) string {
	if len(static) == 0 && len(call) == 0 {
		return msg
	}

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range static {
		f.AddTo(enc)
	}
	for _, f := range call {
		f.AddTo(enc)
	}

	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(quoteIfNeeded(fmtVal(enc.Fields[k])))
	}
	return b.String()
}

func fmtVal(v any) string {
	if v == nil {
		return "null"
	}
	switch t := v.(type) {
	case error:
		return t.Error()
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case time.Duration:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\r=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
