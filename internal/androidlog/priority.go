// Package androidlog routes zap entries to the Android platform log.
package androidlog

import "go.uber.org/zap/zapcore"

// Priority mirrors android_LogPriority from <android/log.h>.
type Priority int

const (
	PriorityVerbose Priority = 2
	PriorityDebug   Priority = 3
	PriorityInfo    Priority = 4
	PriorityWarn    Priority = 5
	PriorityError   Priority = 6
	PriorityFatal   Priority = 7
)

// PriorityFor maps a zap level onto the closest Android priority.
func PriorityFor(level zapcore.Level) Priority {
	switch {
	case level < zapcore.DebugLevel:
		return PriorityVerbose
	case level == zapcore.DebugLevel:
		return PriorityDebug
	case level == zapcore.InfoLevel:
		return PriorityInfo
	case level == zapcore.WarnLevel:
		return PriorityWarn
	case level == zapcore.ErrorLevel, level == zapcore.DPanicLevel:
		return PriorityError
	default:
		return PriorityFatal
	}
}

// Letter returns the single-letter code logcat prints for p.
func (p Priority) Letter() string {
	switch p {
	case PriorityVerbose:
		return "V"
	case PriorityDebug:
		return "D"
	case PriorityInfo:
		return "I"
	case PriorityWarn:
		return "W"
	case PriorityError:
		return "E"
	case PriorityFatal:
		return "F"
	default:
		return "?"
	}
}
