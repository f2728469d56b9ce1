package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug. It is used for per-chunk and per-attempt
// detail that is almost always filtered out.
const TraceLevel = zapcore.Level(-2)

// ParseLevel parses a level name. It accepts "trace" in addition to the
// names zapcore understands, and is case-insensitive.
func ParseLevel(level string) (zapcore.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}
