// Package logging is the gateway's structured logger. Components depend on
// the Logger interface; the only implementation is backed by zap.
package logging

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger handed to every component.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// Options configures NewZapLogger.
type Options struct {
	// Level is debug, info, warn or error. Anything else logs at info.
	Level string
	// Format is "json" or "console" (the default).
	Format string
	// Output defaults to stdout.
	Output io.Writer
	// Name is added to every entry as the logger name.
	Name string
}

// ParseLevel maps a LOG_LEVEL value to a zap level. "warning" is accepted
// for warn; unknown values fall back to info.
func ParseLevel(s string) zapcore.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return zapcore.WarnLevel
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil || level > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return level
}
