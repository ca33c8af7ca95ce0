package logging

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements Logger on top of a zap.Logger.
type ZapLogger struct {
	zl    *zap.Logger
	level zap.AtomicLevel
}

// NewZapLogger builds a logger from opts.
func NewZapLogger(opts Options) (*ZapLogger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encCfg.EncodeDuration = zapcore.MillisDurationEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if strings.EqualFold(opts.Format, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	out := zapcore.Lock(os.Stdout)
	if opts.Output != nil {
		out = zapcore.AddSync(opts.Output)
	}

	level := zap.NewAtomicLevelAt(ParseLevel(opts.Level))
	zl := zap.New(zapcore.NewCore(enc, out, level), zap.AddCaller(), zap.AddCallerSkip(1))
	if opts.Name != "" {
		zl = zl.Named(opts.Name)
	}
	return &ZapLogger{zl: zl, level: level}, nil
}

// NewNopLogger discards every entry.
func NewNopLogger() *ZapLogger {
	return &ZapLogger{zl: zap.NewNop(), level: zap.NewAtomicLevel()}
}

func (l *ZapLogger) Debug(msg string, fields ...Field) { l.zl.Debug(msg, toZap(fields)...) }
func (l *ZapLogger) Info(msg string, fields ...Field) { l.zl.Info(msg, toZap(fields)...) }
func (l *ZapLogger) Warn(msg string, fields ...Field) { l.zl.Warn(msg, toZap(fields)...) }

// Error logs msg with err under the "error" key. A nil err is left out.
func (l *ZapLogger) Error(msg string, err error, fields ...Field) {
	zf := toZap(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.zl.Error(msg, zf...)
}

// WithFields returns a child logger. With no fields it returns l itself.
func (l *ZapLogger) WithFields(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	return &ZapLogger{zl: l.zl.With(toZap(fields)...), level: l.level}
}

// WithContext returns a child logger carrying the request id and webhook
// subscription stored in ctx. It returns l itself when ctx holds neither.
func (l *ZapLogger) WithContext(ctx context.Context) Logger {
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return &ZapLogger{zl: l.zl.With(fields...), level: l.level}
}

// SetLevel changes the level of l and every logger derived from it.
func (l *ZapLogger) SetLevel(level string) {
	l.level.SetLevel(ParseLevel(level))
}

// Level reports the current level name.
func (l *ZapLogger) Level() string {
	return l.level.Level().String()
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.zl.Sync()
}
