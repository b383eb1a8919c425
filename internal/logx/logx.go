// Package logx holds the process logger. Packages log through a named scope
// obtained once with GetScope; Init swaps the underlying zap logger and every
// scope follows.
package logx

import (
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.Logger]

func init() {
	Init("info", "console")
}

// Init rebuilds the global logger. format is "json" or anything else for the
// console encoder.
func Init(level, format string) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.Sampling = nil
	cfg.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     millisTime,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if strings.EqualFold(format, "json") {
		cfg.Encoding = "json"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	} else {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	if prev := global.Swap(z); prev != nil {
		_ = prev.Sync()
	}
}

// Sync flushes buffered entries of the global logger. Call it before exit.
func Sync() error {
	return global.Load().Sync()
}

func millisTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is a named view of the global logger.
type Logger struct {
	name string
}

// GetScope returns the logger of a package or subsystem.
func GetScope(name string) *Logger {
	return &Logger{name: name}
}

func (l *Logger) base() *zap.Logger {
	return global.Load().Named(l.name)
}

// Sugar returns a printf-style logger.
func (l *Logger) Sugar() *zap.SugaredLogger { return l.base().Sugar() }

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.base().Debug(msg, fields...) }

func (l *Logger) Info(msg string, fields ...zap.Field) { l.base().Info(msg, fields...) }

func (l *Logger) Warn(msg string, fields ...zap.Field) { l.base().Warn(msg, fields...) }

func (l *Logger) Error(msg string, fields ...zap.Field) { l.base().Error(msg, fields...) }
