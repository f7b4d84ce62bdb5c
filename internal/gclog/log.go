// Package gclog wraps zap to provide an eight-level log severity scheme
// (Trace, Debug, Information, Notice, Warning, Error, Critical, Fatal).
// zap only ships Debug/Info/Warn/Error/DPanic/Panic/Fatal, so the two
// levels it lacks are folded into the nearest zap level (Trace into Debug,
// Notice into Info) and carried instead as a "severity" field.
package gclog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the severity-tagged logging surface the collector and its
// subpackages log through.
type Logger struct {
	z *zap.Logger
}

// New wraps an existing zap logger, typically *zap.Logger from
// zap.NewProduction() or zap.NewDevelopment() depending on the host's own
// environment.
func New(z *zap.Logger) *Logger {
	return &Logger{z: z}
}

// NewNop returns a Logger that discards everything, for tests and for
// embedding a collector into a host that hasn't configured logging.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop()}
}

func (l *Logger) with(severity string, fields []zap.Field) []zap.Field {
	return append([]zap.Field{zap.String("severity", severity)}, fields...)
}

// Trace logs at the lowest severity. Mapped onto zap's Debug level, tagged
// with severity="trace" so a structured-log consumer can still tell it
// apart from Debug.
func (l *Logger) Trace(msg string, fields ...zap.Field) {
	l.z.Debug(msg, l.with("trace", fields)...)
}

// Debug logs a debug-level message.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.z.Debug(msg, l.with("debug", fields)...)
}

// Information logs an info-level message.
func (l *Logger) Information(msg string, fields ...zap.Field) {
	l.z.Info(msg, l.with("information", fields)...)
}

// Notice logs above Information but below Warning. Mapped onto zap's Info
// level, tagged with severity="notice".
func (l *Logger) Notice(msg string, fields ...zap.Field) {
	l.z.Info(msg, l.with("notice", fields)...)
}

// Warning logs a warn-level message.
func (l *Logger) Warning(msg string, fields ...zap.Field) {
	l.z.Warn(msg, l.with("warning", fields)...)
}

// Error logs an error-level message.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.z.Error(msg, l.with("error", fields)...)
}

// Critical logs above Error. Mapped onto zap's DPanic level (logs at error
// severity in production configs, panics in development ones), tagged with
// severity="critical".
func (l *Logger) Critical(msg string, fields ...zap.Field) {
	l.z.DPanic(msg, l.with("critical", fields)...)
}

// Fatal logs and then terminates the process, matching zap's own Fatal
// contract.
func (l *Logger) Fatal(msg string, fields ...zap.Field) {
	l.z.Fatal(msg, l.with("fatal", fields)...)
}

// Core exposes the underlying zapcore.Core, for hosts that want to route
// the collector's logs into their own pipeline.
func (l *Logger) Core() zapcore.Core { return l.z.Core() }

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error { return l.z.Sync() }
