// Copyright 2026 The slatevm Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides a minimal leveled logging facility.
//
// There is a single process-global logger; packages log through the
// package-level functions. The zero configuration emits plain text to
// stderr at the Info level. Tests and embedders may install their own
// Emitter via SetTarget.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Level is a logging severity.
type Level uint32

// The set of levels, least to most verbose.
const (
	// Warning indicates a problem.
	Warning Level = iota

	// Info is informational.
	Info

	// Debug is verbose tracing. Debug logging has a cost and is expected
	// to be disabled in production.
	Debug
)

// String implements fmt.Stringer.String.
func (l Level) String() string {
	switch l {
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		return fmt.Sprintf("invalid level %d", uint32(l))
	}
}

// Emitter is the final destination for log lines.
type Emitter interface {
	// Emit writes a single log line. The timestamp is the time of the
	// logging call.
	Emit(level Level, timestamp time.Time, format string, v ...any)
}

// Writer serializes writes to an underlying io.Writer.
type Writer struct {
	mu   sync.Mutex
	Next io.Writer
}

// Write implements io.Writer.Write.
func (w *Writer) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Next.Write(b)
}

// TextEmitter emits "L0102 15:04:05.000000 message" lines.
type TextEmitter struct {
	*Writer
}

// Emit implements Emitter.Emit.
func (e TextEmitter) Emit(level Level, timestamp time.Time, format string, v ...any) {
	prefix := fmt.Sprintf("%c%s ", level.String()[0]-'a'+'A', timestamp.Format("0102 15:04:05.000000"))
	fmt.Fprintf(e.Writer, prefix+format+"\n", v...)
}

// Logger is a high-level logging interface.
type Logger interface {
	// Debugf logs at the Debug level.
	Debugf(format string, v ...any)

	// Infof logs at the Info level.
	Infof(format string, v ...any)

	// Warningf logs at the Warning level.
	Warningf(format string, v ...any)

	// IsLogging returns true if the given level would be emitted.
	IsLogging(level Level) bool
}

// BasicLogger is a Logger that emits everything at or below its level.
type BasicLogger struct {
	Level
	Emitter
}

// Debugf implements Logger.Debugf.
func (l *BasicLogger) Debugf(format string, v ...any) {
	l.logf(Debug, format, v...)
}

// Infof implements Logger.Infof.
func (l *BasicLogger) Infof(format string, v ...any) {
	l.logf(Info, format, v...)
}

// Warningf implements Logger.Warningf.
func (l *BasicLogger) Warningf(format string, v ...any) {
	l.logf(Warning, format, v...)
}

// IsLogging implements Logger.IsLogging.
func (l *BasicLogger) IsLogging(level Level) bool {
	return level <= l.Level
}

func (l *BasicLogger) logf(level Level, format string, v ...any) {
	if l.IsLogging(level) {
		l.Emit(level, time.Now(), format, v...)
	}
}

// logger is the process-global logger.
var logger atomic.Pointer[BasicLogger]

func init() {
	logger.Store(&BasicLogger{
		Level:   Info,
		Emitter: TextEmitter{&Writer{Next: os.Stderr}},
	})
}

// Log retrieves the global logger.
func Log() *BasicLogger {
	return logger.Load()
}

// SetTarget sets the log target, preserving the current level.
func SetTarget(target Emitter) {
	logger.Store(&BasicLogger{Level: Log().Level, Emitter: target})
}

// SetLevel sets the log level, preserving the current target.
func SetLevel(newLevel Level) {
	logger.Store(&BasicLogger{Level: newLevel, Emitter: Log().Emitter})
}

// Debugf logs to the global logger.
func Debugf(format string, v ...any) {
	Log().Debugf(format, v...)
}

// Infof logs to the global logger.
func Infof(format string, v ...any) {
	Log().Infof(format, v...)
}

// Warningf logs to the global logger.
func Warningf(format string, v ...any) {
	Log().Warningf(format, v...)
}

// IsLogging returns true if the global logger emits the given level.
func IsLogging(level Level) bool {
	return Log().IsLogging(level)
}
