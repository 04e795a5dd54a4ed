package logging

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"github.com/fatih/color"
)

// writer is an io.Writer that splits its input stream into lines and writes
// those lines to an underlying logger.
type writer struct {
	// callback is the logging callback.
	callback func(string)
	// buffer is any incomplete line fragment left over from a previous write.
	buffer []byte
}

// trimCarriageReturn trims any single trailing carriage return from the end of
// a byte slice.
func trimCarriageReturn(buffer []byte) []byte {
	if len(buffer) > 0 && buffer[len(buffer)-1] == '\r' {
		return buffer[:len(buffer)-1]
	}
	return buffer
}

// Write implements io.Writer.Write.
func (w *writer) Write(buffer []byte) (int, error) {
	w.buffer = append(w.buffer, buffer...)

	var processed int
	remaining := w.buffer
	for {
		index := bytes.IndexByte(remaining, '\n')
		if index == -1 {
			break
		}
		w.callback(string(trimCarriageReturn(remaining[:index])))
		processed += index + 1
		remaining = remaining[index+1:]
	}

	if processed > 0 {
		leftover := len(w.buffer) - processed
		if leftover > 0 {
			copy(w.buffer[:leftover], w.buffer[processed:])
		}
		w.buffer = w.buffer[:leftover]
	}

	return len(buffer), nil
}

// level is the process-wide logging threshold. It defaults to
// LevelInfo so that worker lifecycle events are visible without any
// configuration, matching the shell's behavior of printing "added"/
// "ended"/"restored" lines unconditionally.
var level atomic.Uint32

func init() {
	level.Store(uint32(LevelInfo))
}

// SetLevel adjusts the process-wide logging threshold. It is called
// once at startup from the resolved configuration (pkg/config).
func SetLevel(l Level) {
	level.Store(uint32(l))
}

func enabled(l Level) bool {
	return Level(level.Load()) >= l
}

// Logger is the main logger type. It has the novel property that it
// still functions if nil, but it doesn't log anything — used for
// optional loggers threaded through call chains that don't always
// have one configured. It is designed to use the standard logger
// provided by the log package, so it respects any flags set for that
// logger. It is safe for concurrent usage.
type Logger struct {
	prefix string
}

// RootLogger is the root logger from which all other loggers derive.
var RootLogger = &Logger{}

// Sublogger creates a new sublogger with the specified name, nesting
// it under the current prefix.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{prefix: prefix}
}

func (l *Logger) output(calldepth int, line string) {
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	log.Output(calldepth, line)
}

// Info logs execution information, gated on LevelInfo.
func (l *Logger) Info(v ...any) {
	if l != nil && enabled(LevelInfo) {
		l.output(3, fmt.Sprint(v...))
	}
}

// Infof logs execution information with Printf semantics, gated on
// LevelInfo.
func (l *Logger) Infof(format string, v ...any) {
	if l != nil && enabled(LevelInfo) {
		l.output(3, fmt.Sprintf(format, v...))
	}
}

// Debug logs fine-grained mirroring activity, gated on LevelDebug.
func (l *Logger) Debug(v ...any) {
	if l != nil && enabled(LevelDebug) {
		l.output(3, fmt.Sprint(v...))
	}
}

// Debugf logs fine-grained mirroring activity with Printf semantics,
// gated on LevelDebug.
func (l *Logger) Debugf(format string, v ...any) {
	if l != nil && enabled(LevelDebug) {
		l.output(3, fmt.Sprintf(format, v...))
	}
}

// Warn logs error information with a warning prefix and yellow color,
// gated on LevelWarn.
func (l *Logger) Warn(err error) {
	if l != nil && enabled(LevelWarn) {
		l.output(3, color.YellowString("warning: %v", err))
	}
}

// Error logs error information with an error prefix and red color,
// gated on LevelError.
func (l *Logger) Error(err error) {
	if l != nil && enabled(LevelError) {
		l.output(3, color.RedString("error: %v", err))
	}
}

// Writer returns an io.Writer that logs each complete line written to
// it using Debug.
func (l *Logger) Writer() io.Writer {
	if l == nil {
		return discard{}
	}
	return &writer{callback: func(s string) { l.Debug(s) }}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
