// Package logging provides structured logging for lockview.
//
// Logs go to stderr so the window's own terminal output is never interleaved
// with diagnostics on stdout.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents a log level.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the line encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel converts a user-supplied level name. Unknown names fall back to
// info and return ok=false.
func ParseLevel(s string) (Level, bool) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelRank[l]; ok {
		return l, true
	}
	if l == "warning" {
		return LevelWarn, true
	}
	return LevelInfo, false
}

// Logger provides structured logging.
type Logger struct {
	mu     *sync.Mutex
	level  Level
	format Format
	output io.Writer
	fields map[string]any
}

// LogEntry represents a structured log entry.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// NewLogger creates a new JSON logger with the specified level.
func NewLogger(level Level) *Logger {
	return &Logger{
		mu:     &sync.Mutex{},
		level:  level,
		format: FormatJSON,
		output: os.Stderr,
		fields: make(map[string]any),
	}
}

// WithFields returns a new logger with additional fields. The child shares
// the parent's output lock.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	newFields := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &Logger{
		mu:     l.mu,
		level:  l.level,
		format: l.format,
		output: l.output,
		fields: newFields,
	}
}

func (l *Logger) enabled(level Level) bool {
	return levelRank[level] >= levelRank[l.level]
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]any) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]any) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]any) {
	l.log(LevelWarn, msg, fields...)
}

// WarnErr logs a warning with an error value. Used for failures that are
// recovered locally.
func (l *Logger) WarnErr(msg string, err error, fields ...map[string]any) {
	l.log(LevelWarn, msg, withErr(err, fields)...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]any) {
	l.log(LevelError, msg, fields...)
}

// ErrorErr logs an error message with an error value.
func (l *Logger) ErrorErr(msg string, err error, fields ...map[string]any) {
	l.log(LevelError, msg, withErr(err, fields)...)
}

func withErr(err error, fields []map[string]any) []map[string]any {
	combined := map[string]any{}
	if err != nil {
		combined["error"] = err.Error()
	}
	for _, f := range fields {
		for k, v := range f {
			combined[k] = v
		}
	}
	return []map[string]any{combined}
}

func (l *Logger) log(level Level, msg string, fields ...map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled(level) {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Fields:    make(map[string]any),
	}
	for k, v := range l.fields {
		entry.Fields[k] = v
	}
	for _, f := range fields {
		for k, v := range f {
			entry.Fields[k] = v
		}
	}
	if len(entry.Fields) == 0 {
		entry.Fields = nil
	}

	if l.format == FormatText {
		io.WriteString(l.output, formatText(entry))
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.output, `{"level":"error","message":"failed to marshal log entry"}`+"\n")
		return
	}
	l.output.Write(append(data, '\n'))
}

// formatText renders "ts LEVEL message k=v ..." with keys sorted.
func formatText(e LogEntry) string {
	var b strings.Builder
	b.WriteString(e.Timestamp)
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(string(e.Level)))
	b.WriteByte(' ')
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	b.WriteByte('\n')
	return b.String()
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// SetLevel sets the log level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetFormat sets the line encoding. Unknown formats select JSON.
func (l *Logger) SetFormat(format Format) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if format != FormatText {
		format = FormatJSON
	}
	l.format = format
}

// Global logger instance
var global = NewLogger(LevelInfo)

// SetGlobal sets the global logger.
func SetGlobal(l *Logger) {
	global = l
}

// Global returns the global logger.
func Global() *Logger {
	return global
}

// Debug logs to the global logger.
func Debug(msg string, fields ...map[string]any) {
	global.Debug(msg, fields...)
}

// Info logs to the global logger.
func Info(msg string, fields ...map[string]any) {
	global.Info(msg, fields...)
}

// Warn logs to the global logger.
func Warn(msg string, fields ...map[string]any) {
	global.Warn(msg, fields...)
}

// WarnErr logs to the global logger with an error.
func WarnErr(msg string, err error, fields ...map[string]any) {
	global.WarnErr(msg, err, fields...)
}

// Error logs to the global logger.
func Error(msg string, fields ...map[string]any) {
	global.Error(msg, fields...)
}

// ErrorErr logs to the global logger with an error.
func ErrorErr(msg string, err error, fields ...map[string]any) {
	global.ErrorErr(msg, err, fields...)
}

// WithFields returns a new logger from global with additional fields.
func WithFields(fields map[string]any) *Logger {
	return global.WithFields(fields)
}
