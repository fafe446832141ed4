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

// Level represents the logging level.
type Level int

const (
	// LevelDebug is the most verbose level.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// String returns the lower-case name of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLevel parses a level name. Unknown names map to LevelInfo.
func ParseLevel(s string) Level {
	for l, name := range levelNames {
		if strings.EqualFold(s, name) {
			return l
		}
	}
	return LevelInfo
}

// ValidLevel reports whether s names a level.
func ValidLevel(s string) bool {
	for _, name := range levelNames {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// Format represents the log output format.
type Format int

const (
	// FormatText writes "ts [level] msg k=v ..." lines.
	FormatText Format = iota
	// FormatJSON writes one JSON object per line.
	FormatJSON
)

// ParseFormat parses a format name. Unknown names map to FormatText.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "json") {
		return FormatJSON
	}
	return FormatText
}

// Logger is the interface for structured logging.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})
	// Info logs an info message with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})
	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})
	// Error logs an error message with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
	// WithRequestID returns a new logger with the given request ID.
	WithRequestID(requestID string) Logger
	// WithFields returns a new logger with the given fields.
	WithFields(keysAndValues ...interface{}) Logger
}

// Config holds the logger configuration.
type Config struct {
	Level  string
	Format string
	// Output is "stdout", "stderr" or a file path. Ignored when Writer is
	// set.
	Output string
	Writer io.Writer
	// Recorder, when set, also receives every written entry.
	Recorder *Recorder
}

// sink is shared by a logger and every logger derived from it.
type sink struct {
	mu       sync.Mutex
	out      io.Writer
	recorder *Recorder
}

type logger struct {
	level     Level
	format    Format
	sink      *sink
	fields    map[string]interface{}
	requestID string
}

// New creates a new Logger with the given configuration.
func New(cfg Config) Logger {
	out := cfg.Writer
	if out == nil {
		out = openOutput(cfg.Output)
	}
	return &logger{
		level:  ParseLevel(cfg.Level),
		format: ParseFormat(cfg.Format),
		sink:   &sink{out: out, recorder: cfg.Recorder},
		fields: make(map[string]interface{}),
	}
}

func openOutput(name string) io.Writer {
	switch name {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return os.Stdout
	}
	return f
}

// NewDefault creates an info-level text logger writing to stdout.
func NewDefault() Logger {
	return New(Config{})
}

// NewNop creates a no-op logger that discards all output.
func NewNop() Logger {
	return &nopLogger{}
}

func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(LevelDebug, msg, keysAndValues)
}

func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(LevelInfo, msg, keysAndValues)
}

func (l *logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(LevelWarn, msg, keysAndValues)
}

func (l *logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(LevelError, msg, keysAndValues)
}

func (l *logger) WithRequestID(requestID string) Logger {
	c := l.clone()
	c.requestID = requestID
	return c
}

func (l *logger) WithFields(keysAndValues ...interface{}) Logger {
	c := l.clone()
	addPairs(c.fields, keysAndValues)
	return c
}

func (l *logger) clone() *logger {
	fields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &logger{
		level:     l.level,
		format:    l.format,
		sink:      l.sink,
		fields:    fields,
		requestID: l.requestID,
	}
}

// addPairs copies key-value pairs into dst. Non-string keys and a trailing
// key without a value are dropped. Errors are stored as their message.
func addPairs(dst map[string]interface{}, keysAndValues []interface{}) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		k, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		v := keysAndValues[i+1]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		dst[k] = v
	}
}

func (l *logger) log(level Level, msg string, keysAndValues []interface{}) {
	if level < l.level {
		return
	}

	now := time.Now().UTC()
	fields := make(map[string]interface{}, len(l.fields)+len(keysAndValues)/2)
	for k, v := range l.fields {
		fields[k] = v
	}
	addPairs(fields, keysAndValues)

	var line string
	if l.format == FormatJSON {
		line = formatJSON(now, level, msg, l.requestID, fields)
	} else {
		line = formatText(now, level, msg, l.requestID, fields)
	}

	l.sink.mu.Lock()
	fmt.Fprintln(l.sink.out, line)
	l.sink.mu.Unlock()

	if l.sink.recorder != nil {
		l.sink.recorder.Record(Entry{
			Timestamp: now,
			Level:     level.String(),
			Message:   msg,
			RequestID: l.requestID,
			Fields:    fields,
		})
	}
}

func formatJSON(ts time.Time, level Level, msg, requestID string, fields map[string]interface{}) string {
	entry := make(map[string]interface{}, len(fields)+4)
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = ts.Format(time.RFC3339)
	entry["level"] = level.String()
	entry["msg"] = msg
	if requestID != "" {
		entry["request_id"] = requestID
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Sprintf(`{"ts":%q,"level":"error","msg":"failed to marshal log entry"}`, ts.Format(time.RFC3339))
	}
	return string(data)
}

// formatText writes fields in key order so lines are stable.
func formatText(ts time.Time, level Level, msg, requestID string, fields map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", ts.Format(time.RFC3339), level, msg)
	if requestID != "" {
		fmt.Fprintf(&b, " request_id=%s", requestID)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

type nopLogger struct{}

func (n *nopLogger) Debug(string, ...interface{})     {}
func (n *nopLogger) Info(string, ...interface{})      {}
func (n *nopLogger) Warn(string, ...interface{})      {}
func (n *nopLogger) Error(string, ...interface{})     {}
func (n *nopLogger) WithRequestID(string) Logger      { return n }
func (n *nopLogger) WithFields(...interface{}) Logger { return n }
