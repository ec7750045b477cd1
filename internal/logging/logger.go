// Package logging is the structured logger threaded through every
// component in this module (Executor, Bus Facade, Signal Router, Pairing
// Agent, Command Queue, Central Manager, Peripheral). It is a library-sized
// reduction of the host application's own logger: level-filtered, with a
// text and a JSON output format, and per-component/per-field scoping.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Level is the severity of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name, defaulting to InfoLevel for anything
// unrecognized (matches BLE_LOG_LEVEL in internal/config).
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Format is the log output encoding.
type Format int

const (
	TextFormat Format = iota
	JSONFormat
)

// ParseFormat parses a format name, defaulting to TextFormat.
func ParseFormat(s string) Format {
	if strings.ToLower(s) == "json" {
		return JSONFormat
	}
	return TextFormat
}

// entry is one rendered log line.
type entry struct {
	Time      time.Time              `json:"time,omitempty"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger is a level-filtered, component-scoped logger. The zero value is
// not usable; construct with New or Default.
type Logger struct {
	level     Level
	format    Format
	output    io.Writer
	component string
	fields    map[string]interface{}
}

// New constructs a Logger writing to output at the given level/format.
func New(level Level, format Format, output io.Writer) *Logger {
	return &Logger{level: level, format: format, output: output}
}

// Default returns an InfoLevel, text-format logger writing to stderr —
// the same default an embedded library uses when the host application
// hasn't wired in its own sink.
func Default() *Logger {
	return New(InfoLevel, TextFormat, os.Stderr)
}

// WithComponent returns a child logger tagging every entry with the given
// component name (e.g. "central", "peripheral:12:34:56:65:43:21").
func (l *Logger) WithComponent(component string) *Logger {
	clone := *l
	clone.component = component
	return &clone
}

// WithFields returns a child logger that merges fields into every entry
// it emits, in addition to whatever per-call fields are supplied.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	clone := *l
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	clone.fields = merged
	return &clone
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) { l.log(DebugLevel, msg, fields...) }
func (l *Logger) Info(msg string, fields ...map[string]interface{})  { l.log(InfoLevel, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...map[string]interface{})  { l.log(WarnLevel, msg, fields...) }
func (l *Logger) Error(msg string, fields ...map[string]interface{}) { l.log(ErrorLevel, msg, fields...) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(DebugLevel, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(InfoLevel, fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(WarnLevel, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(ErrorLevel, fmt.Sprintf(format, args...)) }

func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if l == nil || level < l.level {
		return
	}

	e := entry{
		Time:      time.Now(),
		Level:     level.String(),
		Component: l.component,
		Message:   msg,
	}

	if len(l.fields) > 0 || (len(fields) > 0 && fields[0] != nil) {
		merged := make(map[string]interface{}, len(l.fields))
		for k, v := range l.fields {
			merged[k] = v
		}
		if len(fields) > 0 {
			for k, v := range fields[0] {
				merged[k] = v
			}
		}
		e.Fields = merged
	}

	l.write(e)
}

func (l *Logger) write(e entry) {
	switch l.format {
	case JSONFormat:
		data, err := json.Marshal(e)
		if err != nil {
			fmt.Fprintf(l.output, `{"level":"ERROR","message":"failed to marshal log entry: %v"}`+"\n", err)
			return
		}
		fmt.Fprintln(l.output, string(data))
	default:
		var b strings.Builder
		b.WriteString(e.Time.Format("2006-01-02 15:04:05.000"))
		b.WriteByte(' ')
		b.WriteString(e.Level)
		if e.Component != "" {
			b.WriteString(" [" + e.Component + "]")
		}
		b.WriteString(" " + e.Message)
		for k, v := range e.Fields {
			fmt.Fprintf(&b, " %s=%v", k, v)
		}
		fmt.Fprintln(l.output, b.String())
	}
}
