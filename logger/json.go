package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// JSONLogEntry defines a structured log entry as emitted by the JSON logger,
// one entry per line.
type JSONLogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Component string                 `json:"component,omitempty"`
}

type jsonLogger struct {
	metadata  map[string]interface{}
	component string
	out       io.Writer
	logLevel  LogLevel
	ts        *time.Time // for unit testing
}

var _ Logger = (*jsonLogger)(nil)

func (c *jsonLogger) clone() *jsonLogger {
	metadata := make(map[string]interface{}, len(c.metadata))
	for k, v := range c.metadata {
		metadata[k] = v
	}
	return &jsonLogger{
		metadata:  metadata,
		component: c.component,
		out:       c.out,
		logLevel:  c.logLevel,
		ts:        c.ts,
	}
}

func (c *jsonLogger) With(metadata map[string]interface{}) Logger {
	l := c.clone()
	for k, v := range metadata {
		l.metadata[k] = v
	}
	return l
}

// WithPrefix sets the component field of emitted entries. Multiple prefixes
// are joined with a space, mirroring the console logger.
func (c *jsonLogger) WithPrefix(prefix string) Logger {
	l := c.clone()
	if l.component == "" {
		l.component = prefix
	} else if !strings.Contains(l.component, prefix) {
		l.component += " " + prefix
	}
	return l
}

func (c *jsonLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= c.logLevel
}

func (c *jsonLogger) write(level LogLevel, msg string, args ...interface{}) {
	if level < c.logLevel {
		return
	}
	ts := time.Now()
	if c.ts != nil {
		ts = *c.ts
	}
	entry := JSONLogEntry{
		Timestamp: ts,
		Severity:  level.String(),
		Message:   fmt.Sprintf(msg, args...),
		Metadata:  c.metadata,
		Component: c.component,
	}
	if len(c.metadata) == 0 {
		entry.Metadata = nil
	}
	buf, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: json.Marshal: %v\n", err)
		return
	}
	c.out.Write(append(buf, '\n'))
}

func (c *jsonLogger) Trace(msg string, args ...interface{}) {
	c.write(LevelTrace, msg, args...)
}

func (c *jsonLogger) Debug(msg string, args ...interface{}) {
	c.write(LevelDebug, msg, args...)
}

func (c *jsonLogger) Info(msg string, args ...interface{}) {
	c.write(LevelInfo, msg, args...)
}

func (c *jsonLogger) Warn(msg string, args ...interface{}) {
	c.write(LevelWarn, msg, args...)
}

func (c *jsonLogger) Error(msg string, args ...interface{}) {
	c.write(LevelError, msg, args...)
}

// NewJSONLogger returns a new Logger instance which emits one JSON entry per
// line to out. If out is nil, os.Stdout is used.
func NewJSONLogger(out io.Writer, levels ...LogLevel) Logger {
	level := GetLevelFromEnv()
	if len(levels) > 0 {
		level = levels[0]
	}
	if out == nil {
		out = os.Stdout
	}
	return &jsonLogger{out: out, logLevel: level}
}
