package logger

import "sync"

// TestLogEntry is a single captured log call.
type TestLogEntry struct {
	Severity  string
	Message   string
	Arguments []interface{}
}

type recorder struct {
	mu      sync.Mutex
	entries []TestLogEntry
}

// TestLogger captures log calls for assertions in tests. Loggers derived
// via With or WithPrefix share the same capture buffer.
type TestLogger struct {
	rec      *recorder
	metadata map[string]interface{}
}

var _ Logger = (*TestLogger)(nil)

// NewTestLogger returns a new Logger instance useful for testing
func NewTestLogger() *TestLogger {
	return &TestLogger{rec: &recorder{}}
}

// Logs returns a copy of the captured entries.
func (c *TestLogger) Logs() []TestLogEntry {
	c.rec.mu.Lock()
	defer c.rec.mu.Unlock()
	out := make([]TestLogEntry, len(c.rec.entries))
	copy(out, c.rec.entries)
	return out
}

func (c *TestLogger) record(severity string, msg string, args ...interface{}) {
	c.rec.mu.Lock()
	c.rec.entries = append(c.rec.entries, TestLogEntry{severity, msg, args})
	c.rec.mu.Unlock()
}

func (c *TestLogger) With(metadata map[string]interface{}) Logger {
	kv := make(map[string]interface{}, len(c.metadata)+len(metadata))
	for k, v := range c.metadata {
		kv[k] = v
	}
	for k, v := range metadata {
		kv[k] = v
	}
	return &TestLogger{rec: c.rec, metadata: kv}
}

func (c *TestLogger) WithPrefix(prefix string) Logger {
	return c
}

func (c *TestLogger) IsLevelEnabled(level LogLevel) bool {
	return true
}

func (c *TestLogger) Trace(msg string, args ...interface{}) {
	c.record("TRACE", msg, args...)
}

func (c *TestLogger) Debug(msg string, args ...interface{}) {
	c.record("DEBUG", msg, args...)
}

func (c *TestLogger) Info(msg string, args ...interface{}) {
	c.record("INFO", msg, args...)
}

func (c *TestLogger) Warn(msg string, args ...interface{}) {
	c.record("WARN", msg, args...)
}

func (c *TestLogger) Error(msg string, args ...interface{}) {
	c.record("ERROR", msg, args...)
}
