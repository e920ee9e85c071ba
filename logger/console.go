package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"
)

const isWindows = runtime.GOOS == "windows"

var noColor = os.Getenv("TERM") == "dumb" ||
	(!isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()))

func color(val string) string {
	if isWindows || noColor {
		return ""
	}
	return val
}

const (
	reset       = "\033[0m"
	red         = "\033[31m"
	green       = "\033[32m"
	magenta     = "\033[35m"
	blueBold    = "\033[34;1m"
	magentaBold = "\033[35;1m"
	redBold     = "\033[31;1m"
	yellowBold  = "\033[33;1m"
	whiteBold   = "\033[37;1m"
	cyanBold    = "\033[36;1m"
	gray        = "\033[1;90m"
	purple      = "[38;5;200m"
)

type consoleLogger struct {
	prefixes []string
	metadata map[string]interface{}
	logLevel LogLevel
}

var _ Logger = (*consoleLogger)(nil)

func (c *consoleLogger) clone() *consoleLogger {
	prefixes := make([]string, len(c.prefixes))
	copy(prefixes, c.prefixes)
	metadata := make(map[string]interface{}, len(c.metadata))
	for k, v := range c.metadata {
		metadata[k] = v
	}
	return &consoleLogger{
		prefixes: prefixes,
		metadata: metadata,
		logLevel: c.logLevel,
	}
}

// WithPrefix will return a new logger with a prefix prepended to the message
func (c *consoleLogger) WithPrefix(prefix string) Logger {
	l := c.clone()
	if !slices.Contains(l.prefixes, prefix) {
		l.prefixes = append(l.prefixes, prefix)
	}
	return l
}

func (c *consoleLogger) With(metadata map[string]interface{}) Logger {
	l := c.clone()
	for k, v := range metadata {
		l.metadata[k] = v
	}
	return l
}

func (c *consoleLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= c.logLevel
}

func levelColors(level LogLevel) (string, string) {
	switch level {
	case LevelTrace:
		return cyanBold, gray
	case LevelDebug:
		return blueBold, green
	case LevelInfo:
		return yellowBold, whiteBold
	case LevelWarn:
		return magentaBold, magenta
	default:
		return redBold, red
	}
}

func (c *consoleLogger) write(level LogLevel, msg string, args ...interface{}) {
	if level < c.logLevel {
		return
	}
	body := fmt.Sprintf(msg, args...)
	var prefix string
	if len(c.prefixes) > 0 {
		prefix = color(purple) + strings.Join(c.prefixes, " ") + color(reset) + " "
	}
	var suffix string
	if len(c.metadata) > 0 {
		buf, _ := json.Marshal(c.metadata)
		suffix = " " + color(gray) + string(buf) + color(reset)
	}
	levelString := level.String()
	var pad string
	if len(levelString) < 5 {
		pad = strings.Repeat(" ", 5-len(levelString))
	}
	levelColor, messageColor := levelColors(level)
	levelText := color(levelColor) + "[" + levelString + "]" + pad + color(reset)
	message := color(messageColor) + body + color(reset)
	log.Printf("%s %s%s%s\n", levelText, prefix, message, suffix)
}

func (c *consoleLogger) Trace(msg string, args ...interface{}) {
	c.write(LevelTrace, msg, args...)
}

func (c *consoleLogger) Debug(msg string, args ...interface{}) {
	c.write(LevelDebug, msg, args...)
}

func (c *consoleLogger) Info(msg string, args ...interface{}) {
	c.write(LevelInfo, msg, args...)
}

func (c *consoleLogger) Warn(msg string, args ...interface{}) {
	c.write(LevelWarn, msg, args...)
}

func (c *consoleLogger) Error(msg string, args ...interface{}) {
	c.write(LevelError, msg, args...)
}

// NewConsoleLogger returns a new Logger instance which will log to the console
func NewConsoleLogger(levels ...LogLevel) Logger {
	level := GetLevelFromEnv()
	if len(levels) > 0 {
		level = levels[0]
	}
	return &consoleLogger{logLevel: level}
}
