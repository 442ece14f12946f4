package logger

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

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
	reset      = "\033[0m"
	red        = "\033[31m"
	green      = "\033[32m"
	blue       = "\033[34m"
	gray       = "\033[1;90m"
	blueBold   = "\033[34;1m"
	redBold    = "\033[31;1m"
	yellowBold = "\033[33;1m"
	cyanBold   = "\033[36;1m"
)

func levelColor(level LogLevel) string {
	switch level {
	case LevelTrace:
		return cyanBold
	case LevelDebug:
		return blueBold
	case LevelInfo:
		return yellowBold
	case LevelWarn:
		return yellowBold
	case LevelError:
		return redBold
	}
	return reset
}

func messageColor(level LogLevel) string {
	switch level {
	case LevelTrace:
		return gray
	case LevelDebug:
		return green
	case LevelError:
		return red
	}
	return blue
}

type consoleLogger struct {
	prefixes []string
	metadata map[string]interface{}
	logLevel LogLevel

	mu sync.Mutex
}

var _ Logger = (*consoleLogger)(nil)

// NewConsoleLogger returns a Logger that writes colorized, human-readable
// lines to stderr. Color is suppressed when stdout is not a terminal.
func NewConsoleLogger(level LogLevel) Logger {
	return &consoleLogger{logLevel: level}
}

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

func (c *consoleLogger) With(metadata map[string]interface{}) Logger {
	l := c.clone()
	for k, v := range metadata {
		l.metadata[k] = v
	}
	return l
}

// WithPrefix will return a new logger with a prefix prepended to the message
func (c *consoleLogger) WithPrefix(prefix string) Logger {
	l := c.clone()
	for _, p := range l.prefixes {
		if p == prefix {
			return l
		}
	}
	l.prefixes = append(l.prefixes, prefix)
	return l
}

func (c *consoleLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= c.logLevel
}

func (c *consoleLogger) suffix() string {
	if len(c.metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(c.metadata))
	for k := range c.metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, c.metadata[k]))
	}
	return color(gray) + sb.String() + color(reset)
}

func (c *consoleLogger) write(level LogLevel, msg string, args ...interface{}) {
	if !c.IsLevelEnabled(level) {
		return
	}
	var prefix string
	if len(c.prefixes) > 0 {
		prefix = strings.Join(c.prefixes, " ") + " "
	}
	line := fmt.Sprintf("%s %s[%-5s]%s %s%s%s%s\n",
		time.Now().Format("2006-01-02 15:04:05.000"),
		color(levelColor(level)), level, color(reset),
		color(messageColor(level)), prefix+fmt.Sprintf(msg, args...), color(reset),
		c.suffix(),
	)
	c.mu.Lock()
	defer c.mu.Unlock()
	os.Stderr.WriteString(line)
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
