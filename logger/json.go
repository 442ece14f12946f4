package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

type jsonLogger struct {
	prefixes []string
	metadata map[string]interface{}
	logLevel LogLevel
	out      io.Writer

	mu *sync.Mutex
}

var _ Logger = (*jsonLogger)(nil)

// NewJSONLogger returns a Logger that writes one JSON object per line to out.
// Loggers derived via With or WithPrefix share the writer and its lock.
func NewJSONLogger(out io.Writer, level LogLevel) Logger {
	return &jsonLogger{logLevel: level, out: out, mu: &sync.Mutex{}}
}

func (j *jsonLogger) clone() *jsonLogger {
	prefixes := make([]string, len(j.prefixes))
	copy(prefixes, j.prefixes)
	metadata := make(map[string]interface{}, len(j.metadata))
	for k, v := range j.metadata {
		metadata[k] = v
	}
	return &jsonLogger{
		prefixes: prefixes,
		metadata: metadata,
		logLevel: j.logLevel,
		out:      j.out,
		mu:       j.mu,
	}
}

func (j *jsonLogger) With(metadata map[string]interface{}) Logger {
	l := j.clone()
	for k, v := range metadata {
		l.metadata[k] = v
	}
	return l
}

func (j *jsonLogger) WithPrefix(prefix string) Logger {
	l := j.clone()
	l.prefixes = append(l.prefixes, prefix)
	return l
}

func (j *jsonLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= j.logLevel
}

func (j *jsonLogger) write(level LogLevel, msg string, args ...interface{}) {
	if !j.IsLevelEnabled(level) {
		return
	}
	entry := make(map[string]interface{}, len(j.metadata)+3)
	for k, v := range j.metadata {
		entry[k] = v
	}
	text := fmt.Sprintf(msg, args...)
	if len(j.prefixes) > 0 {
		text = fmt.Sprintf("%s %s", join(j.prefixes), text)
	}
	entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["severity"] = level.String()
	entry["message"] = text
	buf, err := json.Marshal(entry)
	if err != nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.out.Write(append(buf, '\n'))
}

func join(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return out
}

func (j *jsonLogger) Trace(msg string, args ...interface{}) {
	j.write(LevelTrace, msg, args...)
}

func (j *jsonLogger) Debug(msg string, args ...interface{}) {
	j.write(LevelDebug, msg, args...)
}

func (j *jsonLogger) Info(msg string, args ...interface{}) {
	j.write(LevelInfo, msg, args...)
}

func (j *jsonLogger) Warn(msg string, args ...interface{}) {
	j.write(LevelWarn, msg, args...)
}

func (j *jsonLogger) Error(msg string, args ...interface{}) {
	j.write(LevelError, msg, args...)
}
