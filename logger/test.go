package logger

import "sync"

type TestLogEntry struct {
	Severity  string
	Message   string
	Arguments []interface{}
	Metadata  map[string]interface{}
}

// TestLogger captures log entries in memory for assertions in tests.
// Loggers derived via With or WithPrefix append to the same entry slice.
type TestLogger struct {
	metadata map[string]interface{}
	prefixes []string

	mu      *sync.Mutex
	entries *[]TestLogEntry
}

var _ Logger = (*TestLogger)(nil)

func NewTestLogger() *TestLogger {
	return &TestLogger{mu: &sync.Mutex{}, entries: &[]TestLogEntry{}}
}

// Logs returns a snapshot of everything logged so far.
func (t *TestLogger) Logs() []TestLogEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TestLogEntry, len(*t.entries))
	copy(out, *t.entries)
	return out
}

func (t *TestLogger) With(metadata map[string]interface{}) Logger {
	kv := make(map[string]interface{}, len(t.metadata)+len(metadata))
	for k, v := range t.metadata {
		kv[k] = v
	}
	for k, v := range metadata {
		kv[k] = v
	}
	return &TestLogger{metadata: kv, prefixes: t.prefixes, mu: t.mu, entries: t.entries}
}

func (t *TestLogger) WithPrefix(prefix string) Logger {
	prefixes := make([]string, len(t.prefixes), len(t.prefixes)+1)
	copy(prefixes, t.prefixes)
	prefixes = append(prefixes, prefix)
	return &TestLogger{metadata: t.metadata, prefixes: prefixes, mu: t.mu, entries: t.entries}
}

func (t *TestLogger) IsLevelEnabled(LogLevel) bool {
	return true
}

func (t *TestLogger) log(severity string, msg string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	*t.entries = append(*t.entries, TestLogEntry{
		Severity:  severity,
		Message:   msg,
		Arguments: args,
		Metadata:  t.metadata,
	})
}

func (t *TestLogger) Trace(msg string, args ...interface{}) {
	t.log("TRACE", msg, args...)
}

func (t *TestLogger) Debug(msg string, args ...interface{}) {
	t.log("DEBUG", msg, args...)
}

func (t *TestLogger) Info(msg string, args ...interface{}) {
	t.log("INFO", msg, args...)
}

func (t *TestLogger) Warn(msg string, args ...interface{}) {
	t.log("WARN", msg, args...)
}

func (t *TestLogger) Error(msg string, args ...interface{}) {
	t.log("ERROR", msg, args...)
}
