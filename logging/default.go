package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// DefaultLogger writes through the standard log package.
// Debug/Info -> stdout, Warn/Error -> stderr (colored when attached to a terminal)
type DefaultLogger struct {
	stdoutLogger *log.Logger
	stderrLogger *log.Logger
	level        Level
	fields       Fields
	useColors    bool
}

// NewDefaultLogger creates a logger on os.Stdout/os.Stderr
func NewDefaultLogger() *DefaultLogger {
	l := NewDefaultLoggerTo(os.Stdout, os.Stderr)
	l.useColors = isTerminal()
	return l
}

// NewDefaultLoggerTo creates an uncolored logger on the given writers
func NewDefaultLoggerTo(stdout, stderr io.Writer) *DefaultLogger {
	return &DefaultLogger{
		stdoutLogger: log.New(stdout, "", log.LstdFlags),
		stderrLogger: log.New(stderr, "", log.LstdFlags),
		level:        InfoLevel,
		fields:       make(Fields),
	}
}

func isTerminal() bool {
	if fileInfo, _ := os.Stdout.Stat(); fileInfo != nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func (d *DefaultLogger) formatMessage(level Level, err error, msg string, fields ...Fields) string {
	allFields := mergeFields(d.fields, fields...)

	logMsg := fmt.Sprintf("[%s] %s", level.String(), msg)
	if err != nil {
		logMsg += fmt.Sprintf(": %v", err)
	}
	if len(allFields) > 0 {
		logMsg += fmt.Sprintf(" %+v", allFields)
	}

	if d.useColors {
		switch level {
		case WarnLevel:
			logMsg = ColorYellow + logMsg + ColorReset
		case ErrorLevel:
			logMsg = ColorRed + logMsg + ColorReset
		}
	}

	return logMsg
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields ...Fields) {
	if level < d.level {
		return
	}

	formatted := d.formatMessage(level, err, msg, fields...)
	switch level {
	case DebugLevel, InfoLevel:
		d.stdoutLogger.Println(formatted)
	default:
		d.stderrLogger.Println(formatted)
	}
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.log(DebugLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.log(InfoLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.log(WarnLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields...)
}

func (d *DefaultLogger) WithFields(fields Fields) Logger {
	return &DefaultLogger{
		stdoutLogger: d.stdoutLogger,
		stderrLogger: d.stderrLogger,
		level:        d.level,
		fields:       mergeFields(d.fields, fields),
		useColors:    d.useColors,
	}
}

func (d *DefaultLogger) SetLevel(level Level) {
	d.level = level
}

// NoOpLogger discards everything
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}

// Entry is one message kept by a CaptureLogger
type Entry struct {
	Level   Level
	Message string
	Err     error
	Fields  Fields
}

// CaptureLogger keeps entries in memory. Loggers derived with WithFields
// share the same entry list.
type CaptureLogger struct {
	mu      *sync.Mutex
	entries *[]Entry
	fields  Fields
	level   Level
}

// NewCaptureLogger creates an empty capture logger at DebugLevel
func NewCaptureLogger() *CaptureLogger {
	return &CaptureLogger{
		mu:      &sync.Mutex{},
		entries: &[]Entry{},
		fields:  make(Fields),
	}
}

func (c *CaptureLogger) add(level Level, err error, msg string, fields ...Fields) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if level < c.level {
		return
	}
	*c.entries = append(*c.entries, Entry{
		Level:   level,
		Message: msg,
		Err:     err,
		Fields:  mergeFields(c.fields, fields...),
	})
}

func (c *CaptureLogger) Debug(msg string, fields ...Fields) { c.add(DebugLevel, nil, msg, fields...) }
func (c *CaptureLogger) Info(msg string, fields ...Fields)  { c.add(InfoLevel, nil, msg, fields...) }
func (c *CaptureLogger) Warn(msg string, fields ...Fields)  { c.add(WarnLevel, nil, msg, fields...) }
func (c *CaptureLogger) Error(err error, msg string, fields ...Fields) {
	c.add(ErrorLevel, err, msg, fields...)
}

func (c *CaptureLogger) WithFields(fields Fields) Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &CaptureLogger{
		mu:      c.mu,
		entries: c.entries,
		fields:  mergeFields(c.fields, fields),
		level:   c.level,
	}
}

func (c *CaptureLogger) SetLevel(level Level) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = level
}

// Entries returns a copy of the captured entries
func (c *CaptureLogger) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(*c.entries))
	copy(out, *c.entries)
	return out
}

// Count returns the number of captured entries at the given level
func (c *CaptureLogger) Count(level Level) int {
	n := 0
	for _, e := range c.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}
