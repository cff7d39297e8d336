package logging

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggerRoutesByLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := NewDefaultLoggerTo(&stdout, &stderr)

	l.Debug("hidden")
	l.Info("processing file", Fields{"file": "a.csv"})
	l.Warn("detection insufficient")
	l.Error(errors.New("boom"), "file skipped")

	assert.NotContains(t, stdout.String(), "hidden")
	assert.Contains(t, stdout.String(), "[INFO] processing file map[file:a.csv]")
	assert.Contains(t, stderr.String(), "[WARN] detection insufficient")
	assert.Contains(t, stderr.String(), "[ERROR] file skipped: boom")
}

func TestDefaultLoggerWithFieldsDoesNotLeak(t *testing.T) {
	var stdout bytes.Buffer
	base := NewDefaultLoggerTo(&stdout, &stdout)
	child := base.WithFields(Fields{"component": "pipeline"})

	child.Info("child")
	base.Info("base")

	out := stdout.String()
	assert.Contains(t, out, "[INFO] child map[component:pipeline]")
	assert.NotContains(t, out, "[INFO] base map[")
}

func TestCaptureLoggerSharesEntries(t *testing.T) {
	c := NewCaptureLogger()
	c.WithFields(Fields{"trace": 3}).Warn("no peaks")
	c.Info("done")

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, WarnLevel, entries[0].Level)
	assert.Equal(t, 3, entries[0].Fields["trace"])
	assert.Equal(t, 1, c.Count(InfoLevel))
}

func TestCaptureLoggerSetLevelWhileLogging(t *testing.T) {
	c := NewCaptureLogger()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.Warn("tick")
			}
		}()
	}
	c.SetLevel(ErrorLevel)
	wg.Wait()

	c.Warn("dropped")
	c.Error(errors.New("kept"), "kept")
	assert.Equal(t, 1, c.Count(ErrorLevel))
	assert.LessOrEqual(t, c.Count(WarnLevel), 400)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
}

func TestOrGlobal(t *testing.T) {
	c := NewCaptureLogger()
	assert.Same(t, Logger(c), OrGlobal(c))
	assert.NotNil(t, OrGlobal(nil))
}
