package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		logFunc   func(*Logger)
		wantEmpty bool
		contains  string
	}{
		{
			name:     "warn passes at info",
			level:    LevelInfo,
			logFunc:  func(l *Logger) { l.Warn("duplicate section %s", "sec:intro") },
			contains: "[WARN] duplicate section sec:intro",
		},
		{
			name:      "debug filtered at info",
			level:     LevelInfo,
			logFunc:   func(l *Logger) { l.Debug("skipped") },
			wantEmpty: true,
		},
		{
			name:      "off drops errors",
			level:     LevelOff,
			logFunc:   func(l *Logger) { l.Error("boom") },
			wantEmpty: true,
		},
		{
			name:     "debug passes at debug",
			level:    LevelDebug,
			logFunc:  func(l *Logger) { l.Debug("visiting %d nodes", 3) },
			contains: "[DEBUG] visiting 3 nodes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(&buf, tt.level)
			l.now = fixedClock
			tt.logFunc(l)

			out := buf.String()
			if tt.wantEmpty {
				if out != "" {
					t.Errorf("expected no output, got %q", out)
				}
				return
			}
			if !strings.Contains(out, tt.contains) {
				t.Errorf("output %q does not contain %q", out, tt.contains)
			}
			if !strings.HasPrefix(out, "2024-03-01 12:30:00") {
				t.Errorf("output %q lacks timestamp", out)
			}
		})
	}
}

func TestLoggerFieldsAreSortedAndInherited(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)
	l.now = fixedClock

	child := l.WithField("stage", "reconcile").WithFields(Fields{"part": "word/styles.xml"})
	child.Info("merged %d styles", 4)

	out := strings.TrimSpace(buf.String())
	if !strings.HasSuffix(out, "merged 4 styles part=word/styles.xml stage=reconcile") {
		t.Errorf("unexpected line %q", out)
	}

	buf.Reset()
	l.Info("parent")
	if strings.Contains(buf.String(), "stage=") {
		t.Error("parent logger must not inherit child fields")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"off":     LevelOff,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
