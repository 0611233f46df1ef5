package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want Level
	}{
		{"debug", DEBUG},
		{"WARN", WARN},
		{"warning", WARN},
		{"error", ERROR},
		{"", INFO},
		{"garbage", INFO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.name); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	origLevel := defaultLogger.level
	origOutput := defaultLogger.output
	defer func() {
		defaultLogger.level = origLevel
		defaultLogger.output = origOutput
	}()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(WARN)

	Info("should be filtered")
	Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Error("INFO message logged despite WARN level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("WARN message missing")
	}
}

func TestWithFieldOrdering(t *testing.T) {
	origLevel := defaultLogger.level
	origOutput := defaultLogger.output
	defer func() {
		defaultLogger.level = origLevel
		defaultLogger.output = origOutput
	}()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(INFO)

	Component("hub").WithField("agent", "grace").Info("ready")

	out := buf.String()
	// Fields print sorted by key, so agent precedes component.
	if !strings.Contains(out, "agent=grace component=hub") {
		t.Errorf("unexpected field formatting: %q", out)
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	parent := Component("router")
	_ = parent.WithField("user", 7)

	if _, ok := parent.fields["user"]; ok {
		t.Error("WithField mutated the parent logger")
	}
}
