package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInitialize(t *testing.T) {
	var buf bytes.Buffer
	Initialize(LevelInfo, &buf)

	if Verbosity() != LevelInfo {
		t.Errorf("expected verbosity %d, got %d", LevelInfo, Verbosity())
	}
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	Initialize(LevelTrace, &buf)

	Info("test info", "key", "value")
	Debug("test debug", "key", "value")
	Trace("test trace", "key", "value")
	Warn("test warn", "key", "value")
	Error("test error", "key", "value")

	out := buf.String()
	for _, msg := range []string{"test info", "test debug", "test trace", "test warn", "test error"} {
		if !strings.Contains(out, msg) {
			t.Errorf("expected %q in output, got:\n%s", msg, out)
		}
	}
}

func TestQuietSuppressesInfo(t *testing.T) {
	var buf bytes.Buffer
	Initialize(LevelQuiet, &buf)

	Info("hidden")
	Debug("hidden")
	Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("quiet level leaked info/debug output:\n%s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("expected warning in output, got:\n%s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitializeFormat(LevelInfo, &buf, FormatJSON)

	Info("refresh complete", "languages", 3)

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected a JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "refresh complete" {
		t.Errorf("msg = %v, want %q", rec["msg"], "refresh complete")
	}
	if rec["languages"] != float64(3) {
		t.Errorf("languages = %v, want 3", rec["languages"])
	}
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	Initialize(LevelInfo, &buf)

	Progress("Scanning %d/%d", 1, 4)
	ProgressDone()
	if !strings.HasSuffix(buf.String(), " done\n") {
		t.Errorf("expected progress line to end with done, got %q", buf.String())
	}

	buf.Reset()
	Progress("Another progress")
	Info("interrupt")
	if !strings.Contains(buf.String(), "Another progress\n") {
		t.Errorf("expected log line to break the progress line, got %q", buf.String())
	}
	ProgressClear()
}

func TestVerbosityLevels(t *testing.T) {
	tests := []struct {
		level   int
		isInfo  bool
		isDebug bool
		isTrace bool
	}{
		{LevelQuiet, false, false, false},
		{LevelInfo, true, false, false},
		{LevelDebug, true, true, false},
		{LevelTrace, true, true, true},
	}

	var buf bytes.Buffer
	for _, tt := range tests {
		Initialize(tt.level, &buf)

		if IsInfo() != tt.isInfo {
			t.Errorf("at level %d: expected IsInfo()=%v, got %v", tt.level, tt.isInfo, IsInfo())
		}
		if IsDebug() != tt.isDebug {
			t.Errorf("at level %d: expected IsDebug()=%v, got %v", tt.level, tt.isDebug, IsDebug())
		}
		if IsTrace() != tt.isTrace {
			t.Errorf("at level %d: expected IsTrace()=%v, got %v", tt.level, tt.isTrace, IsTrace())
		}
	}
}
