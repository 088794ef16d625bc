package zerologsink

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/trickstertwo/plog"
)

func TestSink_JSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := New(zerolog.New(&buf))

	r := plog.MakeRecord(plog.LevelWarn, "disk low", []plog.Field{
		plog.Str("mount", "/data"),
		plog.Uint64("free", 42),
		plog.Err("cause", errors.New("quota")),
		plog.Err("error", nil),
	}, &plog.Location{File: "disk.go", Line: 7})
	if err := s.Write(r, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("json unmarshal: %v; line=%s", err, buf.String())
	}
	if m["level"] != "warn" || m["message"] != "disk low" {
		t.Fatalf("unexpected entry: %v", m)
	}
	if m["mount"] != "/data" || m["free"] != float64(42) || m["cause"] != "quota" {
		t.Fatalf("unexpected fields: %v", m)
	}
	if _, ok := m["error"]; ok {
		t.Fatalf("nil error should be skipped: %v", m)
	}
	if m["caller"] != "disk.go:7" {
		t.Fatalf("caller = %v", m["caller"])
	}
	ts, _ := m["time"].(string)
	if _, err := time.Parse(time.RFC3339Nano, ts); err != nil {
		t.Fatalf("time not RFC3339Nano: %q", ts)
	}
}

func TestSink_LevelGate(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := NewJSON(&buf, plog.LevelError)
	_ = s.Write(plog.MakeRecord(plog.LevelInfo, "skip", nil, nil), nil)
	_ = s.Write(plog.MakeRecord(plog.LevelFatal, "kept", nil, nil), nil)

	out := strings.TrimSpace(buf.String())
	if strings.Count(out, "\n") != 0 {
		t.Fatalf("expected one line, got %q", out)
	}
	if !strings.Contains(out, `"level":"error"`) || !strings.Contains(out, `"message":"kept"`) {
		t.Fatalf("unexpected line: %q", out)
	}
}

func TestNewConsole(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := NewConsole(&buf, plog.LevelDebug)
	_ = s.Write(plog.MakeRecord(plog.LevelDebug, "hello", []plog.Field{plog.Int("n", 1)}, nil), nil)
	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "n=1") {
		t.Fatalf("unexpected console output: %q", out)
	}
}

func TestLevel(t *testing.T) {
	t.Parallel()
	cases := map[plog.Level]zerolog.Level{
		plog.LevelTrace: zerolog.TraceLevel,
		plog.LevelDebug: zerolog.DebugLevel,
		plog.LevelInfo:  zerolog.InfoLevel,
		plog.LevelWarn:  zerolog.WarnLevel,
		plog.LevelError: zerolog.ErrorLevel,
		plog.LevelFatal: zerolog.ErrorLevel,
	}
	for in, want := range cases {
		if got := Level(in); got != want {
			t.Errorf("Level(%v) = %v, want %v", in, got, want)
		}
	}
}
