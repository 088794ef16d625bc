package diag

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestReportWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	defer Restore(prev)

	Report(errors.New("disk full"))
	Report(nil)

	out := buf.String()
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected exactly one line, got %q", out)
	}
	for _, want := range []string{`"level":"error"`, `"component":"plog"`, `"error":"disk full"`, `"message":"logging pipeline fault"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %q", want, out)
		}
	}
}

func TestWarnPairsKeyValues(t *testing.T) {
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	defer Restore(prev)

	Warn("forced stop", "pending", "3", "dangling")

	out := buf.String()
	if !strings.Contains(out, `"pending":"3"`) {
		t.Fatalf("missing pending field in %q", out)
	}
	if strings.Contains(out, "dangling") {
		t.Fatalf("unpaired key should be ignored: %q", out)
	}
}
