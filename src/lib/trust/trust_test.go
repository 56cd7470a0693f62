package trust

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	prev := SetLevel(ErrorMask | WarnMask | InfoMask | DebugMask | StatsMask)
	t.Cleanup(func() {
		SetLevel(prev)
		SetOutput(os.Stdout)
	})
	return &buf
}

func TestPrefixes(t *testing.T) {
	buf := capture(t)
	Errorf("e %d", 1)
	Warnf("w")
	Infof("i")
	Debugf("d")
	Statsf("sched", "switches=%d", 4)
	want := []string{"ERROR:e 1", " WARN:w", " INFO:i", "DEBUG:d", "STATS[sched]:switches=4"}
	got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines: %q", len(got), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMask(t *testing.T) {
	buf := capture(t)
	SetLevel(ErrorMask)
	Infof("hidden")
	Debugf("hidden")
	Errorf("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("mask not honored: %q", buf.String())
	}
	if LevelToString() != "error" {
		t.Errorf("LevelToString() = %q", LevelToString())
	}
}

func TestLoggerFields(t *testing.T) {
	buf := capture(t)
	For("vm").With("va", "0x1000").Warnf("fault")
	if got := buf.String(); got != " WARN:[vm] fault va=0x1000\n" {
		t.Errorf("got %q", got)
	}
}

func TestFatalf(t *testing.T) {
	buf := capture(t)
	code := -1
	SetExitFunc(func(c int) { code = c })
	defer SetExitFunc(nil)
	SetLevel(Nothing)
	Fatalf(3, "boom")
	if code != 3 {
		t.Errorf("exit code %d, want 3", code)
	}
	if !strings.Contains(buf.String(), "FATAL:boom") {
		t.Errorf("fatal message missing: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	m, err := ParseLevel("warn")
	if err != nil || m != ErrorMask|WarnMask {
		t.Errorf("ParseLevel(warn) = %v,%v", m, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Errorf("expected an error for an unknown level")
	}
}
