package logging

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigureWritesComponentField(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	logger := WithComponent("session")
	logger.Info().Str("wallet", "abc").Msg("session ready")

	out := buf.String()
	for _, want := range []string{`"component":"session"`, `"message":"session ready"`, `"level":"info"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %s", out, want)
		}
	}
}

func TestConfigureRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "warn", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	logger := Base()
	logger.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info entry written at warn level: %q", buf.String())
	}
}

func TestTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "btcpos.log")
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(f, `{"level":"info","component":"pager","time":"2026-01-02T03:04:05Z","message":"line %d"}`+"\n", i)
	}
	fmt.Fprintln(f, "plain text line")
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := Tail(path, 3)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].Message != "line 9" || entries[1].Message != "line 10" {
		t.Fatalf("entries = %+v, want line 9, line 10 first", entries)
	}
	if entries[1].Component != "pager" || entries[1].Level != "info" || entries[1].Time.IsZero() {
		t.Fatalf("entry not decoded: %+v", entries[1])
	}
	if entries[2].Message != "plain text line" || entries[2].Level != "" {
		t.Fatalf("plain entry = %+v", entries[2])
	}

	all, err := Tail(path, 50)
	if err != nil || len(all) != 11 {
		t.Fatalf("Tail(50) = %d entries, %v; want 11", len(all), err)
	}
}

func TestTailMissingFile(t *testing.T) {
	entries, err := Tail(filepath.Join(t.TempDir(), "missing.log"), 5)
	if err != nil || entries != nil {
		t.Fatalf("Tail(missing) = %v, %v; want nil, nil", entries, err)
	}
}

func TestEntryString(t *testing.T) {
	e := Entry{Level: "warn", Component: "prices", Message: "source failed", Error: "timeout"}
	if got := e.String(); got != "WARN  prices: source failed (timeout)" {
		t.Fatalf("String() = %q", got)
	}
}
