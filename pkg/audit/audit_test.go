package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, path
}

func TestLogAndQuery(t *testing.T) {
	logger, _ := newTestLogger(t)

	events := []*Event{
		{Device: "fw1", Path: "firewall policy", Operation: "policy-set 42", Changed: true, Success: true,
			Commands: []string{"config firewall policy", "edit 42", "set action accept", "next", "end"}},
		{Device: "fw2", Path: "firewall policy", Operation: "policy-delete 7", Changed: true, Success: false,
			Error: "command rejected"},
		{Device: "fw1", Path: "firewall policy", Operation: "policy-set 42", DryRun: true, Changed: false, Success: true},
	}
	for _, e := range events {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log() error: %v", err)
		}
	}

	all, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Query() returned %d events, want 3", len(all))
	}
	if all[0].Operation != "policy-set 42" || all[1].Error != "command rejected" {
		t.Error("events out of order or lossy")
	}
	if all[0].Timestamp.IsZero() {
		t.Error("timestamp not defaulted on Log")
	}
	if all[0].User == "" {
		t.Error("user not defaulted on Log")
	}
	if len(all[0].Commands) != 5 {
		t.Errorf("commands = %v", all[0].Commands)
	}

	fw1, err := logger.Query(Filter{Device: "fw1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(fw1) != 2 {
		t.Errorf("device filter returned %d events, want 2", len(fw1))
	}
	for _, e := range fw1 {
		if e.Device != "fw1" {
			t.Errorf("device filter leaked %s", e.Device)
		}
	}
}

func TestQuerySince(t *testing.T) {
	logger, _ := newTestLogger(t)

	old := &Event{Device: "fw1", Operation: "old", Timestamp: time.Now().Add(-48 * time.Hour)}
	recent := &Event{Device: "fw1", Operation: "recent"}
	if err := logger.Log(old); err != nil {
		t.Fatal(err)
	}
	if err := logger.Log(recent); err != nil {
		t.Fatal(err)
	}

	got, err := logger.Query(Filter{Since: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Operation != "recent" {
		t.Errorf("since filter returned %v", got)
	}
}

func TestQuerySkipsMalformedLines(t *testing.T) {
	logger, path := newTestLogger(t)

	if err := logger.Log(&Event{Device: "fw1", Operation: "good"}); err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("not json at all\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()
	if err := logger.Log(&Event{Device: "fw1", Operation: "after"}); err != nil {
		t.Fatal(err)
	}

	got, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(got) != 2 || got[0].Operation != "good" || got[1].Operation != "after" {
		t.Errorf("Query() = %v, want the two valid events", got)
	}
}

func TestQueryMissingFile(t *testing.T) {
	logger := &Logger{path: filepath.Join(t.TempDir(), "never-written.jsonl")}
	got, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Query() = %v, want empty", got)
	}
}
