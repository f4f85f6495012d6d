package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStoreSave(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	config := "config firewall policy\n    edit 42\n        set action accept\n    next\nend\n"
	label, err := store.Save(context.Background(), "fw1", []string{"firewall policy"}, config)
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	data, err := os.ReadFile(label)
	if err != nil {
		t.Fatalf("reading snapshot %s: %v", label, err)
	}
	if string(data) != config {
		t.Error("snapshot content differs from saved config")
	}

	name := filepath.Base(label)
	if !strings.HasPrefix(name, "fw1_firewall-policy_") || !strings.HasSuffix(name, ".conf") {
		t.Errorf("snapshot name = %q", name)
	}
}

func TestFileStoreCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "backups")
	store := NewFileStore(dir)

	if _, err := store.Save(context.Background(), "fw1", []string{"firewall policy"}, "end\n"); err != nil {
		t.Fatalf("Save() into missing directory: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("snapshot count = %d, want 1", len(entries))
	}
}
