package inventory

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fortix-network/fortix/pkg/util"
)

func writeInventory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeInventory(t, `
devices:
  fw1:
    host: 10.0.0.1
    user: admin
    password: secret
  fw2:
    host: fw2.example.net
    port: 2222
    user: netops
backup:
  type: redis
  addr: localhost:6379
audit:
  path: /var/log/fortix/audit.jsonl
`)

	inv, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	p, err := inv.Device("fw1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Host != "10.0.0.1" || p.User != "admin" || p.Password != "secret" || p.Port != 0 {
		t.Errorf("fw1 profile = %+v", p)
	}

	p, err = inv.Device("fw2")
	if err != nil {
		t.Fatal(err)
	}
	if p.Port != 2222 || p.Password != "" {
		t.Errorf("fw2 profile = %+v", p)
	}

	if inv.Backup == nil || inv.Backup.Type != "redis" || inv.Backup.Addr != "localhost:6379" {
		t.Errorf("backup = %+v", inv.Backup)
	}
	if inv.Audit == nil || inv.Audit.Path != "/var/log/fortix/audit.jsonl" {
		t.Errorf("audit = %+v", inv.Audit)
	}

	names := inv.DeviceNames()
	if len(names) != 2 || names[0] != "fw1" || names[1] != "fw2" {
		t.Errorf("DeviceNames() = %v", names)
	}
}

func TestLoad_UnknownDevice(t *testing.T) {
	path := writeInventory(t, `
devices:
  fw1:
    host: 10.0.0.1
    user: admin
`)
	inv, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := inv.Device("fw9"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Device(fw9) = %v, want not-found", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() of missing file succeeded")
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no devices", "devices: {}\n", "no devices defined"},
		{"missing host", "devices:\n  fw1:\n    user: admin\n", "host is required"},
		{"missing user", "devices:\n  fw1:\n    host: 10.0.0.1\n", "user is required"},
		{"bad backup type", "devices:\n  fw1:\n    host: h\n    user: u\nbackup:\n  type: s3\n", "unknown type"},
		{"file backup without dir", "devices:\n  fw1:\n    host: h\n    user: u\nbackup:\n  type: file\n", "dir is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeInventory(t, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() passed")
			}
			if !errors.Is(err, util.ErrValidationFailed) {
				t.Errorf("error = %v, want validation error", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q missing %q", err, tt.want)
			}
		})
	}
}
