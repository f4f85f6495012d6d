// Package inventory loads the device inventory file listing managed
// firewalls and how to reach them.
package inventory

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/fortix-network/fortix/pkg/util"
)

// DefaultPath is where the inventory is looked up when no path is given.
var DefaultPath = "/etc/fortix/inventory.yaml"

// Profile describes one managed device.
type Profile struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port,omitempty"` // 0 means 22
	User     string `yaml:"user"`
	Password string `yaml:"password,omitempty"` // prompted for when empty
}

// BackupConfig selects where pre-change config snapshots go.
type BackupConfig struct {
	Type string `yaml:"type"`           // "file" or "redis"
	Dir  string `yaml:"dir,omitempty"`  // file store directory
	Addr string `yaml:"addr,omitempty"` // redis address host:port
}

// AuditConfig selects where the audit trail goes.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// File is the parsed inventory.
type File struct {
	Devices map[string]*Profile `yaml:"devices"`
	Backup  *BackupConfig       `yaml:"backup,omitempty"`
	Audit   *AuditConfig        `yaml:"audit,omitempty"`
}

// Load reads and validates an inventory file.
func Load(path string) (*File, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing inventory %s: %w", path, err)
	}

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("inventory %s: %w", path, err)
	}

	util.Debugf("loaded inventory with %d devices from %s", len(f.Devices), path)
	return &f, nil
}

func (f *File) validate() error {
	v := &util.ValidationBuilder{}
	v.Add(len(f.Devices) > 0, "no devices defined")
	for name, p := range f.Devices {
		if p == nil {
			v.AddErrorf("device %s: empty profile", name)
			continue
		}
		v.Add(p.Host != "", fmt.Sprintf("device %s: host is required", name))
		v.Add(p.User != "", fmt.Sprintf("device %s: user is required", name))
	}
	if f.Backup != nil {
		switch f.Backup.Type {
		case "file":
			v.Add(f.Backup.Dir != "", "backup: dir is required for type file")
		case "redis":
			v.Add(f.Backup.Addr != "", "backup: addr is required for type redis")
		default:
			v.AddErrorf("backup: unknown type %q", f.Backup.Type)
		}
	}
	return v.Build()
}

// Device returns the profile for a device name.
func (f *File) Device(name string) (*Profile, error) {
	p, ok := f.Devices[name]
	if !ok {
		return nil, fmt.Errorf("device %q not in inventory: %w", name, util.ErrNotFound)
	}
	return p, nil
}

// DeviceNames returns all device names sorted.
func (f *File) DeviceNames() []string {
	names := make([]string, 0, len(f.Devices))
	for name := range f.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
