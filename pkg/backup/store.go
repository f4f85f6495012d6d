// Package backup persists pre-change configuration snapshots so a failed
// apply can be remediated by restoring from the last known-good config.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fortix-network/fortix/pkg/util"
)

// Store persists one raw configuration snapshot per call and returns a
// label identifying where it went.
type Store interface {
	Save(ctx context.Context, device string, path []string, config string) (string, error)
}

// FileStore writes snapshots under a directory, one file per save.
type FileStore struct {
	Dir string
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Save writes the snapshot to <dir>/<device>_<path>_<timestamp>.conf and
// returns the file path.
func (s *FileStore) Save(ctx context.Context, device string, path []string, config string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s.conf", device, pathSlug(path), time.Now().Format("20060102-150405"))
	file := filepath.Join(s.Dir, name)
	if err := os.WriteFile(file, []byte(config), 0644); err != nil {
		return "", fmt.Errorf("writing backup %s: %w", file, err)
	}

	util.WithDevice(device).Debugf("backup written to %s", file)
	return file, nil
}

func pathSlug(path []string) string {
	slug := strings.Join(path, "-")
	return strings.ReplaceAll(slug, " ", "-")
}
