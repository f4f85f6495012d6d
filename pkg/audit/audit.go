// Package audit records reconciliation outcomes to a JSON-lines trail.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fortix-network/fortix/pkg/util"
)

// Event is one auditable reconciliation attempt.
type Event struct {
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Device    string        `json:"device"`
	Path      string        `json:"path"`
	Operation string        `json:"operation"`
	Commands  []string      `json:"commands,omitempty"` // literal text sent
	Changed   bool          `json:"changed"`
	DryRun    bool          `json:"dry_run"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Filter selects events when querying the trail.
type Filter struct {
	Device string
	Since  time.Time
}

// Logger appends events to a JSON-lines file.
type Logger struct {
	path    string
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewLogger opens (creating if needed) the audit trail at path.
func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}

	return &Logger{
		path:    path,
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

// Log appends one event.
func (l *Logger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.User == "" {
		event.User = currentUser()
	}
	return l.encoder.Encode(event)
}

// Query returns events matching the filter, oldest first. Malformed lines
// are skipped with a warning, never fatal.
func (l *Logger) Query(filter Filter) ([]*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Event{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var events []*Event
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			util.Warnf("audit: skipping malformed log entry at line %d: %v", lineNum, err)
			continue
		}
		if filter.Device != "" && event.Device != filter.Device {
			continue
		}
		if !filter.Since.IsZero() && event.Timestamp.Before(filter.Since) {
			continue
		}
		events = append(events, &event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	return events, nil
}

// Close flushes and closes the trail.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func currentUser() string {
	for _, env := range []string{"SUDO_USER", "USER", "LOGNAME"} {
		if u := strings.TrimSpace(os.Getenv(env)); u != "" {
			return u
		}
	}
	return "unknown"
}
