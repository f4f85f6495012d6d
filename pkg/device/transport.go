// Package device handles sessions to FortiOS devices over the CLI.
package device

import (
	"context"
	"fmt"
	"strings"
)

// Transport is an authenticated session to a device's command interpreter.
// Implementations own connection lifecycle, timeouts and retries; the
// reconciliation engine treats a transport failure as terminal for the call.
type Transport interface {
	// ReadConfig returns the raw text dump of one configuration section.
	ReadConfig(ctx context.Context, path []string) (string, error)
	// Send transmits one command line and returns the device's output.
	// A non-nil error means the device rejected the command; the output
	// carries the device's message.
	Send(ctx context.Context, command string) (string, error)
	Close() error
}

// FetchError reports a transport or read failure while loading running
// configuration. Nothing partial is cached when a fetch fails.
type FetchError struct {
	Device string
	Path   []string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %q from %s: %v", strings.Join(e.Path, " "), e.Device, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
