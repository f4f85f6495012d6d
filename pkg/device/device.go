package device

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fortix-network/fortix/pkg/conftree"
	"github.com/fortix-network/fortix/pkg/inventory"
	"github.com/fortix-network/fortix/pkg/util"
)

// Device represents one managed firewall and owns its CLI session.
// A session is scoped: connected at the start of a reconciliation call and
// released on every exit path.
type Device struct {
	Name    string
	Profile *inventory.Profile

	mu        sync.RWMutex
	transport Transport
	connected bool
}

// NewDevice creates a device instance. No connection is made until Connect.
func NewDevice(name string, profile *inventory.Profile) *Device {
	return &Device{
		Name:    name,
		Profile: profile,
	}
}

// NewDeviceWithTransport creates a connected device on an existing
// transport. Used by tests and by callers bringing their own session.
func NewDeviceWithTransport(name string, t Transport) *Device {
	return &Device{
		Name:      name,
		transport: t,
		connected: true,
	}
}

// Connect dials the device CLI over SSH.
func (d *Device) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return nil
	}
	if d.Profile == nil {
		return fmt.Errorf("device %s has no profile", d.Name)
	}

	t, err := DialSSH(SSHConfig{
		Host:     d.Profile.Host,
		Port:     d.Profile.Port,
		User:     d.Profile.User,
		Password: d.Profile.Password,
	})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", d.Name, err)
	}

	d.transport = t
	d.connected = true
	util.WithDevice(d.Name).Info("Connected")
	return nil
}

// Disconnect closes the session. Safe to call when not connected.
func (d *Device) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}
	err := d.transport.Close()
	d.transport = nil
	d.connected = false
	util.WithDevice(d.Name).Info("Disconnected")
	return err
}

// IsConnected returns true if a session is open.
func (d *Device) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// RequireConnected returns an error if no session is open.
func (d *Device) RequireConnected() error {
	if !d.IsConnected() {
		return util.ErrNotConnected
	}
	return nil
}

// Fetch loads the running configuration at path and parses it. It returns
// the tree and the raw text (kept for backups). Transport failures surface
// as *FetchError; malformed output as *conftree.ParseError wrapped with
// device context. No partial state is cached on failure.
func (d *Device) Fetch(ctx context.Context, path []string) (*conftree.Node, string, error) {
	if err := d.RequireConnected(); err != nil {
		return nil, "", err
	}

	d.mu.RLock()
	t := d.transport
	d.mu.RUnlock()

	raw, err := t.ReadConfig(ctx, path)
	if err != nil {
		return nil, "", &FetchError{Device: d.Name, Path: path, Err: err}
	}

	tree, err := conftree.Parse(raw, path...)
	if err != nil {
		return nil, "", fmt.Errorf("parsing %q config from %s: %w", strings.Join(path, " "), d.Name, err)
	}

	util.WithDevice(d.Name).Debugf("fetched %q (%d bytes)", strings.Join(path, " "), len(raw))
	return tree, raw, nil
}

// Send transmits one command line on the open session.
func (d *Device) Send(ctx context.Context, command string) (string, error) {
	if err := d.RequireConnected(); err != nil {
		return "", err
	}

	d.mu.RLock()
	t := d.transport
	d.mu.RUnlock()

	return t.Send(ctx, command)
}
