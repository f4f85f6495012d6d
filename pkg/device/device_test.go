package device

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fortix-network/fortix/pkg/conftree"
	"github.com/fortix-network/fortix/pkg/util"
)

type fakeTransport struct {
	config  string
	readErr error
	sent    []string
	closed  bool
}

func (f *fakeTransport) ReadConfig(ctx context.Context, path []string) (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.config, nil
}

func (f *fakeTransport) Send(ctx context.Context, command string) (string, error) {
	f.sent = append(f.sent, command)
	return "", nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func TestFetch(t *testing.T) {
	ft := &fakeTransport{config: `config firewall policy
    edit 42
        set action accept
    next
end
`}
	dev := NewDeviceWithTransport("fw1", ft)

	tree, raw, err := dev.Fetch(context.Background(), []string{"firewall policy"})
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if raw != ft.config {
		t.Error("raw text not returned verbatim")
	}
	entry, ok := tree.Child("42")
	if !ok {
		t.Fatal("parsed tree missing entry 42")
	}
	if v, _ := entry.GetParam("action"); v != "accept" {
		t.Errorf("action = %q", v)
	}
}

func TestFetch_TransportError(t *testing.T) {
	cause := errors.New("connection reset by peer")
	dev := NewDeviceWithTransport("fw1", &fakeTransport{readErr: cause})

	_, _, err := dev.Fetch(context.Background(), []string{"firewall policy"})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error type = %T, want *FetchError", err)
	}
	if fe.Device != "fw1" {
		t.Errorf("Device = %q", fe.Device)
	}
	if !errors.Is(err, cause) {
		t.Error("transport cause not preserved")
	}
}

func TestFetch_MalformedOutput(t *testing.T) {
	dev := NewDeviceWithTransport("fw1", &fakeTransport{config: "config firewall policy\n    edit 42\nend\n"})

	_, _, err := dev.Fetch(context.Background(), []string{"firewall policy"})
	var pe *conftree.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error type = %T, want *conftree.ParseError", err)
	}
	if !strings.Contains(err.Error(), "fw1") {
		t.Errorf("device context lost: %v", err)
	}
}

func TestRequireConnected(t *testing.T) {
	dev := NewDevice("fw1", nil)
	if err := dev.RequireConnected(); !errors.Is(err, util.ErrNotConnected) {
		t.Errorf("RequireConnected() = %v, want not-connected", err)
	}
	if _, _, err := dev.Fetch(context.Background(), []string{"firewall policy"}); !errors.Is(err, util.ErrNotConnected) {
		t.Errorf("Fetch() on disconnected device = %v, want not-connected", err)
	}
	if _, err := dev.Send(context.Background(), "end"); !errors.Is(err, util.ErrNotConnected) {
		t.Errorf("Send() on disconnected device = %v, want not-connected", err)
	}
}

func TestDisconnect(t *testing.T) {
	ft := &fakeTransport{}
	dev := NewDeviceWithTransport("fw1", ft)

	if !dev.IsConnected() {
		t.Fatal("device with transport not connected")
	}
	if err := dev.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error: %v", err)
	}
	if !ft.closed {
		t.Error("transport not closed")
	}
	if dev.IsConnected() {
		t.Error("still connected after Disconnect")
	}
	// Second disconnect is a no-op.
	if err := dev.Disconnect(); err != nil {
		t.Errorf("second Disconnect() error: %v", err)
	}
}

func TestAtPrompt(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"FGT-01 # ", true},
		{"config output\nFGT-01 # ", true},
		{"FGT-01 (policy) # ", true},
		{"user$ ", true},
		{"config firewall policy\n", false},
		{"partial outp", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := atPrompt(tt.in); got != tt.want {
			t.Errorf("atPrompt(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTrimPrompt(t *testing.T) {
	if got := trimPrompt("line one\nline two\nFGT-01 # "); got != "line one\nline two\n" {
		t.Errorf("trimPrompt() = %q", got)
	}
	if got := trimPrompt("FGT-01 # "); got != "" {
		t.Errorf("trimPrompt() of bare prompt = %q", got)
	}
}

func TestStripEcho(t *testing.T) {
	if got := stripEcho("edit 42\r\nreal output\r\n", "edit 42"); got != "real output\r\n" {
		t.Errorf("stripEcho() = %q", got)
	}
	if got := stripEcho("real output\n", "edit 42"); got != "real output\n" {
		t.Errorf("stripEcho() without echo = %q", got)
	}
}
