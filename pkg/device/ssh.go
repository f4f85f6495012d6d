package device

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/fortix-network/fortix/pkg/util"
)

// Device-side rejection markers. FortiOS reports command failures in the
// output text rather than an exit status.
var errorMarkers = []string{
	"Command fail",
	"command parse error",
	"Unknown action",
	"entry not found",
	"value parse error",
}

// SSHConfig describes how to reach a device's CLI over SSH.
type SSHConfig struct {
	Host     string
	Port     int // 0 means 22
	User     string
	Password string
	// CommandTimeout bounds each command's prompt wait when the caller's
	// context has no deadline. 0 means 30s.
	CommandTimeout time.Duration
}

// SSHTransport drives a FortiOS CLI through a single interactive shell
// session. The shell keeps block context between commands ("config ..."
// then "edit ..."), which per-exec sessions would lose.
type SSHTransport struct {
	cfg     SSHConfig
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	chunks  chan []byte

	mu     sync.Mutex
	closed bool
}

// DialSSH opens the SSH connection, starts a shell and waits for the first
// prompt (draining the login banner).
func DialSSH(cfg SSHConfig) (*SSHTransport, error) {
	port := cfg.Port
	if port == 0 {
		port = 22
	}

	config := &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(cfg.Password),
		},
		// Firewall management networks rarely distribute host keys;
		// production deployments should pin them.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         15 * time.Second,
	}

	client, err := ssh.Dial("tcp", fmt.Sprintf("%s:%d", cfg.Host, port), config)
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s: %w", cfg.Host, err)
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("SSH session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("vt100", 200, 80, modes); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	t := &SSHTransport{
		cfg:     cfg,
		client:  client,
		session: session,
		stdin:   stdin,
		chunks:  make(chan []byte, 16),
	}
	go t.readLoop(stdout)

	ctx, cancel := context.WithTimeout(context.Background(), t.commandTimeout())
	defer cancel()
	if _, err := t.collect(ctx); err != nil {
		t.Close()
		return nil, fmt.Errorf("waiting for prompt on %s: %w", cfg.Host, err)
	}

	util.WithDevice(cfg.Host).Debug("SSH shell ready")
	return t, nil
}

func (t *SSHTransport) commandTimeout() time.Duration {
	if t.cfg.CommandTimeout > 0 {
		return t.cfg.CommandTimeout
	}
	return 30 * time.Second
}

func (t *SSHTransport) readLoop(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			t.chunks <- chunk
		}
		if err != nil {
			close(t.chunks)
			return
		}
	}
}

// collect accumulates output until the shell prints a prompt, and returns
// everything before it.
func (t *SSHTransport) collect(ctx context.Context) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.commandTimeout())
		defer cancel()
	}

	var sb strings.Builder
	for {
		select {
		case chunk, ok := <-t.chunks:
			if !ok {
				return sb.String(), util.ErrSessionClosed
			}
			sb.Write(chunk)
			if atPrompt(sb.String()) {
				return trimPrompt(sb.String()), nil
			}
		case <-ctx.Done():
			return sb.String(), fmt.Errorf("waiting for device prompt: %w", ctx.Err())
		}
	}
}

// atPrompt reports whether the buffered output ends in a CLI prompt, i.e.
// an unterminated final line ending in "# " or "$ ".
func atPrompt(s string) bool {
	last := s
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		last = s[i+1:]
	}
	return strings.HasSuffix(last, "# ") || strings.HasSuffix(last, "$ ")
}

// trimPrompt drops the trailing prompt line.
func trimPrompt(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[:i+1]
	}
	return ""
}

// Send writes one command line and waits for the next prompt. A rejection
// marker in the output is returned as an error together with the output.
func (t *SSHTransport) Send(ctx context.Context, command string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return "", util.ErrSessionClosed
	}
	if _, err := io.WriteString(t.stdin, command+"\n"); err != nil {
		return "", fmt.Errorf("writing command: %w", err)
	}

	out, err := t.collect(ctx)
	out = stripEcho(out, command)
	if err != nil {
		return out, err
	}
	for _, marker := range errorMarkers {
		if strings.Contains(out, marker) {
			return out, fmt.Errorf("device rejected %q: %s", command, strings.TrimSpace(out))
		}
	}
	return out, nil
}

// stripEcho removes the echoed command from the head of the output, which
// PTYs produce even with ECHO off on some firmware.
func stripEcho(out, command string) string {
	trimmed := strings.TrimPrefix(out, command+"\r\n")
	return strings.TrimPrefix(trimmed, command+"\n")
}

// ReadConfig dumps one configuration section via "show <path>".
func (t *SSHTransport) ReadConfig(ctx context.Context, path []string) (string, error) {
	out, err := t.Send(ctx, "show "+strings.Join(path, " "))
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(out, "\r\n", "\n"), nil
}

// Close shuts the shell down. Safe to call more than once.
func (t *SSHTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.stdin.Close()
	t.session.Close()
	return t.client.Close()
}
