// Package reconcile drives one configuration block of a device to a
// declared desired state: fetch running config, diff against the candidate,
// render the operations to device commands and transmit them.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/fortix-network/fortix/pkg/backup"
	"github.com/fortix-network/fortix/pkg/conftree"
	"github.com/fortix-network/fortix/pkg/util"
)

// State tracks a runner through one reconciliation call.
type State int

const (
	StateIdle State = iota
	StateFetched
	StateDiffed
	StateApplying
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetched:
		return "fetched"
	case StateDiffed:
		return "diffed"
	case StateApplying:
		return "applying"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Session is the open device session the runner drives. The caller owns the
// session's lifecycle; the runner never dials or closes it.
type Session interface {
	Fetch(ctx context.Context, path []string) (*conftree.Node, string, error)
	Send(ctx context.Context, command string) (string, error)
}

// Options controls one Apply call.
type Options struct {
	// DryRun computes and renders the diff without transmitting anything
	// (check mode).
	DryRun bool
	// Replace requests desired-state-replace semantics for child blocks;
	// see conftree.DiffOptions.
	Replace bool
	// ManagedParams is the explicit set of parameter names subject to
	// unset; see conftree.DiffOptions.
	ManagedParams map[string]bool
	// Backup, when set, persists the pre-change running config before
	// any mutating command is sent.
	Backup backup.Store
}

// CommandError reports a command the device rejected during apply. It
// carries the failing command and the device's message; commands already
// applied in the batch are not rolled back.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Output)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("command rejected by device: %q: %s", e.Command, msg)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Result is the structured outcome of one Apply call. On failure it still
// reports exactly which commands succeeded, so the caller can decide on
// manual remediation or restore-from-backup.
type Result struct {
	State   State
	Changed bool
	// Commands is the full rendered command sequence for the diff.
	Commands []string
	// Applied is the literal command text successfully sent, in order.
	Applied []string
	// Preview is a unified diff of running vs candidate rendered text.
	Preview string
	// BackupLabel identifies the pre-change snapshot, when one was taken.
	BackupLabel string
	Err         error
}

// Runner reconciles config blocks on one device session. Fetch, diff and
// apply are strictly sequential within one call; a runner is not safe for
// concurrent use.
type Runner struct {
	device  string
	session Session
	state   State
}

// NewRunner creates a runner for a connected device session.
func NewRunner(device string, sess Session) *Runner {
	return &Runner{device: device, session: sess}
}

// State returns the state reached by the most recent call.
func (r *Runner) State() State {
	return r.state
}

// CandidateFunc derives the desired tree from the freshly fetched running
// tree, letting partial declarations (one policy out of many) keep
// undeclared siblings intact.
type CandidateFunc func(running *conftree.Node) (*conftree.Node, error)

// Apply converges the block at path onto candidate. An empty diff
// short-circuits to Committed with Changed=false and sends nothing. With
// opts.DryRun the call stops after rendering (nothing transmitted) and
// Changed reflects whether the diff was non-empty.
func (r *Runner) Apply(ctx context.Context, path []string, candidate *conftree.Node, opts Options) (*Result, error) {
	return r.Reconcile(ctx, path, func(*conftree.Node) (*conftree.Node, error) {
		return candidate, nil
	}, opts)
}

// Reconcile is Apply with the candidate derived from the fetched running
// tree by build.
func (r *Runner) Reconcile(ctx context.Context, path []string, build CandidateFunc, opts Options) (*Result, error) {
	r.state = StateIdle
	res := &Result{}
	log := util.WithDevice(r.device).WithField("path", strings.Join(path, " "))

	running, raw, err := r.session.Fetch(ctx, path)
	if err != nil {
		return r.fail(res, err)
	}
	r.state = StateFetched

	candidate, err := build(running)
	if err != nil {
		return r.fail(res, err)
	}

	ops := conftree.Diff(running, candidate, conftree.DiffOptions{
		Replace:       opts.Replace,
		ManagedParams: opts.ManagedParams,
	})
	r.state = StateDiffed

	if len(ops) == 0 {
		log.Debug("already converged, nothing to send")
		r.state = StateCommitted
		res.State = StateCommitted
		return res, nil
	}

	res.Commands = conftree.Render(path, ops)
	res.Preview = Preview(running, ops)

	if opts.DryRun {
		log.Infof("check mode: %d commands would be sent", len(res.Commands))
		res.State = StateDiffed
		res.Changed = true
		return res, nil
	}

	if opts.Backup != nil {
		label, err := opts.Backup.Save(ctx, r.device, path, raw)
		if err != nil {
			return r.fail(res, fmt.Errorf("pre-change backup: %w", err))
		}
		res.BackupLabel = label
	}

	r.state = StateApplying
	for _, cmd := range res.Commands {
		out, err := r.session.Send(ctx, cmd)
		if err != nil {
			cmdErr := &CommandError{Command: cmd, Output: out, Err: err}
			log.Errorf("apply failed after %d commands: %v", len(res.Applied), cmdErr)
			// Partial mutation may have occurred; report it.
			res.Changed = len(res.Applied) > 0
			return r.fail(res, cmdErr)
		}
		res.Applied = append(res.Applied, cmd)
	}

	log.Infof("applied %d commands", len(res.Applied))
	r.state = StateCommitted
	res.State = StateCommitted
	res.Changed = true
	return res, nil
}

func (r *Runner) fail(res *Result, err error) (*Result, error) {
	r.state = StateFailed
	res.State = StateFailed
	res.Err = err
	return res, err
}
