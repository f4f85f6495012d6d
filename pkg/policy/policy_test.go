package policy

import (
	"errors"
	"strings"
	"testing"

	"github.com/fortix-network/fortix/pkg/conftree"
	"github.com/fortix-network/fortix/pkg/util"
)

func validPolicy() *Policy {
	return &Policy{
		ID:      42,
		SrcAddr: []string{"internal"},
		DstAddr: []string{"all"},
		Service: []string{"HTTP"},
		Action:  ActionAccept,
	}
}

func TestValidate(t *testing.T) {
	if err := validPolicy().Validate(); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Policy)
		want   string
	}{
		{"zero id", func(p *Policy) { p.ID = 0 }, "id must be a positive integer"},
		{"missing srcaddr", func(p *Policy) { p.SrcAddr = nil }, "src-addr is required"},
		{"missing dstaddr", func(p *Policy) { p.DstAddr = nil }, "dst-addr is required"},
		{"missing service", func(p *Policy) { p.Service = nil }, "service is required"},
		{"bad action", func(p *Policy) { p.Action = "drop" }, "action must be accept or deny"},
		{"empty action", func(p *Policy) { p.Action = "" }, "action must be accept or deny"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPolicy()
			tt.mutate(p)
			err := p.Validate()
			if err == nil {
				t.Fatal("Validate() passed")
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

// Several missing fields are reported together, not one at a time.
func TestValidate_CollectsAllFailures(t *testing.T) {
	p := &Policy{ID: 1}
	err := p.Validate()
	if err == nil {
		t.Fatal("Validate() passed")
	}
	for _, want := range []string{"src-addr", "dst-addr", "service", "action"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestValidate_NATPreconditions(t *testing.T) {
	p := validPolicy()
	p.PoolName = "wan-pool"
	err := p.Validate()
	if !errors.Is(err, util.ErrPreconditionFailed) {
		t.Errorf("poolname without nat: error = %v, want precondition failure", err)
	}

	p = validPolicy()
	p.FixedPort = true
	err = p.Validate()
	if !errors.Is(err, util.ErrPreconditionFailed) {
		t.Errorf("fixedport without nat: error = %v, want precondition failure", err)
	}

	p = validPolicy()
	p.NAT = true
	p.PoolName = "wan-pool"
	p.FixedPort = true
	if err := p.Validate(); err != nil {
		t.Errorf("nat with pool and fixedport rejected: %v", err)
	}
}

func mustParam(t *testing.T, n *conftree.Node, name string) string {
	t.Helper()
	v, ok := n.GetParam(name)
	if !ok {
		t.Fatalf("param %q not set", name)
	}
	return v
}

func TestCandidate_QuotingAndDefaults(t *testing.T) {
	p := validPolicy()
	p.SrcAddr = []string{"internal", "dmz hosts"}

	c := p.Candidate(nil)
	entry, ok := c.Child("42")
	if !ok {
		t.Fatal("candidate missing entry 42")
	}

	if got := mustParam(t, entry, "srcaddr"); got != `"internal" "dmz hosts"` {
		t.Errorf("srcaddr = %s", got)
	}
	if got := mustParam(t, entry, "srcintf"); got != `"any"` {
		t.Errorf("srcintf default = %s", got)
	}
	if got := mustParam(t, entry, "dstintf"); got != `"any"` {
		t.Errorf("dstintf default = %s", got)
	}
	if got := mustParam(t, entry, "schedule"); got != "always" {
		t.Errorf("schedule default = %s, want bare always", got)
	}
	if got := mustParam(t, entry, "action"); got != "accept" {
		t.Errorf("action = %s, want bare accept", got)
	}
	if _, ok := entry.GetParam("nat"); ok {
		t.Error("nat set without --nat")
	}
	if _, ok := entry.GetParam("srcaddr-negate"); ok {
		t.Error("srcaddr-negate set without negation")
	}
}

func TestCandidate_NATGroup(t *testing.T) {
	p := validPolicy()
	p.NAT = true
	p.PoolName = "wan-pool"

	entry, _ := p.Candidate(nil).Child("42")
	if got := mustParam(t, entry, "nat"); got != "enable" {
		t.Errorf("nat = %s", got)
	}
	if got := mustParam(t, entry, "ippool"); got != "enable" {
		t.Errorf("ippool = %s, want enable implied by poolname", got)
	}
	if got := mustParam(t, entry, "poolname"); got != `"wan-pool"` {
		t.Errorf("poolname = %s", got)
	}
}

func TestCandidate_PreservesSiblingsAndDropsDeviceParams(t *testing.T) {
	dump := `config firewall policy
    edit 7
        set action deny
        set uuid 2204c03a
    next
    edit 42
        set action deny
        set uuid 8f2a1c90
    next
end
`
	running, err := conftree.Parse(dump, BlockPath()...)
	if err != nil {
		t.Fatal(err)
	}

	c := validPolicy().Candidate(running)

	sibling, ok := c.Child("7")
	if !ok {
		t.Fatal("sibling policy 7 dropped")
	}
	want, _ := running.Child("7")
	if !sibling.Equal(want) {
		t.Error("sibling policy 7 modified")
	}

	entry, _ := c.Child("42")
	if _, ok := entry.GetParam("uuid"); ok {
		t.Error("device-managed uuid carried into the declared entry")
	}
	if got := mustParam(t, entry, "action"); got != "accept" {
		t.Errorf("action = %s", got)
	}

	if running.Equal(c) {
		t.Error("candidate built in place, running tree mutated")
	}
}

func TestAbsent(t *testing.T) {
	dump := `config firewall policy
    edit 7
        set action deny
    next
    edit 42
        set action accept
    next
end
`
	running, err := conftree.Parse(dump, BlockPath()...)
	if err != nil {
		t.Fatal(err)
	}

	c := Absent(running, 42)
	if _, ok := c.Child("42"); ok {
		t.Error("entry 42 still present")
	}
	if _, ok := c.Child("7"); !ok {
		t.Error("sibling 7 removed")
	}

	ops := conftree.Diff(running, c, conftree.DiffOptions{Replace: true, ManagedParams: ManagedParams()})
	if len(ops) != 1 || ops[0].Kind != conftree.OpDeleteBlock || ops[0].Name != "42" {
		t.Errorf("diff = %v, want a single delete of 42", ops)
	}

	// Deleting a policy that does not exist is a no-op.
	missing := Absent(running, 999)
	if ops := conftree.Diff(running, missing, conftree.DiffOptions{Replace: true, ManagedParams: ManagedParams()}); len(ops) != 0 {
		t.Errorf("diff for absent missing id = %v, want empty", ops)
	}
}

// Apply-then-reconcile with the same declaration must produce an empty diff.
func TestCandidate_Convergence(t *testing.T) {
	p := validPolicy()
	p.NAT = true
	p.Comment = "allow web out"

	candidate := p.Candidate(nil)
	ops := conftree.Diff(conftree.NewTable(BlockPath()...), candidate, conftree.DiffOptions{
		Replace:       true,
		ManagedParams: ManagedParams(),
	})
	converged := conftree.Replay(conftree.NewTable(BlockPath()...), ops)

	again := conftree.Diff(converged, p.Candidate(converged), conftree.DiffOptions{
		Replace:       true,
		ManagedParams: ManagedParams(),
	})
	if len(again) != 0 {
		t.Errorf("second reconcile not empty: %v", again)
	}
}
