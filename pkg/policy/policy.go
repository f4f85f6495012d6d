// Package policy is the declared-state schema for FortiOS IPv4 firewall
// policies. It validates typed input and translates it into a candidate
// configuration tree for the reconciliation engine; the engine itself never
// special-cases parameter names.
package policy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fortix-network/fortix/pkg/conftree"
	"github.com/fortix-network/fortix/pkg/util"
)

// BlockPath is the configuration section IPv4 policies live in.
func BlockPath() []string {
	return []string{"firewall policy"}
}

// Action is the policy verdict.
type Action string

const (
	ActionAccept Action = "accept"
	ActionDeny   Action = "deny"
)

// Policy is one declared IPv4 firewall policy.
type Policy struct {
	ID int

	SrcIntf string // source interface, defaults to "any"
	DstIntf string // destination interface, defaults to "any"

	SrcAddr       []string // address/group object names, required
	DstAddr       []string // address/group object names, required
	SrcAddrNegate bool
	DstAddrNegate bool

	Action Action

	Service       []string // service object names, required
	ServiceNegate bool

	Schedule string // defaults to "always"

	NAT       bool
	FixedPort bool   // requires NAT
	PoolName  string // requires NAT; implies ippool enable

	AVProfile        string
	WebfilterProfile string
	IPSSensor        string
	ApplicationList  string

	Comment string
}

// Validate checks required fields and cross-field constraints before any
// device interaction.
func (p *Policy) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(p.ID > 0, "id must be a positive integer")
	v.Add(len(p.SrcAddr) > 0, "src-addr is required")
	v.Add(len(p.DstAddr) > 0, "dst-addr is required")
	v.Add(len(p.Service) > 0, "service is required")
	v.Add(p.Action == ActionAccept || p.Action == ActionDeny, "action must be accept or deny")
	if err := v.Build(); err != nil {
		return err
	}

	if !p.NAT {
		if p.PoolName != "" {
			return util.NewPreconditionError("policy set", p.resource(), "poolname requires nat to be enabled", "")
		}
		if p.FixedPort {
			return util.NewPreconditionError("policy set", p.resource(), "fixedport requires nat to be enabled", "")
		}
	}
	return nil
}

func (p *Policy) resource() string {
	return fmt.Sprintf("policy %d", p.ID)
}

// Key returns the table entry key for the policy.
func (p *Policy) Key() string {
	return strconv.Itoa(p.ID)
}

// Candidate builds the desired-state tree for the "firewall policy" block:
// the running tree with this policy's entry replaced by the declared
// content. Sibling policies stay untouched. running may be nil when the
// section is empty.
func (p *Policy) Candidate(running *conftree.Node) *conftree.Node {
	c := cloneSection(running)
	c.DeleteChild(p.Key())
	p.fill(c.AddChild(p.Key()))
	return c
}

// Absent builds the desired-state tree with policy id removed. Diffing it
// with replace semantics yields a single DeleteBlock when the policy
// exists, and nothing otherwise.
func Absent(running *conftree.Node, id int) *conftree.Node {
	c := cloneSection(running)
	c.DeleteChild(strconv.Itoa(id))
	return c
}

func cloneSection(running *conftree.Node) *conftree.Node {
	if running == nil {
		return conftree.NewTable(BlockPath()...)
	}
	c := running.Clone()
	c.Kind = conftree.KindTable
	return c
}

// fill writes the declared parameters with the device's quoting rules:
// object names and free text are double-quoted, list values become one
// space-joined string of quoted items, enable flags and keywords stay bare.
func (p *Policy) fill(b *conftree.Node) {
	srcIntf := p.SrcIntf
	if srcIntf == "" {
		srcIntf = "any"
	}
	dstIntf := p.DstIntf
	if dstIntf == "" {
		dstIntf = "any"
	}
	schedule := p.Schedule
	if schedule == "" {
		schedule = "always"
	}

	b.SetParam("srcintf", quote(srcIntf))
	b.SetParam("dstintf", quote(dstIntf))
	b.SetParam("srcaddr", quoteList(p.SrcAddr))
	b.SetParam("dstaddr", quoteList(p.DstAddr))
	b.SetParam("service", quoteList(p.Service))

	if p.SrcAddrNegate {
		b.SetParam("srcaddr-negate", "enable")
	}
	if p.DstAddrNegate {
		b.SetParam("dstaddr-negate", "enable")
	}
	if p.ServiceNegate {
		b.SetParam("service-negate", "enable")
	}

	b.SetParam("action", string(p.Action))
	b.SetParam("schedule", schedule)

	if p.NAT {
		b.SetParam("nat", "enable")
		if p.FixedPort {
			b.SetParam("fixedport", "enable")
		}
		if p.PoolName != "" {
			b.SetParam("ippool", "enable")
			b.SetParam("poolname", quote(p.PoolName))
		}
	}

	if p.AVProfile != "" {
		b.SetParam("av-profile", quote(p.AVProfile))
	}
	if p.WebfilterProfile != "" {
		b.SetParam("webfilter-profile", quote(p.WebfilterProfile))
	}
	if p.IPSSensor != "" {
		b.SetParam("ips-sensor", quote(p.IPSSensor))
	}
	if p.ApplicationList != "" {
		b.SetParam("application-list", quote(p.ApplicationList))
	}
	if p.Comment != "" {
		b.SetParam("comment", quote(p.Comment))
	}
}

// ManagedParams is the set of parameter names this schema manages. The
// diff engine unsets a running parameter only when it appears here and is
// absent from the candidate; device-managed fields (uuid, logtraffic
// defaults) are never touched.
func ManagedParams() map[string]bool {
	return map[string]bool{
		"srcintf":           true,
		"dstintf":           true,
		"srcaddr":           true,
		"dstaddr":           true,
		"srcaddr-negate":    true,
		"dstaddr-negate":    true,
		"service":           true,
		"service-negate":    true,
		"action":            true,
		"schedule":          true,
		"nat":               true,
		"fixedport":         true,
		"ippool":            true,
		"poolname":          true,
		"av-profile":        true,
		"webfilter-profile": true,
		"ips-sensor":        true,
		"application-list":  true,
		"comment":           true,
	}
}

func quote(s string) string {
	return `"` + s + `"`
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = quote(item)
	}
	return strings.Join(quoted, " ")
}
