// Package conftree models FortiOS-style block configuration as a tree of
// named blocks and computes the minimal command sequence needed to converge
// a device's running configuration onto a desired candidate.
package conftree

import (
	"sort"
	"strconv"
)

// Kind distinguishes how a block's children are entered on the device CLI.
type Kind int

const (
	// KindFlat blocks hold only parameters, or named sub-blocks entered
	// with "config <name>".
	KindFlat Kind = iota
	// KindTable blocks hold keyed entries edited individually with
	// "edit <key>" (e.g. per-ID firewall policies).
	KindTable
)

// Node is one block of configuration: a set of scalar parameters plus
// keyed child blocks. Parameter values are opaque strings, quoting
// included; the device compares them string-exact and so does this package.
type Node struct {
	// Path identifies the block relative to the tree root,
	// e.g. ["firewall policy", "42"].
	Path []string
	Kind Kind

	params   map[string]string
	children map[string]*Node
}

// New creates a root node at the given path.
func New(path ...string) *Node {
	return &Node{
		Path:     append([]string(nil), path...),
		params:   make(map[string]string),
		children: make(map[string]*Node),
	}
}

// NewTable creates a root table node at the given path.
func NewTable(path ...string) *Node {
	n := New(path...)
	n.Kind = KindTable
	return n
}

// Key returns the node's own key (last path segment), or "" for an
// unrooted node.
func (n *Node) Key() string {
	if len(n.Path) == 0 {
		return ""
	}
	return n.Path[len(n.Path)-1]
}

// SetParam inserts or overwrites a parameter. Total; never fails.
func (n *Node) SetParam(name, value string) {
	n.params[name] = value
}

// GetParam returns the parameter value and whether it is present.
// An absent parameter is never conflated with an empty string.
func (n *Node) GetParam(name string) (string, bool) {
	v, ok := n.params[name]
	return v, ok
}

// UnsetParam removes a parameter if present.
func (n *Node) UnsetParam(name string) {
	delete(n.params, name)
}

// ParamNames returns all parameter names in sorted order.
func (n *Node) ParamNames() []string {
	names := make([]string, 0, len(n.params))
	for name := range n.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddChild creates a child block under the given key, or returns the
// existing one. The child's path is the parent's path plus its key.
func (n *Node) AddChild(key string) *Node {
	if c, ok := n.children[key]; ok {
		return c
	}
	c := New(append(append([]string(nil), n.Path...), key)...)
	n.children[key] = c
	return c
}

// Child returns the child block for key and whether it exists.
func (n *Node) Child(key string) (*Node, bool) {
	c, ok := n.children[key]
	return c, ok
}

// DeleteChild removes a child block and its entire subtree.
func (n *Node) DeleteChild(key string) {
	delete(n.children, key)
}

// ChildKeys returns all child keys, numerically sorted where both keys are
// integers (policy IDs) and lexically otherwise.
func (n *Node) ChildKeys() []string {
	keys := make([]string, 0, len(n.children))
	for key := range n.children {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keyLess(keys[i], keys[j])
	})
	return keys
}

func keyLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

// Empty returns true if the node has no parameters and no children.
func (n *Node) Empty() bool {
	return len(n.params) == 0 && len(n.children) == 0
}

// Equal compares two trees on parameter and child content only,
// independent of construction order and of how the trees are rooted.
func (n *Node) Equal(other *Node) bool {
	if other == nil {
		return false
	}
	if len(n.params) != len(other.params) || len(n.children) != len(other.children) {
		return false
	}
	for name, v := range n.params {
		ov, ok := other.params[name]
		if !ok || ov != v {
			return false
		}
	}
	for key, c := range n.children {
		oc, ok := other.children[key]
		if !ok || !c.Equal(oc) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the node and its subtree.
func (n *Node) Clone() *Node {
	c := New(n.Path...)
	c.Kind = n.Kind
	for name, v := range n.params {
		c.params[name] = v
	}
	for key, child := range n.children {
		cc := child.Clone()
		c.children[key] = cc
	}
	return c
}
