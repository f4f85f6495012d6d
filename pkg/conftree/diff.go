package conftree

// OpKind identifies one kind of configuration operation.
type OpKind int

const (
	OpSetParam OpKind = iota
	OpUnsetParam
	OpEnterBlock // enter a named sub-block ("config <name>")
	OpEditBlock  // enter a keyed table entry ("edit <key>")
	OpDeleteBlock
	OpEndBlock
)

func (k OpKind) String() string {
	switch k {
	case OpSetParam:
		return "set"
	case OpUnsetParam:
		return "unset"
	case OpEnterBlock:
		return "config"
	case OpEditBlock:
		return "edit"
	case OpDeleteBlock:
		return "delete"
	case OpEndBlock:
		return "end"
	}
	return "unknown"
}

// Operation is one element of a diff: a single set/unset/enter/delete step.
// The sequence emitted by Diff is always valid to replay in order against
// the device CLI: blocks are entered before their contents, deletes are
// terminal and never followed by edits to the deleted block.
type Operation struct {
	Kind OpKind
	// Path is the block path the operation applies to. For block
	// operations (enter/edit/delete/end) it is the path of the block
	// being entered or removed; for parameter operations it is the path
	// of the enclosing block.
	Path []string
	// Name and Value are populated for OpSetParam and OpUnsetParam only
	// (Value for OpSetParam only).
	Name  string
	Value string
}

// DiffOptions controls which differences the engine acts on.
type DiffOptions struct {
	// Replace requests desired-state-replace semantics: child blocks
	// present in running but absent from candidate are deleted. When
	// false, undeclared children are left untouched.
	Replace bool
	// ManagedParams is the set of parameter names the caller manages.
	// A parameter present in running but absent from candidate is unset
	// only if listed here; device-managed defaults outside the set are
	// never touched. Parameters declared in candidate are always set
	// regardless of this list.
	ManagedParams map[string]bool
}

// Diff computes the ordered operations that transform running into
// candidate. Both trees must be rooted at the same path. An empty result
// means applying it is a no-op; applying a non-empty result and re-diffing
// yields empty (convergence), absent concurrent external mutation.
//
// Parameter values are compared string-exact, quoting included: a candidate
// value identical to running emits nothing. Within one level, deletions are
// emitted before edits, and an entry being wholly replaced appears as
// DeleteBlock followed by a separate EditBlock, never merged.
func Diff(running, candidate *Node, opts DiffOptions) []Operation {
	if running == nil {
		running = emptyLike(candidate)
	}
	return diffNode(running, candidate, opts)
}

func diffNode(running, candidate *Node, opts DiffOptions) []Operation {
	var ops []Operation

	// Parameters: set what differs, unset managed leftovers.
	for _, name := range candidate.ParamNames() {
		want, _ := candidate.GetParam(name)
		got, ok := running.GetParam(name)
		if !ok || got != want {
			ops = append(ops, Operation{Kind: OpSetParam, Path: candidate.Path, Name: name, Value: want})
		}
	}
	for _, name := range running.ParamNames() {
		if _, ok := candidate.GetParam(name); ok {
			continue
		}
		if opts.ManagedParams[name] {
			ops = append(ops, Operation{Kind: OpUnsetParam, Path: candidate.Path, Name: name})
		}
	}

	// Children: deletes first, then creates and edits.
	if opts.Replace {
		for _, key := range running.ChildKeys() {
			if _, ok := candidate.Child(key); ok {
				continue
			}
			child, _ := running.Child(key)
			ops = append(ops, Operation{Kind: OpDeleteBlock, Path: child.Path, Name: key})
		}
	}
	for _, key := range candidate.ChildKeys() {
		want, _ := candidate.Child(key)
		got, inRunning := running.Child(key)
		if !inRunning {
			got = emptyLike(want)
		}
		sub := diffNode(got, want, opts)
		if inRunning && len(sub) == 0 {
			// No-op edits are elided to avoid unnecessary device writes.
			continue
		}
		enter := OpEnterBlock
		if candidate.Kind == KindTable {
			enter = OpEditBlock
		}
		ops = append(ops, Operation{Kind: enter, Path: want.Path, Name: key})
		ops = append(ops, sub...)
		ops = append(ops, Operation{Kind: OpEndBlock, Path: want.Path, Name: key})
	}

	return ops
}

// emptyLike returns an empty node at the same path and kind as n, used as
// the implicit running side when a block does not exist yet.
func emptyLike(n *Node) *Node {
	e := New(n.Path...)
	e.Kind = n.Kind
	return e
}

// Replay applies a diff to a tree in memory, mirroring what the device's
// command interpreter would do. root must be rooted at the path the
// operations were computed for. Used for convergence checks and for
// building the candidate-side preview.
func Replay(root *Node, ops []Operation) *Node {
	for _, op := range ops {
		switch op.Kind {
		case OpSetParam:
			locate(root, op.Path).SetParam(op.Name, op.Value)
		case OpUnsetParam:
			locate(root, op.Path).UnsetParam(op.Name)
		case OpEnterBlock:
			locate(root, op.Path)
		case OpEditBlock:
			parent := locate(root, op.Path[:len(op.Path)-1])
			parent.Kind = KindTable
			parent.AddChild(op.Name)
		case OpDeleteBlock:
			locate(root, op.Path[:len(op.Path)-1]).DeleteChild(op.Name)
		case OpEndBlock:
		}
	}
	return root
}

// locate walks (creating as needed) to the node at path, which must be the
// root path or extend it.
func locate(root *Node, path []string) *Node {
	n := root
	for i := len(root.Path); i < len(path); i++ {
		n = n.AddChild(path[i])
	}
	return n
}
