package conftree

import "strings"

const indentStep = "    "

// Render serializes an operation sequence into device command lines. The
// base path is opened with "config" lines around the operations so the
// emitted text is syntactically well-formed standalone, assuming only that
// ancestor blocks of base already exist on the device.
//
// Rendering is the inverse of Parse's quoting handling: for any sequence
// producible by Diff, parsing the rendered text reproduces the same
// structure as replaying the operations directly.
func Render(base []string, ops []Operation) []string {
	var lines []string
	var closers []string
	indent := func() string { return strings.Repeat(indentStep, len(closers)) }

	for _, seg := range base {
		lines = append(lines, indent()+"config "+seg)
		closers = append(closers, "end")
	}

	for _, op := range ops {
		switch op.Kind {
		case OpSetParam:
			lines = append(lines, indent()+"set "+op.Name+" "+op.Value)
		case OpUnsetParam:
			lines = append(lines, indent()+"unset "+op.Name)
		case OpEditBlock:
			lines = append(lines, indent()+"edit "+quoteKey(op.Name))
			closers = append(closers, "next")
		case OpEnterBlock:
			lines = append(lines, indent()+"config "+op.Name)
			closers = append(closers, "end")
		case OpDeleteBlock:
			lines = append(lines, indent()+"delete "+quoteKey(op.Name))
		case OpEndBlock:
			closer := closers[len(closers)-1]
			closers = closers[:len(closers)-1]
			lines = append(lines, indent()+closer)
		}
	}

	for len(closers) > 0 {
		closer := closers[len(closers)-1]
		closers = closers[:len(closers)-1]
		lines = append(lines, strings.Repeat(indentStep, len(closers))+closer)
	}

	return lines
}

// RenderTree serializes a whole tree, opening one "config" block per path
// segment. Used for check-mode previews of running vs candidate.
func RenderTree(n *Node) []string {
	var lines []string
	depth := 0
	for _, seg := range n.Path {
		lines = append(lines, strings.Repeat(indentStep, depth)+"config "+seg)
		depth++
	}
	lines = renderBody(lines, n, depth)
	for depth > 0 {
		depth--
		lines = append(lines, strings.Repeat(indentStep, depth)+"end")
	}
	return lines
}

func renderBody(lines []string, n *Node, depth int) []string {
	pad := strings.Repeat(indentStep, depth)
	for _, name := range n.ParamNames() {
		v, _ := n.GetParam(name)
		lines = append(lines, pad+"set "+name+" "+v)
	}
	for _, key := range n.ChildKeys() {
		child, _ := n.Child(key)
		if n.Kind == KindTable {
			lines = append(lines, pad+"edit "+quoteKey(key))
			lines = renderBody(lines, child, depth+1)
			lines = append(lines, pad+"next")
		} else {
			lines = append(lines, pad+"config "+key)
			lines = renderBody(lines, child, depth+1)
			lines = append(lines, pad+"end")
		}
	}
	return lines
}

// quoteKey wraps an edit key in double quotes when the device requires it
// (anything beyond bare alphanumerics, dots, dashes and underscores).
// Numeric policy IDs stay bare.
func quoteKey(key string) string {
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '_':
		default:
			return `"` + key + `"`
		}
	}
	if key == "" {
		return `""`
	}
	return key
}
