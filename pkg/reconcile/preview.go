package reconcile

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/fortix-network/fortix/pkg/conftree"
)

// Preview renders a unified diff of the running block against what it will
// look like after the operations are applied. Used in check mode and for
// operator review before execute.
func Preview(running *conftree.Node, ops []conftree.Operation) string {
	before := strings.Join(conftree.RenderTree(running), "\n") + "\n"
	after := strings.Join(conftree.RenderTree(conftree.Replay(running.Clone(), ops)), "\n") + "\n"

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "running",
		ToFile:   "candidate",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}
