package conftree

import (
	"fmt"
	"strings"
)

// ParseError reports malformed configuration text. It carries the offending
// line so transport problems and device-side syntax surprises can be told
// apart by the caller.
type ParseError struct {
	Line     int    // 1-based line number
	Text     string // the offending line, trimmed
	Expected string // what the parser expected instead
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d (%q): expected %s", e.Line, e.Text, e.Expected)
}

// frame tracks one open block while parsing.
type frame struct {
	node   *Node
	opener string // "config" or "edit"; "" for the synthetic root frame
	line   int
}

// Parse converts a device configuration dump into a Node tree rooted at the
// given path. The grammar is the FortiOS block syntax:
//
//	config <name>
//	    edit "<key>"
//	        set <name> <value...>
//	        unset <name>
//	    next
//	end
//
// Multi-token quoted values ("a" "b" "c") are kept as a single opaque
// parameter string with the literal quoting preserved. Parsing is pure:
// the same text always yields a structurally identical tree. Malformed
// nesting fails with *ParseError; content is never silently dropped.
func Parse(text string, path ...string) (*Node, error) {
	root := New(path...)
	stack := []frame{{node: root}}

	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		keyword, rest := cutToken(line)
		cur := &stack[len(stack)-1]

		switch keyword {
		case "config":
			if rest == "" {
				return nil, &ParseError{Line: lineNo, Text: line, Expected: "a block name after \"config\""}
			}
			if len(stack) == 1 && root.Key() == rest {
				// Section header for the requested path itself.
				stack = append(stack, frame{node: root, opener: "config", line: lineNo})
				continue
			}
			stack = append(stack, frame{node: cur.node.AddChild(rest), opener: "config", line: lineNo})

		case "edit":
			if rest == "" {
				return nil, &ParseError{Line: lineNo, Text: line, Expected: "an entry key after \"edit\""}
			}
			cur.node.Kind = KindTable
			stack = append(stack, frame{node: cur.node.AddChild(unquote(rest)), opener: "edit", line: lineNo})

		case "set":
			name, value := cutToken(rest)
			if name == "" {
				return nil, &ParseError{Line: lineNo, Text: line, Expected: "a parameter name after \"set\""}
			}
			cur.node.SetParam(name, value)

		case "unset":
			name, _ := cutToken(rest)
			if name == "" {
				return nil, &ParseError{Line: lineNo, Text: line, Expected: "a parameter name after \"unset\""}
			}
			cur.node.UnsetParam(name)

		case "delete":
			if rest == "" {
				return nil, &ParseError{Line: lineNo, Text: line, Expected: "an entry key after \"delete\""}
			}
			cur.node.DeleteChild(unquote(rest))

		case "next":
			if cur.opener != "edit" {
				return nil, &ParseError{Line: lineNo, Text: line, Expected: "\"next\" only inside an \"edit\" block"}
			}
			stack = stack[:len(stack)-1]

		case "end":
			if cur.opener != "config" {
				return nil, &ParseError{Line: lineNo, Text: line, Expected: "\"end\" only inside a \"config\" block"}
			}
			stack = stack[:len(stack)-1]

		default:
			return nil, &ParseError{Line: lineNo, Text: line, Expected: "one of config, edit, set, unset, delete, next, end"}
		}
	}

	if len(stack) != 1 {
		open := stack[len(stack)-1]
		return nil, &ParseError{
			Line:     open.line,
			Text:     open.opener + " " + open.node.Key(),
			Expected: fmt.Sprintf("closing %q for block opened at line %d", closerFor(open.opener), open.line),
		}
	}

	return root, nil
}

func closerFor(opener string) string {
	if opener == "edit" {
		return "next"
	}
	return "end"
}

// cutToken splits off the first whitespace-delimited token and returns it
// with the trimmed remainder. The remainder keeps its internal spacing so
// quoted value lists survive verbatim.
func cutToken(s string) (string, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
