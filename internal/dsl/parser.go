// Package dsl parses the indentation based behavior tree language into a
// tree.BehaviorTree.
//
// A tree is written one node per line, with one '|' per level of nesting:
//
//	?
//	|   !(have hunger)
//	|   [eat]
//
// Tokens are '?' (fallback), '->' (sequence), '=N' (parallel needing N
// successes), '(name)' (condition), '[name]' (action) and '!' (negates the
// following condition). ';;' starts a comment running to the end of the line.
// Several nodes on one line nest, each one level below the previous.
//
// Placing a node forgets every deeper level, so a line can only attach to the
// most recent node one level up, never to a node inside an earlier sibling's
// subtree.
package dsl

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/joeycumines/btdsl/internal/tree"
)

const (
	msgNotOperator = "Not operator can only be applied to conditions"
	msgMultiRoot   = "Tree has more than one root node"
	msgNoParent    = "node has no parent (wrong indentation level)"
	msgEmpty       = "tree must have at least one node but has none"
	msgZeroThresh  = "Parallel node success threshold must be greater than zero"
)

// Parse builds a behavior tree from text. It never fails outright: on
// malformed input the returned tree has no root, and its Err reports the
// first error and the line it was found on.
func Parse(text string) *tree.BehaviorTree {
	p := parser{text: text, line: 1}
	root, err := p.parse()
	if err != nil {
		return tree.NewFailed(err.Line, err.Message)
	}
	return tree.New(root)
}

// ParseFile reads and parses a .tree file. Only I/O failures are returned as
// errors; syntax errors are reported on the tree.
func ParseFile(path string) (*tree.BehaviorTree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree file: %w", err)
	}
	return Parse(string(data)), nil
}

type parser struct {
	text  string
	pos   int
	line  int
	depth int
	// slots[d] is the node most recently placed at depth d
	slots []*tree.Node
	// negate is set by an odd run of '!' not yet consumed by a condition
	negate bool
}

func (p *parser) fail(format string, args ...any) *tree.ParseError {
	return &tree.ParseError{Line: p.line, Message: fmt.Sprintf(format, args...)}
}

// describe returns the character at i for use in error messages.
func (p *parser) describe(i int) string {
	if i >= len(p.text) {
		return "EOF"
	}
	r, _ := utf8.DecodeRuneInString(p.text[i:])
	switch r {
	case '\n':
		return `\n`
	case '\t':
		return `\t`
	}
	return string(r)
}

func (p *parser) parse() (*tree.Node, *tree.ParseError) {
	for p.pos < len(p.text) {
		var err *tree.ParseError
		switch p.text[p.pos] {
		case ' ', '\t', '\r':
			p.pos++
		case '\n':
			if p.negate {
				return nil, p.fail(msgNotOperator)
			}
			p.pos++
			p.line++
			p.depth = 0
		case '|':
			if p.negate {
				return nil, p.fail(msgNotOperator)
			}
			p.pos++
			p.depth++
		case '!':
			p.pos++
			p.negate = !p.negate
		case ';':
			err = p.comment()
		case '?':
			p.pos++
			err = p.push(tree.NewFallback())
		case '-':
			if p.pos+1 >= len(p.text) || p.text[p.pos+1] != '>' {
				return nil, p.fail("Expecting '>', have '%s'", p.describe(p.pos+1))
			}
			p.pos += 2
			err = p.push(tree.NewSequence())
		case '=':
			err = p.parallel()
		case '(':
			line := p.line
			var name string
			if name, err = p.enclosed(')'); err == nil {
				err = p.push(tree.NewCondition(name, tree.WithNegation(p.negate), tree.WithLine(line)))
			}
		case '[':
			line := p.line
			var name string
			if name, err = p.enclosed(']'); err == nil {
				err = p.push(tree.NewAction(name, tree.WithLine(line)))
			}
		default:
			return nil, p.fail("Expecting '|', '-', '!', '[', or '(' but have '%s'", p.describe(p.pos))
		}
		if err != nil {
			return nil, err
		}
	}
	if p.negate {
		return nil, p.fail(msgNotOperator)
	}
	if len(p.slots) == 0 {
		return nil, p.fail(msgEmpty)
	}
	return p.slots[0], nil
}

// comment skips a ";;" comment, leaving the newline that ends it.
func (p *parser) comment() *tree.ParseError {
	if p.pos+1 >= len(p.text) || p.text[p.pos+1] != ';' {
		return p.fail("Expecting ';;' to start a comment, have ';' followed by '%s'", p.describe(p.pos+1))
	}
	if i := strings.IndexByte(p.text[p.pos:], '\n'); i >= 0 {
		p.pos += i
	} else {
		p.pos = len(p.text)
	}
	return nil
}

func (p *parser) parallel() *tree.ParseError {
	p.pos++
	start := p.pos
	for p.pos < len(p.text) && p.text[p.pos] >= '0' && p.text[p.pos] <= '9' {
		p.pos++
	}
	digits := p.text[start:p.pos]
	if digits == "" {
		return p.fail("Expecting a digit after '=', have '%s'", p.describe(p.pos))
	}
	threshold, err := strconv.Atoi(digits)
	if err != nil {
		return p.fail("Parallel node success threshold %s is out of range", digits)
	}
	if threshold == 0 {
		return p.fail(msgZeroThresh)
	}
	n, err := tree.NewParallel(threshold)
	if err != nil {
		return p.fail("%s", err)
	}
	return p.push(n)
}

// enclosed consumes an opening bracket through its matching close, and
// returns the trimmed text in between.
func (p *parser) enclosed(closing byte) (string, *tree.ParseError) {
	start := p.pos + 1
	end := strings.IndexByte(p.text[start:], closing)
	if end < 0 {
		p.line += strings.Count(p.text[start:], "\n")
		p.pos = len(p.text)
		return "", p.fail("Expecting '%c', have 'EOF'", closing)
	}
	raw := p.text[start : start+end]
	p.line += strings.Count(raw, "\n")
	p.pos = start + end + 1
	return strings.TrimSpace(raw), nil
}

// push places n at the current depth, below the node most recently placed
// one level up, then moves one level deeper for any further nodes on the
// same line.
func (p *parser) push(n *tree.Node) *tree.ParseError {
	if p.negate && n.Kind() != tree.KindCondition {
		return p.fail(msgNotOperator)
	}
	p.negate = false
	if n.Line() == 0 {
		n.SetLine(p.line)
	}
	d := p.depth
	if d == 0 {
		if len(p.slots) != 0 {
			return p.fail(msgMultiRoot)
		}
	} else {
		if d > len(p.slots) {
			return p.fail(msgNoParent)
		}
		parent := p.slots[d-1]
		if parent.Kind().IsLeaf() {
			return p.fail("%s node can't have child nodes", parent.Kind())
		}
		if err := parent.AddChild(n); err != nil {
			return p.fail("%s", err)
		}
	}
	// deeper slots belong to the previous sibling's subtree
	p.slots = append(p.slots[:d], n)
	p.depth++
	return nil
}
