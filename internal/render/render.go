// Package render draws behavior trees for the terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtree "github.com/charmbracelet/lipgloss/tree"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/joeycumines/btdsl/internal/tree"
)

const (
	activeMark   = "*"
	inactiveMark = "-"
)

// Options controls rendering.
type Options struct {
	// Color enables ANSI styling. Without it the output is plain text and
	// inactive nodes are only distinguishable by their marker.
	Color bool
}

// ColorMode resolves the "color" option (auto, always, never) for w. Auto
// enables color when w is a terminal and NO_COLOR is unset.
func ColorMode(mode string, w io.Writer) (bool, error) {
	switch strings.ToLower(mode) {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto", "":
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false, nil
		}
		f, ok := w.(*os.File)
		return ok && term.IsTerminal(int(f.Fd())), nil
	default:
		return false, fmt.Errorf("invalid color mode: %s", mode)
	}
}

type styles struct {
	status   map[tree.Status]lipgloss.Style
	label    lipgloss.Style
	inactive lipgloss.Style
	errStyle lipgloss.Style
	branch   lipgloss.Style
}

func newStyles(color bool) styles {
	r := lipgloss.NewRenderer(io.Discard)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		status: map[tree.Status]lipgloss.Style{
			tree.Success: r.NewStyle().Foreground(lipgloss.Color("2")),
			tree.Failed:  r.NewStyle().Foreground(lipgloss.Color("1")),
			tree.Running: r.NewStyle().Foreground(lipgloss.Color("3")),
		},
		label:    r.NewStyle().Bold(true),
		inactive: r.NewStyle().Faint(true),
		errStyle: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		branch:   r.NewStyle().Foreground(lipgloss.Color("8")).PaddingRight(1),
	}
}

// Tree renders t with one line per node: its label, its effective status, and
// a marker that is "*" for nodes on the active path and "-" otherwise.
func Tree(t *tree.BehaviorTree, opts Options) string {
	st := newStyles(opts.Color)
	if t.Root() == nil {
		return st.errStyle.Render(fmt.Sprintf("error at line %d: %s", t.Line(), t.Error()))
	}
	root := lgtree.Root(st.line(t.Root())).EnumeratorStyle(st.branch)
	st.children(root, t.Root())
	return root.String()
}

func (st styles) children(parent *lgtree.Tree, n *tree.Node) {
	for _, c := range n.Children() {
		if c.Kind().IsLeaf() {
			parent.Child(st.line(c))
			continue
		}
		sub := lgtree.Root(st.line(c))
		st.children(sub, c)
		parent.Child(sub)
	}
}

func (st styles) line(n *tree.Node) string {
	status := n.Status()
	text := st.label.Render(n.Label()) + " " + st.status[status].Render(status.String())
	if n.Active() {
		return text + " " + activeMark
	}
	return st.inactive.Render(text + " " + inactiveMark)
}

// ActivePath returns the labels of the active nodes in pre-order, joined by
// " > ". An error tree yields "".
func ActivePath(t *tree.BehaviorTree) string {
	path := t.ActivePath()
	labels := make([]string, len(path))
	for i, n := range path {
		labels[i] = n.Label()
	}
	return strings.Join(labels, " > ")
}
