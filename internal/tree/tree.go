package tree

import (
	"fmt"
	"sort"
	"sync/atomic"
)

var lastTreeID atomic.Uint64

// ParseError describes why a tree could not be built.
type ParseError struct {
	// Line is the 1-based line parsing stopped at.
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// BehaviorTree owns a root node plus name indexes over its conditions and
// actions. A tree either has a root, or an error and the line it occurred
// on, never both.
//
// A BehaviorTree is not safe for concurrent use.
type BehaviorTree struct {
	id         uint64
	root       *Node
	conditions map[string][]*Node
	actions    map[string][]*Node
	line       int
	err        string
}

// New builds a tree around root, indexing every condition and action by
// name in pre-order. A nil root yields a failed tree.
func New(root *Node) *BehaviorTree {
	if root == nil {
		return NewFailed(0, "tree must have at least one node but has none")
	}
	t := &BehaviorTree{
		id:         lastTreeID.Add(1),
		root:       root,
		conditions: make(map[string][]*Node),
		actions:    make(map[string][]*Node),
	}
	root.Walk(func(n *Node) {
		switch n.kind {
		case KindCondition:
			t.conditions[n.name] = append(t.conditions[n.name], n)
		case KindAction:
			t.actions[n.name] = append(t.actions[n.name], n)
		}
	})
	return t
}

// NewFailed returns a tree without a root, recording the error that
// prevented it from being built.
func NewFailed(line int, message string) *BehaviorTree {
	return &BehaviorTree{
		id:   lastTreeID.Add(1),
		line: line,
		err:  message,
	}
}

// ID returns the identifier assigned to the tree when it was created. IDs
// increase monotonically within a process.
func (t *BehaviorTree) ID() uint64 { return t.id }

// Root returns the root node, or nil for a failed tree.
func (t *BehaviorTree) Root() *Node { return t.root }

// Line returns the line a failed parse stopped at, or zero.
func (t *BehaviorTree) Line() int { return t.line }

// Error returns the parse error message, or "" if the tree is valid.
func (t *BehaviorTree) Error() string { return t.err }

// Err returns a *ParseError for a failed tree, or nil.
func (t *BehaviorTree) Err() error {
	if t.root != nil {
		return nil
	}
	return &ParseError{Line: t.line, Message: t.err}
}

// Tick deactivates the whole tree then ticks the root, so that exactly the
// nodes visited by this pass are active afterwards. A failed tree ticks to
// FAILED.
//
// Tick may be called again from an activation callback. The nested pass
// supersedes the outer one, which stops ticking further children and keeps
// the statuses the nested pass produced.
func (t *BehaviorTree) Tick() Status {
	if t.root == nil {
		return Failed
	}
	t.root.Deactivate()
	return t.root.Tick()
}

// Deactivate clears the active flag of every node.
func (t *BehaviorTree) Deactivate() {
	if t.root != nil {
		t.root.Deactivate()
	}
}

// Status returns the effective status of the root, as of the last tick.
func (t *BehaviorTree) Status() Status {
	if t.root == nil {
		return Failed
	}
	return t.root.Status()
}

// SetConditionStatus sets the status of every condition named name. Unknown
// names are ignored.
func (t *BehaviorTree) SetConditionStatus(name string, s Status) error {
	return setAll(t.conditions[name], s)
}

// ConditionStatus returns the raw status last set on the condition named
// name, or NotFound.
func (t *BehaviorTree) ConditionStatus(name string) Status {
	return firstStatus(t.conditions[name])
}

// SetActionStatus sets the status of every action named name. Unknown names
// are ignored.
func (t *BehaviorTree) SetActionStatus(name string, s Status) error {
	return setAll(t.actions[name], s)
}

// ActionStatus returns the status of the action named name, or NotFound.
func (t *BehaviorTree) ActionStatus(name string) Status {
	return firstStatus(t.actions[name])
}

// Conditions returns the distinct condition names, sorted.
func (t *BehaviorTree) Conditions() []string { return sortedKeys(t.conditions) }

// Actions returns the distinct action names, sorted.
func (t *BehaviorTree) Actions() []string { return sortedKeys(t.actions) }

// ConditionNodes returns every condition named name, in source order.
func (t *BehaviorTree) ConditionNodes(name string) []*Node { return t.conditions[name] }

// ActionNodes returns every action named name, in source order.
func (t *BehaviorTree) ActionNodes(name string) []*Node { return t.actions[name] }

// OnActionActivation subscribes cb to every action currently in the tree.
func (t *BehaviorTree) OnActionActivation(cb ActivationFunc) {
	for _, name := range t.Actions() {
		for _, n := range t.actions[name] {
			n.OnActivation(cb)
		}
	}
}

// ActivePath returns the nodes that are active, in pre-order.
func (t *BehaviorTree) ActivePath() []*Node {
	if t.root == nil {
		return nil
	}
	var path []*Node
	t.root.Walk(func(n *Node) {
		if n.active {
			path = append(path, n)
		}
	})
	return path
}

func setAll(nodes []*Node, s Status) error {
	for _, n := range nodes {
		if err := n.SetStatus(s); err != nil {
			return err
		}
	}
	return nil
}

func firstStatus(nodes []*Node) Status {
	if len(nodes) == 0 {
		return NotFound
	}
	return nodes[0].status
}

func sortedKeys(m map[string][]*Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
