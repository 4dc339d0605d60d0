package tree

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// ActivationFunc is called, synchronously, each time an action node is
// marked active by a tick.
type ActivationFunc func(action *Node)

// Node is a single node of a behavior tree. The zero value is not usable;
// construct nodes with the New* factories.
//
// A Node is not safe for concurrent use. Callers must serialize ticks and
// status updates.
type Node struct {
	kind      Kind
	name      string
	children  []*Node
	active    bool
	wasActive bool
	// status is the raw status, before negation
	status    Status
	negated   bool
	threshold int
	line      int
	callbacks []ActivationFunc
	// pass is bumped by every Deactivate and Tick covering the node
	pass      uint64
}

// Option configures a leaf node at construction time.
type Option func(*Node)

// WithStatus sets the initial status of a condition or action.
func WithStatus(s Status) Option {
	return func(n *Node) {
		n.status = s
	}
}

// WithNegation marks a condition as negated. NewAction panics if given a
// negation.
func WithNegation(negated bool) Option {
	return func(n *Node) {
		n.negated = negated
	}
}

// WithActivation subscribes cb to activations of an action. NewCondition
// panics if given a callback.
func WithActivation(cb ActivationFunc) Option {
	return func(n *Node) {
		if cb != nil {
			n.callbacks = append(n.callbacks, cb)
		}
	}
}

// WithLine records the source line the node was declared on.
func WithLine(line int) Option {
	return func(n *Node) {
		n.line = line
	}
}

// NewFallback returns a fallback ("?") node that succeeds as soon as one of
// its children does not fail.
func NewFallback(children ...*Node) *Node {
	return &Node{kind: KindFallback, name: "?", children: children}
}

// NewSequence returns a sequence ("->") node that fails as soon as one of its
// children does not succeed.
func NewSequence(children ...*Node) *Node {
	return &Node{kind: KindSequence, name: "->", children: children}
}

// NewParallel returns a parallel ("=N") node, which ticks every child and
// succeeds once at least threshold of them succeeded.
func NewParallel(threshold int, children ...*Node) (*Node, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("parallel success threshold must be greater than zero, got %d", threshold)
	}
	return &Node{kind: KindParallel, name: "=", threshold: threshold, children: children}, nil
}

// NewCondition returns a condition leaf. Conditions start FAILED unless
// WithStatus says otherwise. It panics on a RUNNING status or an activation
// callback, which are programming errors.
func NewCondition(name string, opts ...Option) *Node {
	n := &Node{kind: KindCondition, name: name, status: Failed}
	for _, opt := range opts {
		opt(n)
	}
	if len(n.callbacks) != 0 {
		panic(fmt.Sprintf("tree.NewCondition: activation callbacks can only be attached to actions (condition=%s)", name))
	}
	if n.status == Running {
		panic(fmt.Sprintf("tree.NewCondition: conditions can't be RUNNING (condition=%s)", name))
	}
	return n
}

// NewAction returns an action leaf. Actions start RUNNING unless WithStatus
// says otherwise. It panics if negated.
func NewAction(name string, opts ...Option) *Node {
	n := &Node{kind: KindAction, name: name, status: Running}
	for _, opt := range opts {
		opt(n)
	}
	if n.negated {
		panic(fmt.Sprintf("tree.NewAction: the not operator can only be applied to conditions (action=%s)", name))
	}
	return n
}

// Kind returns the node variant.
func (n *Node) Kind() Kind { return n.kind }

// Name returns the condition or action name, or the operator symbol for
// combinators.
func (n *Node) Name() string { return n.name }

// Children returns the child nodes in declaration order. The slice must not
// be modified.
func (n *Node) Children() []*Node { return n.children }

// Active reports whether the node was ticked since it was last deactivated.
func (n *Node) Active() bool { return n.active }

// WasActive reports whether the node was active when it was last
// deactivated.
func (n *Node) WasActive() bool { return n.wasActive }

// Negated reports whether a condition has the not operator applied.
func (n *Node) Negated() bool { return n.negated }

// SuccessThreshold returns the number of children a parallel node needs to
// succeed. It is zero for every other kind.
func (n *Node) SuccessThreshold() int { return n.threshold }

// Line returns the 1-based source line of the node, or zero if unknown.
func (n *Node) Line() int { return n.line }

// SetLine records the source line of the node.
func (n *Node) SetLine(line int) { n.line = line }

// RawStatus returns the status without negation applied.
func (n *Node) RawStatus() Status { return n.status }

// Status returns the effective status of the node: the raw status with a
// condition's negation applied.
func (n *Node) Status() Status {
	if n.negated {
		switch n.status {
		case Success:
			return Failed
		case Failed:
			return Success
		}
	}
	return n.status
}

// SetStatus sets the externally driven status of a condition or action.
func (n *Node) SetStatus(s Status) error {
	switch {
	case !n.kind.IsLeaf():
		return fmt.Errorf("can't set the status of a %s node", n.kind)
	case !s.Valid():
		return fmt.Errorf("invalid status %v for %s %q", s, n.kind, n.name)
	case n.kind == KindCondition && s == Running:
		return fmt.Errorf("condition %q can't be %v", n.name, s)
	}
	n.status = s
	return nil
}

// AddChild appends child to a combinator node.
func (n *Node) AddChild(child *Node) error {
	if n.kind.IsLeaf() {
		return fmt.Errorf("%s node can't have child nodes", n.kind)
	}
	n.children = append(n.children, child)
	return nil
}

// OnActivation subscribes cb to activations of this action. It is a no-op
// for every other kind.
func (n *Node) OnActivation(cb ActivationFunc) {
	if n.kind != KindAction || cb == nil {
		return
	}
	n.callbacks = append(n.callbacks, cb)
}

// Label returns the DSL spelling of the node, e.g. "=2" or "!(hungry)".
func (n *Node) Label() string {
	switch n.kind {
	case KindParallel:
		return "=" + strconv.Itoa(n.threshold)
	case KindCondition:
		if n.negated {
			return "!(" + n.name + ")"
		}
		return "(" + n.name + ")"
	case KindAction:
		return "[" + n.name + "]"
	default:
		return n.name
	}
}

// Walk calls fn for n and every descendant, in pre-order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, child := range n.children {
		child.Walk(fn)
	}
}

// Deactivate clears the active flag of n and every descendant, remembering
// the previous value as WasActive. Statuses are left untouched.
func (n *Node) Deactivate() {
	n.pass++
	n.wasActive = n.active
	n.active = false
	for _, child := range n.children {
		child.Deactivate()
	}
}

// activate marks the node active, notifying activation subscribers of
// actions. Subscribers are copied first so a callback may subscribe others.
func (n *Node) activate() {
	n.active = true
	if n.kind != KindAction {
		return
	}
	for _, cb := range slices.Clone(n.callbacks) {
		cb(n)
	}
}

var errNilNode = errors.New("tree: nil node")
