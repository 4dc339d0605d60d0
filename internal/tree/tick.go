package tree

import (
	"errors"

	bt "github.com/joeycumines/go-behaviortree"
)

// errSuperseded aborts a pass whose results were overtaken by a nested
// deactivate or tick, started from an activation callback.
var errSuperseded = errors.New("tree: tick superseded by a nested tick")

func neverStale() bool { return false }

// Tick evaluates the node and its children, marking every visited node
// active, and returns the effective status.
//
// Tick does not deactivate anything first. To get a clean active path, call
// Deactivate on the root before ticking it, or use BehaviorTree.Tick.
//
// A Deactivate or Tick reaching n from an activation callback supersedes the
// pass: it stops ticking further children and keeps the statuses the nested
// pass produced.
func (n *Node) Tick() Status {
	n.Walk(func(d *Node) { d.pass++ })
	start := n.pass
	return n.tick(func() bool { return n.pass != start })
}

// BT adapts the node to a go-behaviortree node, so it can be driven by that
// package's tickers and managers.
func (n *Node) BT() bt.Node {
	return n.btNode(neverStale)
}

func (n *Node) tick(stale func() bool) Status {
	n.activate()
	switch n.kind {
	case KindFallback:
		status, err := bt.Selector(n.btChildren(stale))
		if errors.Is(err, errSuperseded) {
			return n.Status()
		}
		n.status = fromBT(status, err)
	case KindSequence:
		status, err := bt.Sequence(n.btChildren(stale))
		if errors.Is(err, errSuperseded) {
			return n.Status()
		}
		n.status = fromBT(status, err)
	case KindParallel:
		if status, ok := n.tickParallel(stale); ok {
			n.status = status
		}
	}
	return n.Status()
}

// tickParallel ticks every child, then compares the tallies against the
// threshold. ok is false if the pass was superseded.
func (n *Node) tickParallel(stale func() bool) (status Status, ok bool) {
	var succeeded, failed int
	for _, child := range n.children {
		switch child.tick(stale) {
		case Success:
			succeeded++
		case Failed:
			failed++
		}
		if stale() {
			return Failed, false
		}
	}
	switch {
	case succeeded >= n.threshold:
		return Success, true
	case failed > len(n.children)-n.threshold:
		return Failed, true
	default:
		return Running, true
	}
}

func (n *Node) btChildren(stale func() bool) []bt.Node {
	children := make([]bt.Node, len(n.children))
	for i, child := range n.children {
		children[i] = child.btNode(stale)
	}
	return children
}

func (n *Node) btNode(stale func() bool) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		status := n.tick(stale)
		if stale() {
			return bt.Failure, errSuperseded
		}
		return toBT(status), nil
	})
}
