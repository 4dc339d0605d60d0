package tree

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when a snapshot names a node kind outside the
// five known kinds.
var ErrUnknownKind = errors.New("unknown node kind")

// Snapshot is the serialized form of a tree.
type Snapshot struct {
	Root  *NodeSnapshot `json:"root"`
	Line  int           `json:"line"`
	Error string        `json:"error,omitempty"`
}

// NodeSnapshot is the serialized form of a single node. NodeStatus holds the
// raw status; negation is carried separately by HasNot.
type NodeSnapshot struct {
	Name         string          `json:"name"`
	Kind         Kind            `json:"kind"`
	Children     []*NodeSnapshot `json:"children"`
	Active       bool            `json:"active"`
	WasActive    bool            `json:"wasActive"`
	NodeStatus   Status          `json:"nodeStatus"`
	HasNot       bool            `json:"hasNot"`
	SuccessCount int             `json:"successCount,omitempty"`
}

// Snapshot captures the shape, flags and statuses of the tree.
func (t *BehaviorTree) Snapshot() *Snapshot {
	s := &Snapshot{Line: t.line, Error: t.err}
	if t.root != nil {
		s.Root = snapshotNode(t.root)
	}
	return s
}

func snapshotNode(n *Node) *NodeSnapshot {
	s := &NodeSnapshot{
		Name:         n.name,
		Kind:         n.kind,
		Active:       n.active,
		WasActive:    n.wasActive,
		NodeStatus:   n.status,
		HasNot:       n.negated,
		SuccessCount: n.threshold,
	}
	if !n.kind.IsLeaf() {
		s.Children = make([]*NodeSnapshot, len(n.children))
		for i, child := range n.children {
			s.Children[i] = snapshotNode(child)
		}
	}
	return s
}

// FromSnapshot rebuilds a tree from its serialized form. The result
// serializes back to an identical snapshot.
func FromSnapshot(s *Snapshot) (*BehaviorTree, error) {
	if s == nil {
		return nil, errors.New("nil snapshot")
	}
	if s.Root == nil {
		if s.Error == "" {
			return nil, errors.New("snapshot has neither a root nor an error")
		}
		return NewFailed(s.Line, s.Error), nil
	}
	root, err := restoreNode(s.Root, "root")
	if err != nil {
		return nil, err
	}
	t := New(root)
	t.line = s.Line
	t.err = s.Error
	return t, nil
}

func restoreNode(s *NodeSnapshot, path string) (*Node, error) {
	if s == nil {
		return nil, fmt.Errorf("%s: %w", path, errNilNode)
	}
	n := &Node{
		kind:      s.Kind,
		name:      s.Name,
		active:    s.Active,
		wasActive: s.WasActive,
		status:    s.NodeStatus,
	}
	switch s.Kind {
	case KindFallback, KindSequence:
	case KindParallel:
		if s.SuccessCount < 1 {
			return nil, fmt.Errorf("%s: parallel success count must be greater than zero, got %d", path, s.SuccessCount)
		}
		n.threshold = s.SuccessCount
	case KindCondition:
		n.negated = s.HasNot
	case KindAction:
	default:
		return nil, fmt.Errorf("%s: %w: %q", path, ErrUnknownKind, s.Kind)
	}
	if s.HasNot && s.Kind != KindCondition {
		return nil, fmt.Errorf("%s: the not operator can only be applied to conditions, have %s", path, s.Kind)
	}
	if !s.NodeStatus.Valid() {
		return nil, fmt.Errorf("%s: invalid node status %d", path, int(s.NodeStatus))
	}
	if s.Kind == KindCondition && s.NodeStatus == Running {
		return nil, fmt.Errorf("%s: condition %q can't be %v", path, s.Name, s.NodeStatus)
	}
	if s.Kind.IsLeaf() {
		if len(s.Children) != 0 {
			return nil, fmt.Errorf("%s: %s node can't have child nodes", path, s.Kind)
		}
		return n, nil
	}
	n.children = make([]*Node, 0, len(s.Children))
	for i, child := range s.Children {
		c, err := restoreNode(child, fmt.Sprintf("%s.children[%d]", path, i))
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, c)
	}
	return n, nil
}

// MarshalJSON encodes the tree as its Snapshot.
func (t *BehaviorTree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Snapshot())
}

// UnmarshalJSON decodes a Snapshot into t, replacing its contents.
func (t *BehaviorTree) UnmarshalJSON(data []byte) error {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	restored, err := FromSnapshot(&s)
	if err != nil {
		return err
	}
	*t = *restored
	return nil
}
