package tree

import (
	"fmt"
	"strings"

	bt "github.com/joeycumines/go-behaviortree"
)

// Status is the result of ticking a node. The integer values are part of the
// snapshot format and must not change.
type Status int

const (
	// Failed indicates the node did not succeed.
	Failed Status = 0
	// Success indicates the node succeeded.
	Success Status = 1
	// Running indicates the node is still in progress.
	Running Status = 2
	// NotFound is returned by lookups on names that are not in the tree. It
	// is never the status of a node.
	NotFound Status = -1
)

// String returns the human-readable label for the status.
func (s Status) String() string {
	switch s {
	case Failed:
		return "FAILED"
	case Success:
		return "SUCCESS"
	case Running:
		return "RUNNING"
	case NotFound:
		return "NOT_FOUND"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Valid reports whether s is one of the three node statuses.
func (s Status) Valid() bool {
	return s == Failed || s == Success || s == Running
}

// ParseStatus parses a status label, case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "failed", "failure", "fail":
		return Failed, nil
	case "success", "succeeded":
		return Success, nil
	case "running":
		return Running, nil
	default:
		return NotFound, fmt.Errorf("invalid status: %q", s)
	}
}

// toBT maps a Status onto the go-behaviortree status space.
func toBT(s Status) bt.Status {
	switch s {
	case Success:
		return bt.Success
	case Running:
		return bt.Running
	default:
		return bt.Failure
	}
}

// fromBT maps a go-behaviortree status back. An error from the engine is
// treated as failure, the same way the composite wrappers in go-behaviortree
// do.
func fromBT(s bt.Status, err error) Status {
	if err != nil {
		return Failed
	}
	switch s {
	case bt.Success:
		return Success
	case bt.Running:
		return Running
	default:
		return Failed
	}
}

// Kind identifies one of the five node variants.
type Kind string

const (
	KindFallback  Kind = "fallback"
	KindSequence  Kind = "sequence"
	KindParallel  Kind = "parallel"
	KindCondition Kind = "condition"
	KindAction    Kind = "action"
)

// IsLeaf reports whether nodes of this kind can't have children.
func (k Kind) IsLeaf() bool {
	return k == KindCondition || k == KindAction
}

// Valid reports whether k is one of the five known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindFallback, KindSequence, KindParallel, KindCondition, KindAction:
		return true
	}
	return false
}
