package tree

import (
	"testing"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actions(statuses ...Status) []*Node {
	nodes := make([]*Node, len(statuses))
	for i, s := range statuses {
		nodes[i] = NewAction(string(rune('a'+i)), WithStatus(s))
	}
	return nodes
}

func activeFlags(nodes []*Node) []bool {
	flags := make([]bool, len(nodes))
	for i, n := range nodes {
		flags[i] = n.Active()
	}
	return flags
}

func TestFallback_Tick(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name     string
		children []Status
		want     Status
		active   []bool
	}{
		{"no children", nil, Failed, []bool{}},
		{"all failed", []Status{Failed, Failed}, Failed, []bool{true, true}},
		{"short circuit running", []Status{Failed, Running, Success}, Running, []bool{true, true, false}},
		{"short circuit success", []Status{Success, Failed}, Success, []bool{true, false}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			children := actions(tc.children...)
			n := NewFallback(children...)
			require.Equal(t, tc.want, n.Tick())
			assert.Equal(t, tc.want, n.Status())
			assert.True(t, n.Active())
			assert.Equal(t, tc.active, activeFlags(children))
		})
	}
}

func TestSequence_Tick(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name     string
		children []Status
		want     Status
		active   []bool
	}{
		{"no children", nil, Success, []bool{}},
		{"all succeeded", []Status{Success, Success}, Success, []bool{true, true}},
		{"short circuit failed", []Status{Success, Failed, Success}, Failed, []bool{true, true, false}},
		{"short circuit running", []Status{Running, Success}, Running, []bool{true, false}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			children := actions(tc.children...)
			n := NewSequence(children...)
			require.Equal(t, tc.want, n.Tick())
			assert.Equal(t, tc.active, activeFlags(children))
		})
	}
}

func TestParallel_Tick(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name      string
		threshold int
		children  []Status
		want      Status
	}{
		{"no children", 1, nil, Failed},
		{"threshold met", 2, []Status{Success, Failed, Success}, Success},
		{"too many failures", 2, []Status{Success, Failed, Failed}, Failed},
		{"undecided", 2, []Status{Success, Failed, Running}, Running},
		{"all running", 1, []Status{Running, Running}, Running},
		{"threshold above child count", 3, []Status{Success, Success}, Failed},
	} {
		t.Run(tc.name, func(t *testing.T) {
			children := actions(tc.children...)
			n, err := NewParallel(tc.threshold, children...)
			require.NoError(t, err)
			require.Equal(t, tc.want, n.Tick())
			for _, c := range children {
				assert.True(t, c.Active(), "parallel must tick every child")
			}
		})
	}
}

func TestNewParallel_InvalidThreshold(t *testing.T) {
	t.Parallel()

	_, err := NewParallel(0)
	require.Error(t, err)
	_, err = NewParallel(-1)
	require.Error(t, err)
}

func TestCondition_Negation(t *testing.T) {
	t.Parallel()

	c := NewCondition("x", WithNegation(true))
	assert.Equal(t, Failed, c.RawStatus())
	assert.Equal(t, Success, c.Status())
	assert.Equal(t, Success, c.Tick())
	assert.True(t, c.Active())

	require.NoError(t, c.SetStatus(Success))
	assert.Equal(t, Success, c.RawStatus())
	assert.Equal(t, Failed, c.Tick())

	require.Error(t, c.SetStatus(Running))
	assert.Equal(t, Success, c.RawStatus())
}

func TestNode_Defaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Failed, NewCondition("c").Status())
	assert.Equal(t, Running, NewAction("a").Status())
	assert.Equal(t, Success, NewCondition("c", WithStatus(Success)).Status())
	assert.Equal(t, Failed, NewAction("a", WithStatus(Failed)).Status())

	assert.Panics(t, func() { NewAction("a", WithNegation(true)) })
	assert.Panics(t, func() { NewCondition("c", WithStatus(Running)) })
	assert.Panics(t, func() { NewCondition("c", WithActivation(func(*Node) {})) })
}

func TestNode_AddChild(t *testing.T) {
	t.Parallel()

	require.Error(t, NewCondition("c").AddChild(NewAction("a")))
	require.Error(t, NewAction("a").AddChild(NewAction("b")))

	fb := NewFallback()
	require.NoError(t, fb.AddChild(NewAction("a")))
	require.Len(t, fb.Children(), 1)

	require.Error(t, fb.SetStatus(Success))
}

func TestNode_Labels(t *testing.T) {
	t.Parallel()

	par, err := NewParallel(2)
	require.NoError(t, err)
	assert.Equal(t, "?", NewFallback().Label())
	assert.Equal(t, "->", NewSequence().Label())
	assert.Equal(t, "=2", par.Label())
	assert.Equal(t, "(c)", NewCondition("c").Label())
	assert.Equal(t, "!(c)", NewCondition("c", WithNegation(true)).Label())
	assert.Equal(t, "[a]", NewAction("a").Label())
}

func TestAction_ActivationCallback(t *testing.T) {
	t.Parallel()

	var calls []*Node
	a := NewAction("a", WithActivation(func(n *Node) { calls = append(calls, n) }))

	a.Tick()
	require.Len(t, calls, 1)
	assert.Same(t, a, calls[0])

	// no deactivate in between: the callback fires again
	a.Tick()
	assert.Len(t, calls, 2)

	a.Deactivate()
	assert.Len(t, calls, 2)
	assert.True(t, a.WasActive())
	assert.False(t, a.Active())
}

func TestDeactivate(t *testing.T) {
	t.Parallel()

	children := actions(Success, Running)
	root := NewSequence(children...)
	root.Tick()
	require.Equal(t, []bool{true, true}, activeFlags(children))

	root.Deactivate()
	assert.False(t, root.Active())
	assert.True(t, root.WasActive())
	assert.Equal(t, []bool{false, false}, activeFlags(children))
	assert.Equal(t, Running, root.Status(), "deactivate must not touch statuses")

	root.Deactivate()
	assert.False(t, root.WasActive())
}

func TestNode_BT(t *testing.T) {
	t.Parallel()

	children := actions(Failed, Success)
	root := NewFallback(children...)

	status, err := root.BT().Tick()
	require.NoError(t, err)
	assert.Equal(t, bt.Success, status)
	assert.True(t, root.Active())

	status, err = bt.Sequence([]bt.Node{children[0].BT(), children[1].BT()})
	require.NoError(t, err)
	assert.Equal(t, bt.Failure, status)
}

func TestStatus_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "FAILED", Failed.String())
	assert.Equal(t, "SUCCESS", Success.String())
	assert.Equal(t, "RUNNING", Running.String())
	assert.Equal(t, "NOT_FOUND", NotFound.String())
	assert.Equal(t, "Status(7)", Status(7).String())
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Status{
		"FAILED":  Failed,
		"failure": Failed,
		"Success": Success,
		"running": Running,
	} {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStatus("maybe")
	require.Error(t, err)
}
