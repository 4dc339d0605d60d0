package tree

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// patrol builds:
//
//	?
//	|   ->
//	|   |   (enemy visible)
//	|   |   [attack]
//	|   ->
//	|   |   !(at post)
//	|   |   [walk to post]
//	|   [idle]
func patrol() *BehaviorTree {
	return New(NewFallback(
		NewSequence(
			NewCondition("enemy visible"),
			NewAction("attack"),
		),
		NewSequence(
			NewCondition("at post", WithNegation(true)),
			NewAction("walk to post"),
		),
		NewAction("idle"),
	))
}

func names(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Label()
	}
	return out
}

func TestBehaviorTree_TickActivePath(t *testing.T) {
	t.Parallel()

	bt := patrol()
	require.NoError(t, bt.Err())

	require.Equal(t, Running, bt.Tick())
	assert.Equal(t, []string{"?", "->", "(enemy visible)", "->", "!(at post)", "[walk to post]"}, names(bt.ActivePath()))

	require.NoError(t, bt.SetConditionStatus("enemy visible", Success))
	require.Equal(t, Running, bt.Tick())
	assert.Equal(t, []string{"?", "->", "(enemy visible)", "[attack]"}, names(bt.ActivePath()))

	walk := bt.ActionNodes("walk to post")[0]
	assert.False(t, walk.Active())
	assert.True(t, walk.WasActive())
}

func TestBehaviorTree_Lookups(t *testing.T) {
	t.Parallel()

	bt := patrol()
	assert.Equal(t, Failed, bt.ConditionStatus("at post"))
	assert.Equal(t, Running, bt.ActionStatus("idle"))
	assert.Equal(t, NotFound, bt.ConditionStatus("missing"))
	assert.Equal(t, NotFound, bt.ActionStatus("missing"))

	// setters on unknown names are no-ops
	require.NoError(t, bt.SetConditionStatus("missing", Success))
	require.NoError(t, bt.SetActionStatus("missing", Success))

	require.NoError(t, bt.SetConditionStatus("at post", Success))
	assert.Equal(t, Success, bt.ConditionStatus("at post"), "lookups report the raw status")
	assert.Equal(t, Failed, bt.ConditionNodes("at post")[0].Status())

	require.Error(t, bt.SetConditionStatus("at post", Running))
	require.NoError(t, bt.SetActionStatus("idle", Failed))
	assert.Equal(t, Failed, bt.ActionStatus("idle"))

	assert.Equal(t, []string{"at post", "enemy visible"}, bt.Conditions())
	assert.Equal(t, []string{"attack", "idle", "walk to post"}, bt.Actions())
}

func TestBehaviorTree_SharedNames(t *testing.T) {
	t.Parallel()

	bt := New(NewSequence(NewCondition("x"), NewCondition("x", WithNegation(true))))
	require.Len(t, bt.ConditionNodes("x"), 2)

	require.Equal(t, Failed, bt.Tick())
	require.NoError(t, bt.SetConditionStatus("x", Success))
	for _, n := range bt.ConditionNodes("x") {
		assert.Equal(t, Success, n.RawStatus())
	}
	require.Equal(t, Failed, bt.Tick())
}

func TestBehaviorTree_OnActionActivation(t *testing.T) {
	t.Parallel()

	bt := patrol()
	var activated []string
	bt.OnActionActivation(func(n *Node) { activated = append(activated, n.Name()) })

	bt.Tick()
	assert.Equal(t, []string{"walk to post"}, activated)

	require.NoError(t, bt.SetConditionStatus("at post", Success))
	bt.Tick()
	assert.Equal(t, []string{"walk to post", "idle"}, activated)
}

func TestBehaviorTree_ReentrantTick(t *testing.T) {
	t.Parallel()

	bt := New(NewFallback(
		NewSequence(NewCondition("hungry"), NewAction("eat")),
		NewAction("wander"),
	))

	var activated []string
	bt.OnActionActivation(func(n *Node) {
		activated = append(activated, n.Name())
		if n.Name() == "wander" && bt.ConditionStatus("hungry") != Success {
			// wandering makes us hungry straight away
			require.NoError(t, bt.SetConditionStatus("hungry", Success))
			bt.Tick()
		}
	})

	require.Equal(t, Running, bt.Tick())
	assert.Equal(t, []string{"wander", "eat"}, activated)
	assert.Equal(t, []string{"?", "->", "(hungry)", "[eat]"}, names(bt.ActivePath()))
	assert.False(t, bt.ActionNodes("wander")[0].Active())
}

func TestBehaviorTree_ReentrantTickInParallel(t *testing.T) {
	t.Parallel()

	par, err := NewParallel(1, NewAction("first"), NewAction("second"))
	require.NoError(t, err)
	bt := New(NewFallback(NewCondition("done"), par))

	var nested bool
	bt.OnActionActivation(func(n *Node) {
		if n.Name() == "first" && !nested {
			nested = true
			require.NoError(t, bt.SetConditionStatus("done", Success))
			bt.Tick()
		}
	})

	require.Equal(t, Success, bt.Tick())
	assert.Equal(t, []string{"?", "(done)"}, names(bt.ActivePath()))
	assert.False(t, bt.ActionNodes("second")[0].Active(), "the superseded pass must stop ticking")
}

func TestNode_ReentrantDeactivateAndTick(t *testing.T) {
	t.Parallel()

	hunger := NewCondition("have hunger", WithNegation(true), WithStatus(Success))
	eat := NewAction("eat")
	root := NewFallback(hunger, eat)
	eat.OnActivation(func(*Node) {
		if hunger.RawStatus() == Success {
			require.NoError(t, hunger.SetStatus(Failed))
			root.Deactivate()
			root.Tick()
		}
	})

	root.Deactivate()
	assert.Equal(t, Success, root.Tick())
	assert.Equal(t, Success, root.Status())
	assert.True(t, hunger.Active())
	assert.False(t, eat.Active(), "the nested pass stopped at the condition")
}

func TestNode_ReentrantTickOfSubtree(t *testing.T) {
	t.Parallel()

	done := NewCondition("done")
	first, second := NewAction("first"), NewAction("second")
	seq := NewSequence(first, second)
	root := NewFallback(done, seq)
	bt := New(root)

	var nested bool
	first.OnActivation(func(*Node) {
		if !nested {
			nested = true
			require.NoError(t, done.SetStatus(Success))
			bt.Tick()
		}
	})
	require.NoError(t, first.SetStatus(Success))

	// ticking only the sequence is still superseded by a whole-tree pass
	root.Deactivate()
	seq.Tick()
	assert.False(t, second.Active(), "the superseded pass must stop ticking")
	assert.Equal(t, []string{"?", "(done)"}, names(bt.ActivePath()))
	assert.Equal(t, Success, bt.Status())
}

func TestBehaviorTree_Failed(t *testing.T) {
	t.Parallel()

	bt := NewFailed(3, "boom")
	assert.Nil(t, bt.Root())
	assert.Equal(t, Failed, bt.Tick())
	assert.Nil(t, bt.ActivePath())

	var pe *ParseError
	require.True(t, errors.As(bt.Err(), &pe))
	assert.Equal(t, 3, pe.Line)
	assert.Equal(t, "line 3: boom", pe.Error())

	assert.Equal(t, "tree must have at least one node but has none", New(nil).Error())
}

func TestBehaviorTree_IDs(t *testing.T) {
	t.Parallel()

	a, b := patrol(), patrol()
	assert.Greater(t, b.ID(), a.ID())
}

func TestSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()

	par, err := NewParallel(2, NewCondition("a", WithStatus(Success)), NewAction("b"), NewAction("c", WithStatus(Failed)))
	require.NoError(t, err)
	original := New(NewSequence(par, patrol().Root(), NewFallback()))
	original.Tick()
	original.Tick()

	first, err := json.Marshal(original)
	require.NoError(t, err)

	var restored BehaviorTree
	require.NoError(t, json.Unmarshal(first, &restored))
	second, err := json.Marshal(&restored)
	require.NoError(t, err)
	require.JSONEq(t, string(first), string(second))
	require.Equal(t, string(first), string(second))

	// ticking both again keeps them identical
	original.Tick()
	restored.Tick()
	first, err = json.Marshal(original)
	require.NoError(t, err)
	second, err = json.Marshal(&restored)
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))

	assert.Equal(t, original.Conditions(), restored.Conditions())
	assert.Equal(t, original.Actions(), restored.Actions())
}

func TestSnapshot_Shape(t *testing.T) {
	t.Parallel()

	bt := New(NewFallback(NewCondition("x", WithNegation(true)), NewAction("y")))
	bt.Tick()

	data, err := json.Marshal(bt)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"root": {
			"name": "?", "kind": "fallback", "active": true, "wasActive": false,
			"nodeStatus": 1, "hasNot": false,
			"children": [
				{"name": "x", "kind": "condition", "children": null, "active": true,
				 "wasActive": false, "nodeStatus": 0, "hasNot": true},
				{"name": "y", "kind": "action", "children": null, "active": false,
				 "wasActive": false, "nodeStatus": 2, "hasNot": false}
			]
		},
		"line": 0
	}`, string(data))
}

func TestSnapshot_Errors(t *testing.T) {
	t.Parallel()

	for name, input := range map[string]string{
		"unknown kind":      `{"root": {"name": "x", "kind": "decorator", "nodeStatus": 0}}`,
		"leaf children":     `{"root": {"name": "x", "kind": "action", "nodeStatus": 0, "children": [{"name": "y", "kind": "action", "nodeStatus": 0}]}}`,
		"zero threshold":    `{"root": {"name": "=", "kind": "parallel", "nodeStatus": 0, "successCount": 0}}`,
		"negated action":    `{"root": {"name": "x", "kind": "action", "nodeStatus": 0, "hasNot": true}}`,
		"bad status":        `{"root": {"name": "x", "kind": "action", "nodeStatus": 5}}`,
		"no root, no error": `{"line": 0}`,
		"null child":        `{"root": {"name": "?", "kind": "fallback", "nodeStatus": 0, "children": [null]}}`,
		"running condition": `{"root": {"name": "x", "kind": "condition", "nodeStatus": 2}}`,
	} {
		t.Run(name, func(t *testing.T) {
			var bt BehaviorTree
			require.Error(t, json.Unmarshal([]byte(input), &bt))
		})
	}

	var bt BehaviorTree
	err := json.Unmarshal([]byte(`{"root": {"name": "x", "kind": "decorator", "nodeStatus": 0}}`), &bt)
	require.ErrorIs(t, err, ErrUnknownKind)

	err = json.Unmarshal([]byte(`{"root": {"name": "x", "kind": "condition", "nodeStatus": 2}}`), &bt)
	require.EqualError(t, err, `root: condition "x" can't be RUNNING`)
}

func TestSnapshot_FailedTree(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(NewFailed(4, "Tree has more than one root node"))
	require.NoError(t, err)
	require.JSONEq(t, `{"root": null, "line": 4, "error": "Tree has more than one root node"}`, string(data))

	var bt BehaviorTree
	require.NoError(t, json.Unmarshal(data, &bt))
	assert.Nil(t, bt.Root())
	assert.Equal(t, 4, bt.Line())
	assert.Equal(t, "Tree has more than one root node", bt.Error())
}
