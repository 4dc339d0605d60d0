/*
Package tree implements the behavior tree node model and its tick engine.

# Node kinds

A tree is built from five kinds of node:

  - Fallback ("?"): ticks children in order until one returns SUCCESS or
    RUNNING, which becomes its status. FAILED if every child failed, or if it
    has no children.
  - Sequence ("->"): ticks children in order until one returns FAILED or
    RUNNING. SUCCESS if every child succeeded, or if it has no children.
  - Parallel ("=N"): ticks every child, then is SUCCESS if at least N
    succeeded, FAILED if more than len(children)-N failed, else RUNNING.
  - Condition ("(name)"): a leaf whose status is set externally. Never
    RUNNING. A negated condition ("!(name)") reads as the opposite status.
  - Action ("[name]"): a leaf whose status is set externally, RUNNING by
    default. Ticking an action notifies its activation subscribers.

Fallback and Sequence delegate to bt.Selector and bt.Sequence from
github.com/joeycumines/go-behaviortree, over bt.Node adapters of the
children.

# Active path

Every tick marks the ticked node active. BehaviorTree.Tick deactivates the
whole tree first, so afterwards the active nodes are exactly those the pass
visited; children skipped by a short circuit stay inactive. Deactivation
records the previous flag, available as Node.WasActive, which lets callers
tell a new activation of an action from a continuing one.

# Snapshots

Snapshot and FromSnapshot convert a tree to and from a JSON friendly form
holding the shape, the active flags and the raw statuses. A tree rebuilt from
a snapshot serializes back to identical bytes.
*/
package tree
