package control

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/joeycumines/btdsl/internal/storage"
	"github.com/joeycumines/btdsl/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hungerTree = `;; eat when hungry, otherwise wander
?
|   ->
|   |   (Hungry)
|   |   [Eat]
|   [Wander]
`
	choresTree = `->
|   [Sweep]
|   [Mop]
`
	brokenTree = "?\n|   ->\n|   |   |   [Eat]\n"
)

type recorder struct {
	mu  sync.Mutex
	got []Activation
}

func (r *recorder) Forward(_ context.Context, a Activation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, a)
	return nil
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.got))
	for i, a := range r.got {
		out[i] = a.Key + " " + a.Action
	}
	return out
}

type forwarderFunc func(ctx context.Context, a Activation) error

func (f forwarderFunc) Forward(ctx context.Context, a Activation) error { return f(ctx, a) }

func writeTrees(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, text := range map[string]string{
		"hunger": hungerTree,
		"chores": choresTree,
		"broken": brokenTree,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".tree"), []byte(text), 0o644))
	}
	return dir
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	if opts.TreesDir == "" {
		opts.TreesDir = writeTrees(t)
	}
	opts.Logger = quietLogger()
	m, err := NewManager(opts)
	require.NoError(t, err)
	return m
}

func TestManagerLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &recorder{}
	m := newTestManager(t, Options{Forwarder: rec})

	info, err := m.Start(ctx, "hunger", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "hunger", info.Key)
	assert.Equal(t, "RUNNING", info.Status)
	assert.Equal(t, []string{"?", "->", "(Hungry)", "[Wander]"}, info.Active)
	assert.Equal(t, []string{"hunger Wander"}, rec.actions())

	require.NoError(t, m.UpdateConditions(ctx, map[string]any{"Hungry": true}))
	assert.Equal(t, []string{"hunger Wander", "hunger Eat"}, rec.actions())

	// still active, so not forwarded again
	require.NoError(t, m.UpdateConditions(ctx, map[string]any{"Hungry": true}))
	assert.Equal(t, []string{"hunger Wander", "hunger Eat"}, rec.actions())

	require.NoError(t, m.SetActionStatus(ctx, "Eat", tree.Success))
	runs := m.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "SUCCESS", runs[0].Status)

	_, err = m.Start(ctx, "hunger", nil)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	// a new run starts from the blackboard
	info, err = m.Start(ctx, "hunger", map[string]string{"size": "big"})
	require.NoError(t, err)
	assert.Equal(t, "hunger?size=big", info.Key)
	assert.Equal(t, []string{"?", "->", "(Hungry)", "[Eat]"}, info.Active)
	assert.Equal(t, "hunger?size=big Eat", rec.actions()[2])

	require.NoError(t, m.Stop(ctx, "hunger"))
	assert.ErrorIs(t, m.Stop(ctx, "hunger"), ErrNotRunning)
	runs = m.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "hunger?size=big", runs[0].Key)
}

func TestManagerRejectsBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t, Options{Forwarder: &recorder{}})

	_, err := m.Start(ctx, "hunger", nil)
	require.NoError(t, err)
	require.NoError(t, m.UpdateConditions(ctx, map[string]any{"Hungry": true}))

	err = m.UpdateConditions(ctx, map[string]any{"Hungry": false, "Thirsty": "very"})
	var uv *UnsupportedValueError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, "Thirsty", uv.Condition)

	assert.Equal(t, tree.Success, m.Blackboard().Get("Hungry"))
	assert.Equal(t, tree.NotFound, m.Blackboard().Get("Thirsty"))
	s, err := m.Snapshot("hunger")
	require.NoError(t, err)
	hungry := s.Root.Children[0].Children[0]
	assert.Equal(t, "Hungry", hungry.Name)
	assert.Equal(t, tree.Success, hungry.NodeStatus)
}

func TestManagerStartErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t, Options{})

	_, err := m.Start(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrTreeNotFound)

	for _, name := range []string{"", "..", "../hunger", `a\b`} {
		_, err = m.Start(ctx, name, nil)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}

	_, err = m.Start(ctx, "broken", nil)
	var pe *tree.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Line)
	assert.Empty(t, m.Runs())

	assert.ErrorIs(t, m.SetActionStatus(ctx, "Eat", tree.NotFound), ErrInvalidStatus)
	_, err = m.Snapshot("hunger")
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestManagerInvalidExpression(t *testing.T) {
	t.Parallel()

	_, err := NewManager(Options{Conditions: map[string]string{"Hungry": "value >"}})
	assert.Error(t, err)
}

func TestManagerForwarderReentry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var (
		m         *Manager
		forwarded []string
	)
	m = newTestManager(t, Options{Forwarder: forwarderFunc(func(ctx context.Context, a Activation) error {
		forwarded = append(forwarded, a.Action)
		return m.SetActionStatus(ctx, a.Action, tree.Success)
	})})

	info, err := m.Start(ctx, "chores", nil)
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", info.Status)
	assert.Equal(t, []string{"Sweep", "Mop"}, forwarded)

	runs := m.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "SUCCESS", runs[0].Status)
}

func TestManagerSnapshotDir(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	snapDir := t.TempDir()
	m := newTestManager(t, Options{SnapshotDir: snapDir})

	_, err := m.Start(ctx, "hunger", map[string]string{"size": "big"})
	require.NoError(t, err)
	require.NoError(t, m.UpdateConditions(ctx, map[string]any{"Hungry": 1}))

	path := storage.SnapshotPath(snapDir, "hunger?size=big")
	saved, err := storage.LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, tree.Success, saved.ConditionStatus("Hungry"))
	assert.Equal(t, tree.Running, saved.Status())

	require.NoError(t, m.Stop(ctx, "hunger?size=big"))
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
