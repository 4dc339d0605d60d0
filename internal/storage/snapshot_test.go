package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/joeycumines/btdsl/internal/dsl"
	"github.com/joeycumines/btdsl/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hunger = `?
|   ->
|   |   (Hungry)
|   |   (Have food)
|   |   [Eat]
|   [Wander]
`

func TestSaveLoadSnapshot(t *testing.T) {
	t.Parallel()

	bt := dsl.Parse(hunger)
	require.NoError(t, bt.Err())
	require.NoError(t, bt.SetConditionStatus("Hungry", tree.Success))
	require.NoError(t, bt.SetConditionStatus("Have food", tree.Success))
	bt.Tick()

	path := filepath.Join(t.TempDir(), "snapshots", "hunger.json")
	require.NoError(t, SaveSnapshot(path, bt))

	restored, err := LoadSnapshot(path)
	require.NoError(t, err)

	want, err := json.Marshal(bt)
	require.NoError(t, err)
	got, err := json.Marshal(restored)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	assert.Equal(t, bt.Tick(), restored.Tick())
	want, _ = json.Marshal(bt)
	got, _ = json.Marshal(restored)
	assert.Equal(t, string(want), string(got))
}

func TestSaveLoadFailedTree(t *testing.T) {
	t.Parallel()

	bt := dsl.Parse("?\n?\n")
	require.Error(t, bt.Err())

	path := filepath.Join(t.TempDir(), "failed.json")
	require.NoError(t, SaveSnapshot(path, bt))

	restored, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Nil(t, restored.Root())
	assert.Equal(t, bt.Line(), restored.Line())
	assert.Equal(t, bt.Error(), restored.Error())
}

func TestLoadSnapshotErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := LoadSnapshot(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("{"), 0o644))
	_, err = LoadSnapshot(garbage)
	assert.ErrorContains(t, err, "failed to decode snapshot")

	unknown := filepath.Join(dir, "unknown.json")
	require.NoError(t, os.WriteFile(unknown, []byte(`{"root":{"name":"x","kind":"decorator"},"line":0}`), 0o644))
	_, err = LoadSnapshot(unknown)
	assert.ErrorIs(t, err, tree.ErrUnknownKind)
}

func TestSnapshotPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	assert.Equal(t, filepath.Join(dir, "eat%3Fsize=big.json"), SnapshotPath(dir, "eat?size=big"))
	assert.Equal(t, filepath.Join(dir, "a%2Fb.json"), SnapshotPath(dir, "a/b"))

	require.NoError(t, RemoveSnapshot(dir, "absent"))
	path := SnapshotPath(dir, "eat")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	require.NoError(t, RemoveSnapshot(dir, "eat"))
	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
