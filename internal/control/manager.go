package control

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joeycumines/btdsl/internal/dsl"
	"github.com/joeycumines/btdsl/internal/storage"
	"github.com/joeycumines/btdsl/internal/tree"
)

const treeExt = ".tree"

var (
	// ErrAlreadyRunning is returned by Start when the key is live.
	ErrAlreadyRunning = errors.New("tree is already running")
	// ErrNotRunning is returned for keys with no live tree.
	ErrNotRunning = errors.New("tree is not running")
	// ErrTreeNotFound is returned by Start when the action has no tree file.
	ErrTreeNotFound = errors.New("no tree for action")
	// ErrInvalidName is returned for action names that are not a plain
	// file name.
	ErrInvalidName = errors.New("invalid action name")
	// ErrInvalidStatus is returned by SetActionStatus for NOT_FOUND and
	// out of range statuses.
	ErrInvalidStatus = errors.New("invalid action status")
)

// Options configures a Manager.
type Options struct {
	// TreesDir holds one <action>.tree file per startable action.
	TreesDir string
	// SnapshotDir, if set, receives a snapshot of each live tree after every
	// tick.
	SnapshotDir string
	// Conditions maps condition names to translation expressions.
	Conditions map[string]string
	// Forwarder receives activations. Nil logs them.
	Forwarder Forwarder
	Logger    *slog.Logger
}

// RunInfo describes a live tree.
type RunInfo struct {
	ID     string            `json:"id"`
	Key    string            `json:"key"`
	Action string            `json:"action"`
	Params map[string]string `json:"params,omitempty"`
	Status string            `json:"status"`
	// Active lists the labels on the active path.
	Active []string `json:"active"`
}

type run struct {
	id      string
	key     string
	action  string
	params  map[string]string
	tree    *tree.BehaviorTree
	pending []Activation
}

func (r *run) info() RunInfo {
	path := r.tree.ActivePath()
	active := make([]string, len(path))
	for i, n := range path {
		active[i] = n.Label()
	}
	return RunInfo{
		ID:     r.id,
		Key:    r.key,
		Action: r.action,
		Params: r.params,
		Status: r.tree.Status().String(),
		Active: active,
	}
}

// Manager owns the live trees. A single mutex serializes every update, so
// ticks never overlap. Forwarding happens after the mutex is released.
type Manager struct {
	mu         sync.Mutex
	opts       Options
	logger     *slog.Logger
	translator *Translator
	forwarder  Forwarder
	board      Blackboard
	runs       map[string]*run
}

// NewManager validates opts and compiles the condition expressions.
func NewManager(opts Options) (*Manager, error) {
	translator, err := NewTranslator(opts.Conditions)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	forwarder := opts.Forwarder
	if forwarder == nil {
		forwarder = LogForwarder{Logger: logger}
	}
	return &Manager{
		opts:       opts,
		logger:     logger,
		translator: translator,
		forwarder:  forwarder,
		runs:       make(map[string]*run),
	}, nil
}

// Blackboard exposes the last known condition statuses.
func (m *Manager) Blackboard() *Blackboard { return &m.board }

// Start parses <TreesDir>/<action>.tree, seeds it from the blackboard and
// ticks it once. Parse failures are returned as *tree.ParseError.
func (m *Manager) Start(ctx context.Context, action string, params map[string]string) (RunInfo, error) {
	if action == "" || action == "." || action == ".." || strings.ContainsAny(action, `/\`) {
		return RunInfo{}, fmt.Errorf("%w: %q", ErrInvalidName, action)
	}
	key := Key(action, params)

	m.mu.Lock()
	if _, ok := m.runs[key]; ok {
		m.mu.Unlock()
		return RunInfo{}, fmt.Errorf("%w: %s", ErrAlreadyRunning, key)
	}

	path := filepath.Join(m.opts.TreesDir, action+treeExt)
	t, err := dsl.ParseFile(path)
	if err != nil {
		m.mu.Unlock()
		if errors.Is(err, fs.ErrNotExist) {
			return RunInfo{}, fmt.Errorf("%w: %s", ErrTreeNotFound, action)
		}
		return RunInfo{}, err
	}
	if err := t.Err(); err != nil {
		m.mu.Unlock()
		m.logger.DebugContext(ctx, "tree failed to parse", "path", path, "error", err)
		return RunInfo{}, err
	}
	if err := m.board.Apply(t); err != nil {
		m.mu.Unlock()
		return RunInfo{}, err
	}

	r := &run{
		id:     uuid.NewString(),
		key:    key,
		action: action,
		params: maps.Clone(params),
		tree:   t,
	}
	t.OnActionActivation(func(n *tree.Node) {
		if !n.WasActive() {
			r.pending = append(r.pending, Activation{Run: r.id, Key: r.key, Action: n.Name()})
		}
	})
	m.runs[key] = r
	m.tickLocked(ctx, r)
	info := r.info()
	pending := m.drainLocked([]*run{r})
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "tree started", "run", info.ID, "key", key, "status", info.Status)
	m.forward(ctx, pending)
	return info, nil
}

// Stop discards the tree for key.
func (m *Manager) Stop(ctx context.Context, key string) error {
	m.mu.Lock()
	r, ok := m.runs[key]
	if ok {
		delete(m.runs, key)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, key)
	}
	if m.opts.SnapshotDir != "" {
		if err := storage.RemoveSnapshot(m.opts.SnapshotDir, key); err != nil {
			m.logger.WarnContext(ctx, "failed to remove snapshot", "key", key, "error", err)
		}
	}
	m.logger.InfoContext(ctx, "tree stopped", "run", r.id, "key", key)
	return nil
}

// UpdateConditions translates every value, then stores the statuses and
// re-ticks all live trees. If any value can't be translated nothing is
// applied and the first failure, by condition name, is returned.
func (m *Manager) UpdateConditions(ctx context.Context, values map[string]any) error {
	statuses := make(map[string]tree.Status, len(values))
	for _, name := range slices.Sorted(maps.Keys(values)) {
		s, err := m.translator.Translate(name, values[name])
		if err != nil {
			return err
		}
		statuses[name] = s
	}

	m.mu.Lock()
	for name, s := range statuses {
		m.board.Set(name, s)
	}
	runs := m.sortedLocked()
	for _, r := range runs {
		for name, s := range statuses {
			if err := r.tree.SetConditionStatus(name, s); err != nil {
				m.mu.Unlock()
				return err
			}
		}
		m.tickLocked(ctx, r)
	}
	pending := m.drainLocked(runs)
	m.mu.Unlock()

	m.forward(ctx, pending)
	return nil
}

// SetActionStatus records downstream progress of every action named name
// and re-ticks the trees containing it.
func (m *Manager) SetActionStatus(ctx context.Context, name string, s tree.Status) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidStatus, s)
	}

	m.mu.Lock()
	var touched []*run
	for _, r := range m.sortedLocked() {
		if r.tree.ActionStatus(name) == tree.NotFound {
			continue
		}
		if err := r.tree.SetActionStatus(name, s); err != nil {
			m.mu.Unlock()
			return err
		}
		m.tickLocked(ctx, r)
		touched = append(touched, r)
	}
	pending := m.drainLocked(touched)
	m.mu.Unlock()

	m.forward(ctx, pending)
	return nil
}

// Runs describes every live tree, sorted by key.
func (m *Manager) Runs() []RunInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := m.sortedLocked()
	out := make([]RunInfo, len(runs))
	for i, r := range runs {
		out[i] = r.info()
	}
	return out
}

// Snapshot returns the serialized form of the tree for key.
func (m *Manager) Snapshot(key string) (*tree.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRunning, key)
	}
	return r.tree.Snapshot(), nil
}

func (m *Manager) sortedLocked() []*run {
	keys := slices.Sorted(maps.Keys(m.runs))
	runs := make([]*run, len(keys))
	for i, k := range keys {
		runs[i] = m.runs[k]
	}
	return runs
}

func (m *Manager) tickLocked(ctx context.Context, r *run) {
	status := r.tree.Tick()
	m.logger.DebugContext(ctx, "tree ticked", "key", r.key, "status", status.String())
	if m.opts.SnapshotDir == "" {
		return
	}
	if err := storage.SaveSnapshot(storage.SnapshotPath(m.opts.SnapshotDir, r.key), r.tree); err != nil {
		m.logger.WarnContext(ctx, "failed to save snapshot", "key", r.key, "error", err)
	}
}

func (m *Manager) drainLocked(runs []*run) []Activation {
	var out []Activation
	for _, r := range runs {
		out = append(out, r.pending...)
		r.pending = nil
	}
	return out
}

// forward sends activations in order. Failures are logged, they do not undo
// the tick that produced them.
func (m *Manager) forward(ctx context.Context, activations []Activation) {
	for _, a := range activations {
		if err := m.forwarder.Forward(ctx, a); err != nil {
			m.logger.ErrorContext(ctx, "failed to forward activation", "run", a.Run, "key", a.Key, "action", a.Action, "error", err)
		}
	}
}
