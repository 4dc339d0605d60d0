package control

import (
	"maps"
	"sync"

	"github.com/joeycumines/btdsl/internal/tree"
)

// Blackboard holds the last known status of every condition pushed to the
// manager, so trees started later begin from the current world state.
//
// The zero value is ready to use and safe for concurrent use.
type Blackboard struct {
	mu   sync.RWMutex
	data map[string]tree.Status
}

// Get returns the status stored for name, or tree.NotFound.
func (b *Blackboard) Get(name string) tree.Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s, ok := b.data[name]; ok {
		return s
	}
	return tree.NotFound
}

// Set stores the status of name.
func (b *Blackboard) Set(name string, s tree.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		b.data = make(map[string]tree.Status)
	}
	b.data[name] = s
}

// Delete forgets name. Live trees keep the status they were given.
func (b *Blackboard) Delete(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, name)
}

// Snapshot returns a copy of the stored statuses. It is never nil.
func (b *Blackboard) Snapshot() map[string]tree.Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return map[string]tree.Status{}
	}
	return maps.Clone(b.data)
}

// Apply sets every stored status on the matching conditions of t.
func (b *Blackboard) Apply(t *tree.BehaviorTree) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for name, s := range b.data {
		if err := t.SetConditionStatus(name, s); err != nil {
			return err
		}
	}
	return nil
}
