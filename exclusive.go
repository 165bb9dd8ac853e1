package ninep

import (
	"fmt"
	"sync"
)

// ExclusiveRegistry tracks which identities are currently held open by a fid,
// keyed by qid path. Exclusive-use files may have at most one holder at any
// time, and that invariant spans every fid naming the same path, so the state
// has to live outside any single File instance. Backends share one registry
// per filesystem instance.
type ExclusiveRegistry struct {
	mu      sync.Mutex
	holders map[uint64]*holder
}

type holder struct {
	// Guards this identity only; the registry mutex is held just long
	// enough to find or insert the entry.
	mu   sync.Mutex
	open bool
}

// NewExclusiveRegistry creates an empty registry.
func NewExclusiveRegistry() *ExclusiveRegistry {
	return &ExclusiveRegistry{
		holders: make(map[uint64]*holder),
	}
}

func (r *ExclusiveRegistry) holder(path uint64) *holder {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, exists := r.holders[path]
	if !exists {
		h = &holder{}
		r.holders[path] = h
	}
	return h
}

// Acquire claims the identity for one fid. Returns ErrExclusiveConflict if
// another fid already holds it open.
func (r *ExclusiveRegistry) Acquire(path uint64) error {
	h := r.holder(path)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.open {
		return fmt.Errorf("%w: path %#x", ErrExclusiveConflict, path)
	}

	h.open = true
	return nil
}

// Release frees the identity. Releasing an identity that is not held, or
// that was already forgotten, is a no-op, which keeps unconditional clunk
// paths simple. It never inserts an entry, so a release arriving after the
// entity's removal leaves no state behind.
func (r *ExclusiveRegistry) Release(path uint64) {
	r.mu.Lock()
	h, exists := r.holders[path]
	r.mu.Unlock()

	if !exists {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.open = false
}

// Forget drops all state for an identity. Called when the entity it names is
// removed, so a later entity reusing the map slot starts clean.
func (r *ExclusiveRegistry) Forget(path uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.holders, path)
}
