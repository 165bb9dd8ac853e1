package ninep

import (
	"errors"
	"sync"
	"testing"
)

func TestExclusiveRegistry_Conflict(t *testing.T) {
	r := NewExclusiveRegistry()

	if err := r.Acquire(7); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	if err := r.Acquire(7); !errors.Is(err, ErrExclusiveConflict) {
		t.Fatalf("expected ErrExclusiveConflict, got %v", err)
	}

	// A different identity is unaffected.
	if err := r.Acquire(8); err != nil {
		t.Fatalf("unrelated acquire failed: %v", err)
	}

	r.Release(7)
	if err := r.Acquire(7); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestExclusiveRegistry_ReleaseIdempotent(t *testing.T) {
	r := NewExclusiveRegistry()

	// Releasing an identity that was never held must not panic or block.
	r.Release(1)
	r.Release(1)

	if err := r.Acquire(1); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
}

func TestExclusiveRegistry_Forget(t *testing.T) {
	r := NewExclusiveRegistry()

	if err := r.Acquire(3); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// Forgetting drops all state, as when the entity is removed.
	r.Forget(3)
	if err := r.Acquire(3); err != nil {
		t.Fatalf("acquire after forget failed: %v", err)
	}
}

func TestExclusiveRegistry_ReleaseLeavesNoState(t *testing.T) {
	r := NewExclusiveRegistry()

	// A fid releasing its hold after the entity was removed must not
	// resurrect an entry for the dead identity; paths are never reused, so
	// any entry left behind would stay forever.
	if err := r.Acquire(12); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	r.Forget(12)
	r.Release(12)

	if len(r.holders) != 0 {
		t.Fatalf("expected an empty registry, found %d entries", len(r.holders))
	}

	// A release with no prior acquire leaves nothing behind either.
	r.Release(13)
	if len(r.holders) != 0 {
		t.Fatalf("release created %d entries", len(r.holders))
	}
}

func TestExclusiveRegistry_Concurrent(t *testing.T) {
	r := NewExclusiveRegistry()

	var wg sync.WaitGroup
	won := make(chan struct{}, 64)

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Acquire(99); err == nil {
				won <- struct{}{}
			}
		}()
	}

	wg.Wait()
	close(won)

	count := 0
	for range won {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
}
