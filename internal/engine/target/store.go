package target

import (
	"sync"

	"go.trai.ch/zerr"

	"go.trai.ch/mason/internal/core/domain"
)

// Set is the content-addressed target store. Map mutation is serialised;
// target-internal fields are protected by the per-target mechanisms. The
// store owns every target; group and prerequisite links are weak.
type Set struct {
	mu      sync.RWMutex
	targets map[Key]*Target
}

// NewSet creates an empty target store.
func NewSet() *Set {
	return &Set{targets: make(map[Key]*Target)}
}

// Find looks up a target by key. If found and ext is specified (hasExt),
// the stored target's extension is refined: the first refiner wins and a
// later conflicting refinement is a fatal consistency error.
func (s *Set) Find(k Key, ext string, hasExt bool) (*Target, error) {
	s.mu.RLock()
	t := s.targets[k]
	s.mu.RUnlock()

	if t == nil {
		return nil, nil
	}
	if hasExt {
		if err := t.RefineExt(ext); err != nil {
			return nil, zerr.With(zerr.With(err, "target", t.String()), "extension", ext)
		}
	}
	return t, nil
}

// Insert returns the target for the key, creating it through the type's
// factory if absent. The second result reports whether a new target was
// created.
func (s *Set) Insert(k Key, ext string, hasExt bool) (*Target, bool, error) {
	s.mu.Lock()
	t, ok := s.targets[k]
	if !ok {
		t = newTarget(k)
		if hasExt {
			e := ext
			t.ext.Store(&e)
		}
		s.targets[k] = t
		s.mu.Unlock()
		return t, true, nil
	}
	s.mu.Unlock()

	if hasExt {
		if err := t.RefineExt(ext); err != nil {
			return nil, false, zerr.With(zerr.With(err, "target", t.String()), "extension", ext)
		}
	}
	return t, false, nil
}

// Len returns the number of stored targets.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.targets)
}

// All calls fn for every stored target until fn returns false. The
// iteration order is unspecified.
func (s *Set) All(fn func(*Target) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.targets {
		if !fn(t) {
			return
		}
	}
}

// Reset drops all op-state and prerequisite bindings, preparing the store
// for the next build invocation.
func (s *Set) Reset() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.targets {
		t.ResetOpStates()
		for _, p := range t.Prerequisites {
			p.Reset()
		}
	}
}

// FindName resolves a (type, name) pair to a unique target, used by the
// driver to resolve command-line references. More than one match is
// ErrAmbiguousTarget; no match is ErrTargetNotFound.
func (s *Set) FindName(tt *Type, name string) (*Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *Target
	for k, t := range s.targets {
		if k.Name != name || !k.Type.IsA(tt) {
			continue
		}
		if found != nil {
			return nil, zerr.With(domain.ErrAmbiguousTarget, "name", name)
		}
		found = t
	}
	if found == nil {
		return nil, zerr.With(zerr.With(domain.ErrTargetNotFound, "type", tt.Name), "name", name)
	}
	return found, nil
}
