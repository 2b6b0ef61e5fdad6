package target

import "sync"

// TypeMap is the target type registry, consulted by the buildfile loader
// and by rules that reverse-map extensions to types.
type TypeMap struct {
	mu sync.RWMutex
	m  map[string]*Type
}

// NewTypeMap creates a registry with the builtin types registered.
func NewTypeMap() *TypeMap {
	tm := &TypeMap{m: make(map[string]*Type)}
	for _, t := range []*Type{Root, MtimeBased, File, Dir, FsDir, Alias} {
		tm.m[t.Name] = t
	}
	return tm
}

// Register adds a type. Later registrations win, which lets a module
// refine a builtin.
func (tm *TypeMap) Register(t *Type) {
	tm.mu.Lock()
	tm.m[t.Name] = t
	tm.mu.Unlock()
}

// Lookup finds a type by name.
func (tm *TypeMap) Lookup(name string) (*Type, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	t, ok := tm.m[name]
	return t, ok
}
