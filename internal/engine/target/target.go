package target

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.trai.ch/mason/internal/core/domain"
)

// Timestamp sentinels for file targets. A zero time means the mtime has not
// been loaded yet; Nonexistent marks a file that is known to be absent (or
// is forced to look absent to require a rebuild).
var (
	TimeUnknown     = time.Time{}
	TimeNonexistent = time.Unix(0, 0).UTC()
)

// Key identifies a target in the store. The extension is not part of the
// key: it lives on the target and may be refined once (see Target.RefineExt).
type Key struct {
	Type *Type
	Dir  string // out directory the target is built in
	Out  string // explicit out directory for src-context references
	Name string
}

// Target is a named buildable or lookup-able entity. Identity fields are
// immutable once the target is inserted into the store.
type Target struct {
	Type *Type
	Dir  string
	Out  string
	Name string

	// ext is nil while the extension is unspecified and is refined to a
	// concrete value at most once. An empty string is an explicitly empty
	// extension, distinct from unspecified.
	ext atomic.Pointer[string]

	// Prerequisites are the author-declared edges, fixed after load.
	Prerequisites []*Prerequisite

	// Group links a member back to its group; Members lists a group's
	// members. AdhocMember chains ad-hoc group members. These are weak
	// relations: the store owns every target.
	Group       *Target
	Members     []*Target
	AdhocMember *Target

	mu    sync.Mutex
	vars  map[domain.Name]any
	path  string
	mtime time.Time

	// states holds per-action op-state, recreated per build invocation.
	statesMu sync.Mutex
	states   map[domain.Action]*OpState
}

func newTarget(k Key) *Target {
	if k.Type.Factory != nil {
		return k.Type.Factory(k)
	}
	return &Target{Type: k.Type, Dir: k.Dir, Out: k.Out, Name: k.Name}
}

// Key returns the target's store key.
func (t *Target) Key() Key {
	return Key{Type: t.Type, Dir: t.Dir, Out: t.Out, Name: t.Name}
}

// Ext returns the target's extension and whether it has been specified.
func (t *Target) Ext() (string, bool) {
	if p := t.ext.Load(); p != nil {
		return *p, true
	}
	return "", false
}

// RefineExt fixes the target's extension. The first refiner wins; a second
// refinement must carry the same value or ErrExtensionConflict is returned.
func (t *Target) RefineExt(ext string) error {
	e := ext
	if t.ext.CompareAndSwap(nil, &e) {
		return nil
	}
	if *t.ext.Load() != ext {
		return domain.ErrExtensionConflict
	}
	return nil
}

// Path returns the target's on-disk path, empty if not assigned yet.
func (t *Target) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.path
}

// SetPath assigns the on-disk path. Assigning a different path to a target
// that already has one is ignored in favour of the first assignment; the
// caller is expected to pass equal paths.
func (t *Target) SetPath(p string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.path == "" {
		t.path = p
	}
}

// Mtime returns the cached modification time (TimeUnknown if not loaded).
func (t *Target) Mtime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mtime
}

// SetMtime caches the modification time.
func (t *Target) SetMtime(ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mtime = ts
}

// Var returns a target-local variable value.
func (t *Target) Var(n domain.Name) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.vars[n]
	return v, ok
}

// SetVar assigns a target-local variable. Callers mutate variables during
// load, or during match while holding the target lock.
func (t *Target) SetVar(n domain.Name, v any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.vars == nil {
		t.vars = make(map[domain.Name]any)
	}
	t.vars[n] = v
}

// OpState returns the op-state for the action, creating it on first use.
func (t *Target) OpState(a domain.Action) *OpState {
	t.statesMu.Lock()
	defer t.statesMu.Unlock()
	if t.states == nil {
		t.states = make(map[domain.Action]*OpState)
	}
	s, ok := t.states[a]
	if !ok {
		s = newOpState()
		t.states[a] = s
	}
	return s
}

// ResetOpStates drops all op-state. Set.Reset calls this; targets
// themselves persist for the life of the store.
func (t *Target) ResetOpStates() {
	t.statesMu.Lock()
	defer t.statesMu.Unlock()
	t.states = nil
}

// String renders the target reference as <type>{<name>[.<ext>]}[@<out>],
// or <type>{<dir>/} for directory targets.
func (t *Target) String() string {
	var b strings.Builder
	b.WriteString(t.Type.Name)
	b.WriteByte('{')
	if t.Type.Dir {
		b.WriteString(t.Dir)
		b.WriteByte('/')
	} else {
		b.WriteString(t.Name)
		if e, ok := t.Ext(); ok && e != "" {
			b.WriteByte('.')
			b.WriteString(e)
		}
	}
	b.WriteByte('}')
	if t.Out != "" {
		b.WriteByte('@')
		b.WriteString(t.Out)
	}
	return b.String()
}

// VerboseString is String with unspecified and explicitly-empty extensions
// made visible ("?" and "." respectively).
func (t *Target) VerboseString() string {
	if t.Type.Dir {
		return t.String()
	}
	var b strings.Builder
	b.WriteString(t.Type.Name)
	b.WriteByte('{')
	b.WriteString(t.Name)
	if e, ok := t.Ext(); !ok {
		b.WriteString(".?")
	} else if e == "" {
		b.WriteByte('.')
	} else {
		b.WriteByte('.')
		b.WriteString(e)
	}
	b.WriteByte('}')
	if t.Out != "" {
		b.WriteByte('@')
		b.WriteString(t.Out)
	}
	return b.String()
}
