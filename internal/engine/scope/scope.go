// Package scope implements the hierarchical variable scope tree keyed by
// out directories, and the per-scope rule registry consulted by the match
// engine.
package scope

import (
	"path/filepath"
	"strings"
	"sync"

	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/engine/target"
)

// Scope is a directory-keyed node holding variable bindings and rule
// registrations. Scopes nest along directory containment.
type Scope struct {
	// OutPath is the scope's directory in the out tree (the key).
	OutPath string

	// SrcPath is the corresponding src directory. Equal to OutPath for
	// in-source builds.
	SrcPath string

	parent *Scope
	root   *Scope

	mu   sync.RWMutex
	vars map[domain.Name]any

	rules ruleTable
}

// Parent returns the enclosing scope, nil at the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Root returns the project root scope (itself for the root).
func (s *Scope) Root() *Scope { return s.root }

// Set assigns a variable in this scope. Mutation is confined to the load
// phase, or to match while holding the affected target's lock.
func (s *Scope) Set(n domain.Name, v any) {
	s.mu.Lock()
	if s.vars == nil {
		s.vars = make(map[domain.Name]any)
	}
	s.vars[n] = v
	s.mu.Unlock()
}

// Find looks a variable up along the parent chain.
func (s *Scope) Find(n domain.Name) (any, bool) {
	for c := s; c != nil; c = c.parent {
		c.mu.RLock()
		v, ok := c.vars[n]
		c.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// String looks up a string-valued variable, "" if unset or not a string.
func (s *Scope) String(n domain.Name) string {
	if v, ok := s.Find(n); ok {
		if sv, ok := v.(string); ok {
			return sv
		}
	}
	return ""
}

// Strings looks up a list-valued variable, nil if unset.
func (s *Scope) Strings(n domain.Name) []string {
	if v, ok := s.Find(n); ok {
		switch sv := v.(type) {
		case []string:
			return sv
		case string:
			return []string{sv}
		}
	}
	return nil
}

// Lookup resolves a variable with target-first semantics: the target's own
// map wins over the scope chain.
func Lookup(s *Scope, t *target.Target, n domain.Name) (any, bool) {
	if t != nil {
		if v, ok := t.Var(n); ok {
			return v, ok
		}
	}
	if s == nil {
		return nil, false
	}
	return s.Find(n)
}

// LookupStrings is Lookup for list-valued variables.
func LookupStrings(s *Scope, t *target.Target, n domain.Name) []string {
	v, ok := Lookup(s, t, n)
	if !ok {
		return nil
	}
	switch sv := v.(type) {
	case []string:
		return sv
	case string:
		return []string{sv}
	}
	return nil
}

// LookupString is Lookup for string-valued variables.
func LookupString(s *Scope, t *target.Target, n domain.Name) string {
	if v, ok := Lookup(s, t, n); ok {
		if sv, ok := v.(string); ok {
			return sv
		}
	}
	return ""
}

// Map is the scope tree: a set of scopes found by directory containment.
type Map struct {
	mu     sync.RWMutex
	scopes map[string]*Scope
	root   *Scope
}

// NewMap creates a scope tree with a root scope for the given out and src
// roots.
func NewMap(outRoot, srcRoot string) *Map {
	root := &Scope{
		OutPath: filepath.Clean(outRoot),
		SrcPath: filepath.Clean(srcRoot),
	}
	root.root = root
	return &Map{
		scopes: map[string]*Scope{root.OutPath: root},
		root:   root,
	}
}

// Root returns the root scope.
func (m *Map) Root() *Scope {
	return m.root
}

// Insert creates (or returns) the scope for the out directory, creating
// the enclosing scopes on the way so nesting never skips a level.
// Mutation is load-phase only.
func (m *Map) Insert(outDir string) *Scope {
	outDir = filepath.Clean(outDir)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(outDir)
}

func (m *Map) insertLocked(outDir string) *Scope {
	if s, ok := m.scopes[outDir]; ok {
		return s
	}

	var parent *Scope
	up := filepath.Dir(outDir)
	if up == outDir || !within(m.root.OutPath, outDir) {
		parent = m.root
	} else {
		parent = m.insertLocked(up)
	}

	s := &Scope{
		OutPath: outDir,
		parent:  parent,
		root:    parent.root,
	}
	if parent.SrcPath != parent.OutPath {
		if rel, err := filepath.Rel(parent.OutPath, outDir); err == nil {
			s.SrcPath = filepath.Join(parent.SrcPath, rel)
		}
	} else {
		s.SrcPath = outDir
	}
	m.scopes[outDir] = s
	return s
}

// FindOut returns the innermost scope containing the out directory.
func (m *Map) FindOut(dir string) *Scope {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLocked(filepath.Clean(dir))
}

func (m *Map) findLocked(dir string) *Scope {
	for {
		if s, ok := m.scopes[dir]; ok {
			return s
		}
		parent := filepath.Dir(dir)
		if parent == dir || !within(m.root.OutPath, dir) {
			return nil
		}
		dir = parent
	}
}

// SrcDir maps an out directory to the corresponding src directory; the
// second result is false outside any out-of-source project.
func (m *Map) SrcDir(outDir string) (string, bool) {
	s := m.FindOut(outDir)
	if s == nil {
		return "", false
	}
	r := s.Root()
	if r.SrcPath == r.OutPath {
		return outDir, false
	}
	rel, err := filepath.Rel(r.OutPath, filepath.Clean(outDir))
	if err != nil {
		return "", false
	}
	return filepath.Join(r.SrcPath, rel), true
}

// OutDir maps a src directory back into the out tree; the second result is
// false when the directory is not under the src root.
func (m *Map) OutDir(srcDir string) (string, bool) {
	r := m.root
	if r.SrcPath == r.OutPath {
		return srcDir, false
	}
	rel, err := filepath.Rel(r.SrcPath, filepath.Clean(srcDir))
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.Join(r.OutPath, rel), true
}

func within(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
