package target

import (
	"strings"
	"sync/atomic"

	"go.trai.ch/mason/internal/core/domain"
)

// Prerequisite is an author-declared edge from a target to something it
// depends on. It carries an atomic binding to the resolved target which is
// published exactly once per build.
type Prerequisite struct {
	Type *Type
	Dir  string // relative to the owning scope unless absolute
	Out  string
	Name string
	Ext  string
	// HasExt distinguishes an explicitly empty extension from an
	// unspecified one.
	HasExt bool

	// Proj qualifies the prerequisite with a project (import) name.
	Proj string

	// ScopeDir is the out directory of the owning scope; relative
	// directories resolve against it.
	ScopeDir string

	target atomic.Pointer[Target]
}

// Target returns the resolved target, nil if not resolved yet. The load
// pairs with Bind's compare-and-swap publish: a non-nil pointer implies the
// target's identity fields are visible.
func (p *Prerequisite) Target() *Target {
	return p.target.Load()
}

// Bind publishes the resolved target. The first publisher wins; a second
// publish with a different target is an invariant violation.
func (p *Prerequisite) Bind(t *Target) error {
	if p.target.CompareAndSwap(nil, t) {
		return nil
	}
	if p.target.Load() != t {
		return domain.ErrPrerequisiteRebound
	}
	return nil
}

// Reset clears the binding. Set.Reset calls this together with
// Target.ResetOpStates.
func (p *Prerequisite) Reset() {
	p.target.Store(nil)
}

// String renders the prerequisite the way an unresolved target reference
// prints.
func (p *Prerequisite) String() string {
	var b strings.Builder
	if p.Proj != "" {
		b.WriteString(p.Proj)
		b.WriteByte('%')
	}
	b.WriteString(p.Type.Name)
	b.WriteByte('{')
	if p.Dir != "" {
		b.WriteString(p.Dir)
		b.WriteByte('/')
	}
	b.WriteString(p.Name)
	if p.HasExt && p.Ext != "" {
		b.WriteByte('.')
		b.WriteString(p.Ext)
	}
	b.WriteByte('}')
	return b.String()
}
