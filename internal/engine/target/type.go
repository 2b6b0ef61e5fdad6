// Package target implements the target graph: target types, the
// content-addressed target store, prerequisites with their resolved-target
// cache, and the per-(target, action) operation state.
package target

// SearchContext is the slice of the build engine a custom type search
// function is allowed to see.
type SearchContext interface {
	// Targets returns the target store.
	Targets() *Set

	// SrcDir maps an out directory to the corresponding src directory.
	// The second result is false if the directory is not part of an
	// out-of-source project (src and out are the same tree).
	SrcDir(outDir string) (string, bool)
}

// SearchFunc resolves a prerequisite to a target in a type-specific way.
type SearchFunc func(sc SearchContext, p *Prerequisite) (*Target, error)

// Type is a runtime target type descriptor. Types form a single-inheritance
// chain walked by IsA.
type Type struct {
	// Name is the type name as it appears in target references, e.g. "obj".
	Name string

	// Base is the parent type, nil for the root "target" type.
	Base *Type

	// Factory creates a target of this type for the given key. When nil,
	// a plain Target is allocated.
	Factory func(k Key) *Target

	// DefaultExt is the extension assumed when neither the target
	// declaration nor the "<type>.ext" variable supplies one. Empty means
	// no default (the extension stays unspecified until refined).
	DefaultExt string

	// File reports whether targets of this type name files on disk and
	// may be searched for in the src tree.
	File bool

	// Dir reports whether targets of this type stand for directories and
	// print with a trailing slash.
	Dir bool

	// SeeThrough reports whether a group of this type exposes its members
	// to the match engine.
	SeeThrough bool

	// Search overrides the default prerequisite resolution for this type.
	Search SearchFunc
}

// IsA reports whether t is tt or derives from tt.
func (t *Type) IsA(tt *Type) bool {
	for b := t; b != nil; b = b.Base {
		if b == tt {
			return true
		}
	}
	return false
}

// Root is the base of every target type.
var Root = &Type{Name: "target"}

// MtimeBased is the base of all file-system entry types.
var MtimeBased = &Type{Name: "mtime_target", Base: Root}

// File is the generic file target type.
var File = &Type{Name: "file", Base: MtimeBased, File: true}

// Dir is an in-source directory target (a scope stand-in).
var Dir = &Type{Name: "dir", Base: MtimeBased, Dir: true}

// FsDir is an out-tree directory created on demand.
var FsDir = &Type{Name: "fsdir", Base: MtimeBased, Dir: true}

// Alias is a phony grouping target. Its search never touches the
// filesystem: a missing alias target is an error.
var Alias = &Type{Name: "alias", Base: Root}
