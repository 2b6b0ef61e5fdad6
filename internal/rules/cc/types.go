// Package cc implements the C-family compile and link rules, including
// dynamic header extraction driven by the dependency database.
package cc

import (
	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/engine/scope"
	"go.trai.ch/mason/internal/engine/target"
)

// C-family target types.
var (
	// Cxx is a C++ translation unit.
	Cxx = &target.Type{Name: "cxx", Base: target.File, File: true, DefaultExt: "cxx"}

	// C is a C translation unit.
	C = &target.Type{Name: "c", Base: target.File, File: true, DefaultExt: "c"}

	// Hxx is a C++ header.
	Hxx = &target.Type{Name: "hxx", Base: target.File, File: true, DefaultExt: "hxx"}

	// H is a C (or unclassified) header.
	H = &target.Type{Name: "h", Base: target.File, File: true, DefaultExt: "h"}

	// Ixx is an inline file.
	Ixx = &target.Type{Name: "ixx", Base: target.File, File: true, DefaultExt: "ixx"}

	// Txx is a template implementation file.
	Txx = &target.Type{Name: "txx", Base: target.File, File: true, DefaultExt: "txx"}

	// Obj is a compiled object file.
	Obj = &target.Type{Name: "obj", Base: target.File, File: true, DefaultExt: "o"}

	// Exe is a linked executable.
	Exe = &target.Type{Name: "exe", Base: target.File, File: true}
)

// RegisterTypes adds the C-family types to the registry.
func RegisterTypes(tm *target.TypeMap) {
	for _, t := range []*target.Type{Cxx, C, Hxx, H, Ixx, Txx, Obj, Exe} {
		tm.Register(t)
	}
}

// extCandidates is the fixed "most likely to match" order used to
// reverse-map a discovered header's extension back to a target type.
var extCandidates = []*target.Type{Hxx, H, Ixx, Txx, Cxx, C}

// mapExtension finds the target type whose configured (or default)
// extension in the scope equals e. Headers outside any known mapping are
// plain C headers: they exist, but cannot be auto-generated.
func mapExtension(s *scope.Scope, e string) *target.Type {
	for _, tt := range extCandidates {
		cfg := ""
		if s != nil {
			cfg = s.String(domain.N(tt.Name + ".ext"))
		}
		if cfg == "" {
			cfg = tt.DefaultExt
		}
		if cfg == e {
			return tt
		}
	}
	return H
}

// isSource reports whether the target is a compilable translation unit.
func isSource(t *target.Target) bool {
	return t.Type.IsA(Cxx) || t.Type.IsA(C)
}
