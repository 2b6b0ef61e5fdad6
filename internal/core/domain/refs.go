package domain

import (
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
)

// ParseRef parses a target reference of the form
// [proj%]<type>{[dir/]<name>[.<ext>]}. A trailing "." is an explicitly
// empty extension.
func ParseRef(s string) (PrereqDecl, error) {
	var d PrereqDecl

	rest := s
	if i := strings.IndexByte(rest, '%'); i >= 0 {
		d.Proj = rest[:i]
		rest = rest[i+1:]
	}

	o := strings.IndexByte(rest, '{')
	if o <= 0 || !strings.HasSuffix(rest, "}") {
		return d, zerr.With(zerr.With(ErrConfiguration,
			"reason", "malformed target reference"), "reference", s)
	}
	d.Type = rest[:o]
	inner := rest[o+1 : len(rest)-1]

	if i := strings.LastIndexByte(inner, '/'); i >= 0 {
		d.Dir = filepath.Clean(inner[:i])
		inner = inner[i+1:]
	}

	if i := strings.LastIndexByte(inner, '.'); i > 0 {
		d.Ext = inner[i+1:]
		d.HasExt = true
		inner = inner[:i]
	}
	d.Name = inner

	if d.Name == "" {
		return d, zerr.With(zerr.With(ErrConfiguration,
			"reason", "empty target name"), "reference", s)
	}
	return d, nil
}
