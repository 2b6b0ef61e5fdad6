package cc

import (
	"path/filepath"
	"strings"

	"go.trai.ch/mason/internal/engine/scope"
	"go.trai.ch/mason/internal/engine/target"
)

// buildPrefixMap derives the include-prefix map from the -I options: for
// each include directory inside the project, the key is the target's
// directory relative to it and the value is the directory itself. The
// canonical setup then works without configuration: headers included as
// <foo/bar> with the foo/ directory under -I's parent map back to foo/.
//
// Later -I options override earlier ones for the same prefix; this
// mirrors how the compiler itself resolves collisions.
func buildPrefixMap(bs *scope.Scope, t *target.Target, opts []string) map[string]string {
	m := make(map[string]string)

	root := bs.Root()
	outRoot := root.OutPath

	outBase := t.Dir

	for i := 0; i < len(opts); i++ {
		o := opts[i]

		var d string
		switch {
		case o == "-I":
			if i+1 == len(opts) {
				// Let the compiler complain.
				break
			}
			i++
			d = opts[i]
		case strings.HasPrefix(o, "-I"):
			d = o[2:]
		default:
			continue
		}
		if d == "" || !filepath.IsAbs(d) {
			continue
		}
		d = filepath.Clean(d)

		// Directories outside the project cannot generate headers for us.
		if !isSub(d, outRoot) {
			continue
		}

		// If the target's directory is under the include directory, the
		// prefix is the difference between the two; otherwise it is
		// empty (a catch-all, least specific).
		p := ""
		if isSub(outBase, d) {
			rel, err := filepath.Rel(d, outBase)
			if err != nil {
				continue
			}
			if rel != "." {
				p = rel
			}
		}
		m[p] = d
	}
	return m
}

// prefixLookup finds the most qualified prefix of which dir is a
// sub-path, falling back to the empty catch-all.
func prefixLookup(m map[string]string, dir string) (string, bool) {
	if dir == "." {
		dir = ""
	}
	for p := dir; p != ""; {
		if d, ok := m[p]; ok {
			return d, true
		}
		i := strings.LastIndexByte(p, filepath.Separator)
		if i < 0 {
			break
		}
		p = p[:i]
	}
	d, ok := m[""]
	return d, ok
}

// isSub reports whether dir equals base or is contained in it.
func isSub(dir, base string) bool {
	rel, err := filepath.Rel(base, dir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
