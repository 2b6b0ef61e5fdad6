package build

import (
	"os"
	"path/filepath"

	"go.trai.ch/zerr"

	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/engine/target"
)

// Search resolves a prerequisite to its target. The resolved pointer is
// published with a compare-and-swap: the first resolver wins and every
// later caller observes the same target.
func (c *Context) Search(p *target.Prerequisite) (*target.Target, error) {
	if t := p.Target(); t != nil {
		return t, nil
	}

	t, err := c.resolve(p)
	if err != nil {
		return nil, err
	}
	if err := p.Bind(t); err != nil {
		return nil, zerr.With(err, "prerequisite", p.String())
	}
	// Another worker may have published first; the bound pointer is
	// authoritative either way (Bind verified it is the same target).
	return p.Target(), nil
}

// SearchExisting resolves a prerequisite against the store only, never
// synthesising a target. Nil without error means "no such target yet".
func (c *Context) SearchExisting(p *target.Prerequisite) (*target.Target, error) {
	if t := p.Target(); t != nil {
		return t, nil
	}
	k, ext, hasExt := c.prereqKey(p)
	return c.targets.Find(k, ext, hasExt)
}

func (c *Context) resolve(p *target.Prerequisite) (*target.Target, error) {
	// A type with a custom search function overrides everything.
	if p.Type.Search != nil {
		return p.Type.Search(c, p)
	}

	k, ext, hasExt := c.prereqKey(p)

	t, err := c.targets.Find(k, ext, hasExt)
	if err != nil {
		return nil, err
	}
	if t != nil {
		return t, nil
	}

	switch {
	case p.Type.File:
		return c.searchFile(p, k, ext, hasExt)
	case p.Type.Dir:
		// Out-tree directories are created on demand by their rule.
		t, _, err := c.targets.Insert(k, "", false)
		return t, err
	default:
		// Alias-like targets must have been declared.
		return nil, zerr.With(domain.ErrTargetNotFound, "prerequisite", p.String())
	}
}

// prereqKey computes the store key and the extension for a prerequisite:
// an explicit extension wins, then the scope's "<type>.ext" variable, then
// the type default.
func (c *Context) prereqKey(p *target.Prerequisite) (target.Key, string, bool) {
	dir := p.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(p.ScopeDir, dir)
	}

	ext, hasExt := p.Ext, p.HasExt
	if !hasExt {
		if s := c.scopes.FindOut(dir); s != nil {
			if e := s.String(domain.N(p.Type.Name + ".ext")); e != "" {
				ext, hasExt = e, true
			}
		}
	}
	if !hasExt && p.Type.DefaultExt != "" {
		ext, hasExt = p.Type.DefaultExt, true
	}

	return target.Key{Type: p.Type, Dir: dir, Out: p.Out, Name: p.Name}, ext, hasExt
}

// searchFile looks for the prerequisite on disk: first in the out tree
// (it may have been generated by an earlier build), then in the src tree.
// A discovered file is synthesised into a target bound to its path.
func (c *Context) searchFile(p *target.Prerequisite, k target.Key, ext string, hasExt bool) (*target.Target, error) {
	name := k.Name
	if hasExt && ext != "" {
		name += "." + ext
	}

	try := []string{filepath.Join(k.Dir, name)}
	if src, ok := c.scopes.SrcDir(k.Dir); ok {
		try = append(try, filepath.Join(src, name))
	}

	for _, path := range try {
		fi, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, zerr.With(zerr.Wrap(err, "failed to stat prerequisite"), "path", path)
		}
		t, _, err := c.targets.Insert(k, ext, hasExt)
		if err != nil {
			return nil, err
		}
		t.SetPath(path)
		t.SetMtime(fi.ModTime())
		return t, nil
	}

	return nil, zerr.With(domain.ErrTargetNotFound, "prerequisite", p.String())
}
