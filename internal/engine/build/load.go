package build

import (
	"path/filepath"
	"sort"
	"strings"

	"go.trai.ch/zerr"

	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/engine/scope"
	"go.trai.ch/mason/internal/engine/target"
)

// Load synthesises the scope tree and targets from a parsed manifest. It
// runs in the load phase; the store and scope tree are frozen afterwards.
func (c *Context) Load(m *domain.Manifest) error {
	if err := c.requirePhase(domain.PhaseLoad); err != nil {
		return err
	}

	outRoot := m.OutRoot
	if outRoot == "" {
		outRoot = m.SrcRoot
	}
	c.scopes = scope.NewMap(outRoot, m.SrcRoot)

	root := c.scopes.Root()
	for k, v := range m.Variables {
		root.Set(domain.N(k), v)
	}

	// Parents first, so nested scopes chain through their enclosing
	// directories rather than skipping straight to the root.
	dirs := append([]domain.DirDecl{}, m.Dirs...)
	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i].Dir, string(filepath.Separator)) <
			strings.Count(dirs[j].Dir, string(filepath.Separator))
	})
	for _, d := range dirs {
		s := c.scopes.Insert(filepath.Join(outRoot, d.Dir))
		for k, v := range d.Variables {
			s.Set(domain.N(k), v)
		}
	}

	for _, td := range m.Targets {
		if err := c.loadTarget(outRoot, td); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) loadTarget(outRoot string, td domain.TargetDecl) error {
	tt, ok := c.types.Lookup(td.Type)
	if !ok {
		return zerr.With(zerr.With(domain.ErrConfiguration, "target_type", td.Type), "target", td.Name)
	}

	dir := filepath.Join(outRoot, td.Dir)
	c.scopes.Insert(dir)

	ext, hasExt := td.Ext, td.HasExt
	if !hasExt && tt.DefaultExt != "" {
		ext, hasExt = tt.DefaultExt, true
	}

	t, _, err := c.targets.Insert(target.Key{Type: tt, Dir: dir, Name: td.Name}, ext, hasExt)
	if err != nil {
		return err
	}

	for k, v := range td.Variables {
		t.SetVar(domain.N(k), v)
	}

	for _, pd := range td.Prereqs {
		pt, ok := c.types.Lookup(pd.Type)
		if !ok {
			return zerr.With(zerr.With(domain.ErrConfiguration, "prerequisite_type", pd.Type), "target", t.String())
		}
		t.Prerequisites = append(t.Prerequisites, &target.Prerequisite{
			Type:     pt,
			Dir:      pd.Dir,
			Out:      "",
			Name:     pd.Name,
			Ext:      pd.Ext,
			HasExt:   pd.HasExt,
			Proj:     pd.Proj,
			ScopeDir: dir,
		})
	}
	return nil
}
