// Package file implements the fallback rules: existing source files,
// alias (phony) targets, and on-demand out-tree directories.
package file

import (
	"context"
	"os"
	"path/filepath"

	"go.trai.ch/zerr"

	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/engine/scope"
	"go.trai.ch/mason/internal/engine/target"
)

// Rule is the fallback rule for file targets that exist on disk (sources,
// headers). It never rebuilds anything: an existing up-to-date file gets
// the noop recipe so the execute engine can skip it cheaply.
type Rule struct{}

// Match succeeds when the target's file can be located (an already
// assigned path, the out tree, or the src tree).
func (Rule) Match(_ context.Context, e scope.Engine, _ domain.Action, t *target.Target, _ string) (bool, error) {
	if !t.Type.File {
		return false, nil
	}
	return assignPath(e, t)
}

// Apply returns noop: source files are facts, not products.
func (Rule) Apply(_ context.Context, _ scope.Engine, _ domain.Action, _ *target.Target) (target.Recipe, error) {
	return target.Noop, nil
}

// assignPath locates the target's file and caches its path and mtime.
func assignPath(e scope.Engine, t *target.Target) (bool, error) {
	if t.Path() != "" {
		if t.Mtime().Equal(target.TimeUnknown) {
			if fi, err := os.Stat(t.Path()); err == nil {
				t.SetMtime(fi.ModTime())
			} else {
				return false, nil
			}
		}
		return true, nil
	}

	name := t.Name
	if ext, ok := t.Ext(); ok && ext != "" {
		name += "." + ext
	}

	try := []string{filepath.Join(t.Dir, name)}
	if src, ok := e.Scopes().SrcDir(t.Dir); ok {
		try = append(try, filepath.Join(src, name))
	}

	for _, path := range try {
		fi, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return false, zerr.With(zerr.Wrap(err, "failed to stat file target"), "path", path)
		}
		t.SetPath(path)
		t.SetMtime(fi.ModTime())
		return true, nil
	}
	return false, nil
}

// AliasRule builds alias (phony) targets: it matches the target's
// prerequisites and aggregates their states.
type AliasRule struct{}

// Match accepts any alias-typed target.
func (AliasRule) Match(_ context.Context, _ scope.Engine, _ domain.Action, t *target.Target, _ string) (bool, error) {
	return t.Type.IsA(target.Alias), nil
}

// Apply matches the prerequisites and returns the default recipe, which
// executes them in the action's mode and aggregates.
func (AliasRule) Apply(ctx context.Context, e scope.Engine, a domain.Action, t *target.Target) (target.Recipe, error) {
	if err := e.MatchPrerequisites(ctx, a, t); err != nil {
		return nil, err
	}
	return target.Default, nil
}

// FsdirRule materialises and cleans out-tree directories.
type FsdirRule struct{}

// Match accepts fsdir targets.
func (FsdirRule) Match(_ context.Context, _ scope.Engine, _ domain.Action, t *target.Target, _ string) (bool, error) {
	return t.Type.IsA(target.FsDir), nil
}

// Apply returns the create or remove recipe depending on the operation.
func (FsdirRule) Apply(_ context.Context, _ scope.Engine, a domain.Action, t *target.Target) (target.Recipe, error) {
	switch a.Op {
	case domain.OpClean:
		return cleanDir, nil
	default:
		return makeDir, nil
	}
}

func makeDir(_ context.Context, _ domain.Action, t *target.Target) (domain.State, error) {
	if fi, err := os.Stat(t.Dir); err == nil && fi.IsDir() {
		return domain.StateUnchanged, nil
	}
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		return domain.StateFailed, zerr.With(zerr.Wrap(err, "failed to create directory"), "path", t.Dir)
	}
	return domain.StateChanged, nil
}

func cleanDir(_ context.Context, _ domain.Action, t *target.Target) (domain.State, error) {
	err := os.Remove(t.Dir)
	switch {
	case err == nil:
		return domain.StateChanged, nil
	case os.IsNotExist(err):
		return domain.StateUnchanged, nil
	default:
		// Not empty: leave it, somebody still has files there.
		return domain.StateUnchanged, nil
	}
}
