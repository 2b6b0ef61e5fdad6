package cc

import (
	"context"
	"os"

	"go.trai.ch/zerr"

	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/core/ports"
	"go.trai.ch/mason/internal/engine/scope"
	"go.trai.ch/mason/internal/engine/target"
)

// LinkRule links object files into an executable.
type LinkRule struct {
	runner ports.ToolRunner
	log    ports.Logger
}

// NewLinkRule creates the link rule.
func NewLinkRule(runner ports.ToolRunner, log ports.Logger) *LinkRule {
	return &LinkRule{runner: runner, log: log}
}

// Match accepts executable targets with at least one object prerequisite.
func (r *LinkRule) Match(_ context.Context, _ scope.Engine, _ domain.Action, t *target.Target, _ string) (bool, error) {
	if !t.Type.IsA(Exe) {
		return false, nil
	}
	for _, p := range t.Prerequisites {
		if p.Type.IsA(Obj) {
			return true, nil
		}
	}
	return false, nil
}

// Apply matches the objects and returns the link or clean recipe.
func (r *LinkRule) Apply(ctx context.Context, e scope.Engine, a domain.Action, t *target.Target) (target.Recipe, error) {
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create output directory"), "path", t.Dir)
	}
	if err := e.MatchPrerequisites(ctx, a, t); err != nil {
		return nil, err
	}

	assignOutPath(t)

	switch {
	case a.Op == domain.OpClean:
		return r.cleanRecipe(e), nil
	case a.Meta == domain.MetaPerform && a.Op == domain.OpUpdate:
		bs := baseScope(e, t)
		return r.updateRecipe(e, compilerPath(bs, t),
			scope.LookupStrings(bs, t, varLoptions),
			scope.LookupStrings(bs, t, varLibs)), nil
	default:
		return target.Noop, nil
	}
}

func (r *LinkRule) updateRecipe(e scope.Engine, tool string, loptions, libs []string) target.Recipe {
	return func(ctx context.Context, a domain.Action, t *target.Target) (domain.State, error) {
		s, newer, err := e.ExecutePrerequisites(ctx, a, t, t.Mtime(), nil, 0)
		if err != nil {
			return domain.StateFailed, err
		}
		if !t.Mtime().Equal(target.TimeNonexistent) && newer == nil && s != domain.StateChanged {
			return domain.StateUnchanged, nil
		}

		args := append([]string{}, loptions...)
		args = append(args, "-o", t.Path())
		for _, pt := range t.OpState(a).PrerequisiteTargets {
			if pt != nil && pt.Type.IsA(Obj) {
				args = append(args, pt.Path())
			}
		}
		args = append(args, libs...)

		if err := r.runner.Run(ctx, tool, args, &logWriter{log: r.log}); err != nil {
			return domain.StateFailed, zerr.With(zerr.Wrap(err, "linking failed"), "target", t.String())
		}

		if fi, err := os.Stat(t.Path()); err == nil {
			t.SetMtime(fi.ModTime())
		}
		return domain.StateChanged, nil
	}
}

func (r *LinkRule) cleanRecipe(e scope.Engine) target.Recipe {
	return func(ctx context.Context, a domain.Action, t *target.Target) (domain.State, error) {
		s, err := removeFiles(t, t.Path())
		if err != nil {
			return s, err
		}
		// Objects clean after the executable (reverse mode).
		ps, _, err := e.ExecutePrerequisites(ctx, a, t, target.TimeUnknown, nil, 0)
		if err != nil {
			return domain.StateFailed, err
		}
		return s.Merge(ps), nil
	}
}
