// Package app implements the build driver: it loads the buildfile, runs
// the requested actions through the load, match and execute phases, and
// maps the outcome to the process exit contract.
package app

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"go.trai.ch/mason/internal/adapters/watcher"
	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/core/ports"
	"go.trai.ch/mason/internal/engine/build"
	"go.trai.ch/mason/internal/engine/target"
	"go.trai.ch/mason/internal/rules/cc"
	"go.trai.ch/mason/internal/rules/file"
)

// App is the application layer.
type App struct {
	loader ports.ConfigLoader
	runner ports.ToolRunner
	tracer ports.Tracer
	log    ports.Logger
}

// New creates a new App instance.
func New(loader ports.ConfigLoader, runner ports.ToolRunner, tracer ports.Tracer, log ports.Logger) *App {
	return &App{loader: loader, runner: runner, tracer: tracer, log: log}
}

// Request is one driver invocation: a set of operations applied to a set
// of root targets.
type Request struct {
	// Operations are operation names ("update", "clean"); the meta
	// operation defaults to perform.
	Operations []string

	// Targets are root target references ("exe{hello}", "obj{a}", or a
	// bare name resolved across types).
	Targets []string

	// Buildfile overrides the default mason.yaml.
	Buildfile string

	// Jobs bounds the worker pool; 0 means NumCPU.
	Jobs int

	// KeepGoing lets siblings finish after a failure.
	KeepGoing bool

	// Watch re-runs the request when the source tree changes.
	Watch bool
}

// Run executes the request. It returns domain.ErrBuildFailed when any
// root target fails, and configuration errors verbatim.
func (a *App) Run(ctx context.Context, req Request) error {
	actions, err := parseOperations(req.Operations)
	if err != nil {
		return err
	}

	if !req.Watch {
		return a.runOnce(ctx, req, actions)
	}

	m, err := a.loader.Load(".", req.Buildfile)
	if err != nil {
		return err
	}

	w, err := watcher.New(a.log)
	if err != nil {
		return err
	}

	// Run once up front; watch failures are logged, not fatal, so the
	// loop survives broken intermediate states.
	if err := a.runOnce(ctx, req, actions); err != nil {
		a.log.Error(err)
	}
	return w.Watch(ctx, m.SrcRoot, func() error {
		return a.runOnce(ctx, req, actions)
	})
}

func (a *App) runOnce(ctx context.Context, req Request, actions []domain.Action) error {
	m, err := a.loader.Load(".", req.Buildfile)
	if err != nil {
		return err
	}

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	bctx := build.NewContext(build.Options{
		Jobs:      jobs,
		KeepGoing: req.KeepGoing,
		Logger:    a.log,
		Tracer:    a.tracer,
	})
	defer bctx.Shutdown()

	cc.RegisterTypes(bctx.Types())

	if err := bctx.Load(m); err != nil {
		return err
	}
	registerRules(bctx, a.runner, a.log)

	roots, err := a.resolveRoots(bctx, m, req.Targets)
	if err != nil {
		return err
	}

	failed := false
	for _, act := range actions {
		f, err := a.perform(ctx, bctx, act, roots, req.KeepGoing)
		if err != nil {
			return err
		}
		failed = failed || f
	}

	if failed {
		return domain.ErrBuildFailed
	}
	return nil
}

// perform runs one action over the roots: match them all, quiesce, then
// execute them all. It reports whether any root failed.
func (a *App) perform(ctx context.Context, bctx *build.Context, act domain.Action,
	roots []*target.Target, keepGoing bool) (bool, error) {

	bctx.EnterPhase(domain.PhaseMatch)

	failed, err := a.forEach(ctx, roots, keepGoing, func(ctx context.Context, t *target.Target) error {
		_, err := bctx.Match(ctx, act, t)
		return err
	})
	if err != nil {
		return true, err
	}

	bctx.EnterPhase(domain.PhaseExecute)

	f, err := a.forEach(ctx, roots, keepGoing, func(ctx context.Context, t *target.Target) error {
		s, err := bctx.Execute(ctx, act, t)
		if err != nil {
			return err
		}
		a.log.Info("target "+s.String(), "target", t.String(), "action", act.String())
		return nil
	})
	if err != nil {
		return true, err
	}

	return failed || f, nil
}

// forEach runs fn over the roots in parallel. Invariant violations abort;
// build failures either stop the group or, with keep-going, are counted
// and suppressed.
func (a *App) forEach(ctx context.Context, roots []*target.Target, keepGoing bool,
	fn func(context.Context, *target.Target) error) (bool, error) {

	var failed atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range roots {
		g.Go(func() error {
			err := fn(gctx, t)
			if err == nil {
				return nil
			}
			if isBuildFailure(err) && keepGoing {
				failed.Store(true)
				return nil
			}
			return err
		})
	}

	err := g.Wait()
	switch {
	case err == nil:
		return failed.Load(), nil
	case isBuildFailure(err):
		return true, nil
	default:
		return true, err
	}
}

// isBuildFailure separates ordinary target failures (exit code 1) from
// invariant violations and configuration errors.
func isBuildFailure(err error) bool {
	return errors.Is(err, domain.ErrTargetFailed) ||
		errors.Is(err, domain.ErrBuildFailed) ||
		errors.Is(err, domain.ErrRuleNotFound) ||
		errors.Is(err, domain.ErrDependencyCycle)
}

// registerRules installs the standard rule set on the root scope, most
// specific types first; the plain file rule is the wildcard fallback.
func registerRules(bctx *build.Context, runner ports.ToolRunner, log ports.Logger) {
	root := bctx.Scopes().Root()

	root.InsertRule(domain.MetaPerform, domain.OpNone, cc.Obj, "cc.compile", cc.NewCompileRule(runner, log))
	root.InsertRule(domain.MetaPerform, domain.OpNone, cc.Exe, "cc.link", cc.NewLinkRule(runner, log))
	root.InsertRule(domain.MetaNone, domain.OpNone, target.Alias, "alias", file.AliasRule{})
	root.InsertRule(domain.MetaNone, domain.OpNone, target.FsDir, "fsdir", file.FsdirRule{})
	root.InsertRule(domain.MetaNone, domain.OpNone, target.File, "file", file.Rule{})
}

// resolveRoots maps the request's target references to stored targets.
// With no targets requested, the unique alias named "all" is built; when
// there is none, or more than one, every declared executable is built.
func (a *App) resolveRoots(bctx *build.Context, m *domain.Manifest, refs []string) ([]*target.Target, error) {
	if len(refs) == 0 {
		if t, err := bctx.Targets().FindName(target.Alias, "all"); err == nil {
			return []*target.Target{t}, nil
		}
		var roots []*target.Target
		bctx.Targets().All(func(t *target.Target) bool {
			if t.Type.IsA(cc.Exe) {
				roots = append(roots, t)
			}
			return true
		})
		if len(roots) == 0 {
			return nil, zerr.With(domain.ErrConfiguration, "reason", "no default targets")
		}
		return roots, nil
	}

	roots := make([]*target.Target, 0, len(refs))
	for _, ref := range refs {
		t, err := a.resolveRoot(bctx, m, ref)
		if err != nil {
			return nil, err
		}
		roots = append(roots, t)
	}
	return roots, nil
}

func (a *App) resolveRoot(bctx *build.Context, m *domain.Manifest, ref string) (*target.Target, error) {
	if !containsBrace(ref) {
		return bctx.Targets().FindName(target.Root, ref)
	}

	pd, err := domain.ParseRef(ref)
	if err != nil {
		return nil, err
	}
	tt, ok := bctx.Types().Lookup(pd.Type)
	if !ok {
		return nil, zerr.With(zerr.With(domain.ErrConfiguration, "target_type", pd.Type), "reference", ref)
	}

	dir := filepath.Join(outRoot(m), pd.Dir)
	t, err := bctx.Targets().Find(target.Key{Type: tt, Dir: dir, Name: pd.Name}, pd.Ext, pd.HasExt)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, zerr.With(domain.ErrTargetNotFound, "reference", ref)
	}
	return t, nil
}

func outRoot(m *domain.Manifest) string {
	if m.OutRoot != "" {
		return m.OutRoot
	}
	return m.SrcRoot
}

func containsBrace(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			return true
		}
	}
	return false
}

// parseOperations maps operation names to actions under perform.
func parseOperations(ops []string) ([]domain.Action, error) {
	if len(ops) == 0 {
		ops = []string{"update"}
	}
	actions := make([]domain.Action, 0, len(ops))
	for _, op := range ops {
		switch op {
		case "update", "default":
			actions = append(actions, domain.Action{Meta: domain.MetaPerform, Op: domain.OpUpdate})
		case "clean":
			actions = append(actions, domain.Action{Meta: domain.MetaPerform, Op: domain.OpClean})
		default:
			return nil, zerr.With(domain.ErrUnknownOperation, "operation", op)
		}
	}
	return actions, nil
}
