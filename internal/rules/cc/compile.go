package cc

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"

	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/core/ports"
	"go.trai.ch/mason/internal/engine/depdb"
	"go.trai.ch/mason/internal/engine/scope"
	"go.trai.ch/mason/internal/engine/target"
)

// Variable names consulted by the cc rules.
var (
	varPath     = domain.N("cc.path")
	varChecksum = domain.N("cc.checksum")
	varPoptions = domain.N("cc.poptions")
	varCoptions = domain.N("cc.coptions")
	varLoptions = domain.N("cc.loptions")
	varLibs     = domain.N("cc.libs")
)

const defaultCompiler = "c++"

// compileRuleID is the rule identity line in the depdb; bump the version
// when the line layout changes.
const compileRuleID = "cc.compile 1"

// CompileRule compiles a translation unit into an object file. During
// apply it extracts the unit's header dependencies (cached in the depdb
// next to the object file) and injects them as prerequisites.
type CompileRule struct {
	runner ports.ToolRunner
	log    ports.Logger
}

// NewCompileRule creates the compile rule.
func NewCompileRule(runner ports.ToolRunner, log ports.Logger) *CompileRule {
	return &CompileRule{runner: runner, log: log}
}

// Match accepts object targets with a compilable source prerequisite.
func (r *CompileRule) Match(_ context.Context, _ scope.Engine, _ domain.Action, t *target.Target, _ string) (bool, error) {
	if !t.Type.IsA(Obj) {
		return false, nil
	}
	for _, p := range t.Prerequisites {
		if p.Type.IsA(Cxx) || p.Type.IsA(C) {
			return true, nil
		}
	}
	return false, nil
}

// Apply prepares the object recipe. For perform update this is where the
// dependency database is validated and dynamic prerequisites extracted:
// they must be known before execution so the recipe can answer "is
// anything newer" without matching mid-update.
func (r *CompileRule) Apply(ctx context.Context, e scope.Engine, a domain.Action, t *target.Target) (target.Recipe, error) {
	bs := baseScope(e, t)

	// The output directory must exist before the depdb can live there.
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create output directory"), "path", t.Dir)
	}

	if err := e.MatchPrerequisites(ctx, a, t); err != nil {
		return nil, err
	}

	src := sourcePrereq(e, a, t)
	if src == nil {
		return nil, zerr.With(zerr.With(domain.ErrConfiguration, "target", t.String()),
			"reason", "no source prerequisite")
	}

	assignOutPath(t)

	if a.Op == domain.OpClean {
		return r.cleanRecipe(), nil
	}
	if a.Meta != domain.MetaPerform || a.Op != domain.OpUpdate {
		return target.Noop, nil
	}

	tool := compilerPath(bs, t)
	opts := compileOptions(bs, t)

	dd, err := depdb.Open(t.Path() + ".d")
	if err != nil {
		return nil, err
	}

	// Prelude: rule identity, compiler checksum, options checksum, source.
	// A mismatch on any line truncates the db and every later expect
	// appends.
	if _, ok, err := dd.Expect(compileRuleID); err != nil {
		return nil, err
	} else if !ok {
		r.debug("rule mismatch forcing update", t)
	}

	cs := scope.LookupString(bs, t, varChecksum)
	if cs == "" {
		cs = toolChecksum(tool)
	}
	if _, ok, err := dd.Expect(cs); err != nil {
		return nil, err
	} else if !ok {
		r.debug("compiler mismatch forcing update", t)
	}

	if _, ok, err := dd.Expect(optionsChecksum(opts)); err != nil {
		return nil, err
	} else if !ok {
		r.debug("options mismatch forcing update", t)
	}

	srcPath, err := filepath.Abs(src.Path())
	if err != nil {
		return nil, zerr.Wrap(err, "failed to absolutise source path")
	}
	if _, ok, err := dd.Expect(srcPath); err != nil {
		return nil, err
	} else if !ok {
		r.debug("source file mismatch forcing update", t)
	}

	// A mismatch above, or a db newer than the target (interrupted
	// update), forces the rebuild by making the target look missing.
	if dd.Writing() || dd.Mtime().After(t.Mtime()) {
		t.SetMtime(target.TimeNonexistent)
	}

	ex := &extractor{
		rule: r,
		e:    e,
		a:    a,
		t:    t,
		src:  src,
		bs:   bs,
		dd:   dd,
		tool: tool,
		opts: opts,
	}
	if err := ex.run(ctx); err != nil {
		_, _ = dd.Close()
		return nil, err
	}

	if _, err := dd.Close(); err != nil {
		return nil, err
	}

	return r.updateRecipe(e, tool, opts, srcPath), nil
}

// updateRecipe compiles the source if the object is missing or any
// prerequisite (declared or injected) is newer.
func (r *CompileRule) updateRecipe(e scope.Engine, tool string, opts []string, srcPath string) target.Recipe {
	return func(ctx context.Context, a domain.Action, t *target.Target) (domain.State, error) {
		s, newer, err := e.ExecutePrerequisites(ctx, a, t, t.Mtime(), nil, 0)
		if err != nil {
			return domain.StateFailed, err
		}
		if !t.Mtime().Equal(target.TimeNonexistent) && newer == nil && s != domain.StateChanged {
			return domain.StateUnchanged, nil
		}

		args := append(append([]string{}, opts...), "-o", t.Path(), "-c", srcPath)
		if err := r.runner.Run(ctx, tool, args, &logWriter{log: r.log}); err != nil {
			return domain.StateFailed, zerr.With(zerr.Wrap(err, "compilation failed"), "target", t.String())
		}

		if fi, err := os.Stat(t.Path()); err == nil {
			t.SetMtime(fi.ModTime())
		}
		return domain.StateChanged, nil
	}
}

// cleanRecipe removes the object file and its depdb.
func (r *CompileRule) cleanRecipe() target.Recipe {
	return func(_ context.Context, _ domain.Action, t *target.Target) (domain.State, error) {
		return removeFiles(t, t.Path(), t.Path()+".d")
	}
}

func (r *CompileRule) debug(msg string, t *target.Target) {
	if r.log != nil {
		r.log.Debug(msg, "target", t.String())
	}
}

// baseScope returns the scope the target's options resolve in.
func baseScope(e scope.Engine, t *target.Target) *scope.Scope {
	if s := e.Scopes().FindOut(t.Dir); s != nil {
		return s
	}
	return e.Scopes().Root()
}

func compilerPath(bs *scope.Scope, t *target.Target) string {
	if p := scope.LookupString(bs, t, varPath); p != "" {
		return p
	}
	return defaultCompiler
}

func compileOptions(bs *scope.Scope, t *target.Target) []string {
	opts := append([]string{}, scope.LookupStrings(bs, t, varPoptions)...)
	return append(opts, scope.LookupStrings(bs, t, varCoptions)...)
}

// sourcePrereq finds the translation unit among the matched prerequisites.
func sourcePrereq(_ scope.Engine, a domain.Action, t *target.Target) *target.Target {
	for _, pt := range t.OpState(a).PrerequisiteTargets {
		if pt != nil && isSource(pt) {
			return pt
		}
	}
	return nil
}

// assignOutPath derives the target's output path from its key and loads
// the current mtime (nonexistent if the file is not there yet).
func assignOutPath(t *target.Target) {
	if t.Path() == "" {
		name := t.Name
		if ext, ok := t.Ext(); ok && ext != "" {
			name += "." + ext
		}
		t.SetPath(filepath.Join(t.Dir, name))
	}
	if fi, err := os.Stat(t.Path()); err == nil {
		t.SetMtime(fi.ModTime())
	} else {
		t.SetMtime(target.TimeNonexistent)
	}
}

func removeFiles(t *target.Target, paths ...string) (domain.State, error) {
	s := domain.StateUnchanged
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := os.Remove(p)
		switch {
		case err == nil:
			s = domain.StateChanged
		case os.IsNotExist(err):
		default:
			return domain.StateFailed, zerr.With(zerr.Wrap(err, "failed to remove file"), "path", p)
		}
	}
	if s == domain.StateChanged {
		t.SetMtime(target.TimeNonexistent)
	}
	return s, nil
}

// logWriter forwards tool output lines to the logger.
type logWriter struct {
	log ports.Logger
	buf strings.Builder
}

func (w *logWriter) Write(p []byte) (int, error) {
	if w.log == nil {
		return len(p), nil
	}
	w.buf.Write(p)
	for {
		s := w.buf.String()
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			break
		}
		if line := s[:i]; line != "" {
			w.log.Info(line)
		}
		w.buf.Reset()
		w.buf.WriteString(s[i+1:])
	}
	return len(p), nil
}
