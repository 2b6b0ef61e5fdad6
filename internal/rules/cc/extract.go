package cc

import (
	"bufio"
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/zerr"

	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/engine/scope"
	"go.trai.ch/mason/internal/engine/target"
)

// extractor discovers the implicit (header) prerequisites of one
// translation unit and injects them into the object target, keeping the
// dependency database in sync.
//
// If any prerequisite we extract gets updated we have to redo the whole
// thing: the updated header may now include a yet-non-existent header
// which we must discover and generate before the real compilation. The
// already-processed prefix is guaranteed to come out identical on the next
// run (nothing it can depend on has changed), so each restart skips
// straight past it via skip.
type extractor struct {
	rule *CompileRule
	e    scope.Engine
	a    domain.Action
	t    *target.Target // the object being built
	src  *target.Target // the translation unit
	bs   *scope.Scope
	dd   depDB
	tool string
	opts []string

	// pm maps include prefixes of presumably auto-generated headers to
	// the directories they will be generated in. Built lazily and reused
	// over restarts since it does not change.
	pm map[string]string

	skip int // validated prefix length, monotonically non-decreasing
}

// depDB is the narrow slice of depdb.DB the extractor needs; tests
// substitute it.
type depDB interface {
	Reading() bool
	Mtime() time.Time
	More() bool
	Read() (string, bool)
	Expect(line string) (string, bool, error)
	Touch() error
}

func (x *extractor) run(ctx context.Context) error {
	// Make sure the source itself is up to date before trusting anything.
	cache := x.dd.Reading()

	srcRestart, err := x.update(ctx, x.src, x.dd.Mtime())
	if err != nil {
		return err
	}
	if srcRestart && cache {
		// The cached data may still be valid; the compiler run will
		// re-validate it. But the db timestamp must move or we would
		// keep re-validating forever.
		cache = false
		if err := x.dd.Touch(); err != nil {
			return err
		}
	}

	for restart := true; restart; cache = false {
		restart = false

		if cache {
			restart, err = x.fromCache(ctx)
		} else {
			restart, err = x.fromTool(ctx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// fromCache replays the stored prerequisite lines. A line that fails to
// materialise, or an entry that updates itself (an auto-generated header
// rebuilt just now), switches to the live tool run.
func (x *extractor) fromCache(ctx context.Context) (bool, error) {
	for x.dd.More() {
		line, ok := x.dd.Read()
		if !ok {
			return true, nil
		}

		restart, err := x.add(ctx, line, true)
		if err != nil {
			return false, err
		}
		x.skip++

		if restart {
			if err := x.dd.Touch(); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// fromTool invokes the compiler with the dependency-emitting flags and
// streams its makefile-style output, resuming after the validated prefix.
func (x *extractor) fromTool(ctx context.Context) (restart bool, err error) {
	args := append([]string{}, x.opts...)
	// -MG treats missing headers as generated; relative paths in the
	// output are exactly the non-existent, potentially auto-generated
	// ones. -MQ with a fixed token keeps the target name predictable.
	args = append(args, "-M", "-MG", "-MQ", "^", x.srcPath())

	proc, err := x.rule.runner.Start(ctx, x.tool, args)
	if err != nil {
		return false, zerr.With(zerr.Wrap(err, "unable to execute dependency extraction"), "tool", x.tool)
	}

	sc := bufio.NewScanner(proc.Out())
	skip := x.skip
	first, second := true, false

scan:
	for sc.Scan() {
		l := sc.Text()
		pos := 0

		if first {
			if l == "" {
				break
			}
			if !strings.HasPrefix(l, "^:") {
				_ = drain(proc)
				return false, zerr.With(zerr.New("unable to parse dependency output"), "line", l)
			}
			first, second = false, true
			// "^: \" moves the source to the next line.
			if strings.TrimSpace(l[2:]) == "\\" {
				continue
			}
			pos = 2
		}

		if second {
			second = false
			nextMake(l, &pos) // the source file itself
		}

		for pos < len(l) {
			f := nextMake(l, &pos)
			if f == "" {
				continue
			}
			if skip != 0 {
				skip--
				continue
			}

			restart, err = x.add(ctx, f, false)
			if err != nil {
				_ = drain(proc)
				return false, err
			}
			x.skip++
			if restart {
				break scan
			}
		}
	}

	if serr := sc.Err(); serr != nil {
		_ = drain(proc)
		return false, zerr.Wrap(serr, "unable to read dependency output")
	}

	// Read the stream to the end even on restart: closing early makes
	// some compilers complain about the broken pipe.
	if err := drain(proc); err != nil && !restart {
		return false, zerr.With(zerr.Wrap(err, "dependency extraction failed"), "tool", x.tool)
	}
	return restart, nil
}

func drain(proc interface {
	Out() io.Reader
	Wait() error
}) error {
	_, _ = io.Copy(io.Discard, proc.Out())
	return proc.Wait()
}

// add materialises one discovered prerequisite path: maps it to a target,
// matches it, brings it up to date, and records it both in the depdb (for
// live entries) and the object's prerequisite list. It reports whether
// the extraction must restart.
func (x *extractor) add(ctx context.Context, f string, cache bool) (bool, error) {
	if !filepath.IsAbs(f) {
		f = filepath.Clean(f)

		// A relative path is a non-existent, presumably auto-generated
		// header. Map its include prefix back to a project directory.
		if x.pm == nil {
			x.pm = buildPrefixMap(x.bs, x.t, x.opts)
		}
		dir, ok := prefixLookup(x.pm, filepath.Dir(f))
		if !ok {
			return false, zerr.With(zerr.New("unable to map presumably auto-generated header to a project"),
				"header", f)
		}
		f = filepath.Join(dir, f)
	} else if !cache {
		// Normalising alone can produce an invalid path through
		// symlinks, so realise it instead. Cached lines were already
		// realised when they were written.
		if r, err := filepath.EvalSymlinks(f); err == nil {
			f = r
		} else {
			f = filepath.Clean(f)
		}
	}

	d := filepath.Dir(f)
	base := filepath.Base(f)
	ext := ""
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		ext = base[i+1:]
		base = base[:i]
	}

	// Reverse-map the extension to a type in the header's own scope: it
	// determines whether the file could be auto-generated there.
	hs := x.e.Scopes().FindOut(d)
	tt := mapExtension(hs, ext)

	// If the directory is in the src tree of an out-of-source project,
	// remember the out counterpart so the target is addressed correctly.
	out := ""
	if o, ok := x.e.Scopes().OutDir(d); ok && o != d {
		out = o
	}

	pt, _, err := x.e.Targets().Insert(target.Key{Type: tt, Dir: d, Out: out, Name: base}, ext, true)
	if err != nil {
		return false, err
	}
	pt.SetPath(f)

	if _, err := x.e.Match(ctx, x.a, pt); err != nil {
		return false, err
	}

	// A cached header must be no older than the db itself; if it changed
	// since the db was written the cached tail is stale.
	ts := target.TimeUnknown
	if cache {
		ts = x.dd.Mtime()
	}
	restart, err := x.update(ctx, pt, ts)
	if err != nil {
		return false, err
	}

	// Record after the update so we never cache a file that does not
	// exist and cannot be made.
	if !cache {
		if _, _, err := x.dd.Expect(pt.Path()); err != nil {
			return false, err
		}
	}

	st := x.t.OpState(x.a)
	st.PrerequisiteTargets = append(st.PrerequisiteTargets, pt)
	pt.OpState(x.a).AddDependent()

	return restart, nil
}

// update brings a discovered prerequisite up to date. It reports true
// (restart) if executing it actually changed it, or if ts is known and
// the file is newer than ts (an equal mtime counts too unless the file
// changed in this run).
//
// Most headers are existing files matched by the fallback file rule whose
// noop recipe publishes unchanged without doing anything, so the common
// path is cheap.
func (x *extractor) update(ctx context.Context, pt *target.Target, ts time.Time) (bool, error) {
	st := pt.OpState(x.a)

	if st.State() != domain.StateUnchanged {
		// Only an execute that actually updates the target forces the
		// restart; it could have been changed already by an extraction
		// run for some other source.
		old := st.State()
		ns, err := x.e.ExecuteDirect(ctx, x.a, pt)
		if err != nil {
			return false, err
		}
		if ns != old && ns != domain.StateUnchanged {
			return true, nil
		}
	}

	if !ts.Equal(target.TimeUnknown) {
		mt := pt.Mtime()
		return mt.After(ts) || (mt.Equal(ts) && st.State() != domain.StateChanged), nil
	}
	return false, nil
}

func (x *extractor) srcPath() string {
	// An absolute source path gives absolute paths in the result; any
	// relative path in the output is then a non-existent header.
	if p, err := filepath.Abs(x.src.Path()); err == nil {
		return p
	}
	return x.src.Path()
}

// nextMake returns the next prerequisite in a makefile dependency line
// starting at *pos, handling escaped spaces, dollars and the trailing
// line continuation.
func nextMake(l string, pos *int) string {
	n := len(l)
	p := *pos

	for p < n && l[p] == ' ' {
		p++
	}

	var b strings.Builder
	for p < n && l[p] != ' ' {
		c := l[p]
		if p+1 < n {
			switch {
			case c == '$' && l[p+1] == '$':
				p++
			case c == '\\' && (l[p+1] == '\\' || l[p+1] == ' '):
				p++
				c = l[p]
			}
		}
		b.WriteByte(c)
		p++
	}

	for p < n && l[p] == ' ' {
		p++
	}
	// Final continuation backslash.
	if p == n-1 && l[p] == '\\' {
		p++
	}

	*pos = p
	r := b.String()
	if r == "\\" {
		return ""
	}
	return r
}
