// Package build implements the build engine proper: the build context with
// its global phase, prerequisite search, and the phase-gated match and
// execute algorithms.
package build

import (
	"context"
	"sync/atomic"

	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/core/ports"
	"go.trai.ch/mason/internal/engine/scheduler"
	"go.trai.ch/mason/internal/engine/scope"
	"go.trai.ch/mason/internal/engine/target"
)

// Context is the process-wide build state threaded through the engine API:
// the global phase, the scheduler, the target store and the scope tree.
type Context struct {
	phase atomic.Uint32

	sched   *scheduler.Scheduler
	scopes  *scope.Map
	targets *target.Set
	types   *target.TypeMap

	log    ports.Logger
	tracer ports.Tracer

	keepGoing bool
}

var _ scope.Engine = (*Context)(nil)
var _ target.SearchContext = (*Context)(nil)

// Options configures a build context.
type Options struct {
	Jobs      int
	KeepGoing bool
	Logger    ports.Logger
	Tracer    ports.Tracer
}

// NewContext creates a build context in the load phase with a fresh target
// store and type registry.
func NewContext(opts Options) *Context {
	return &Context{
		sched:     scheduler.New(opts.Jobs),
		targets:   target.NewSet(),
		types:     target.NewTypeMap(),
		log:       opts.Logger,
		tracer:    opts.Tracer,
		keepGoing: opts.KeepGoing,
	}
}

// Phase returns the current global phase.
func (c *Context) Phase() domain.Phase {
	return domain.Phase(c.phase.Load())
}

// EnterPhase transitions the global phase. The caller must have quiesced
// the previous phase's tasks (waited out all its counts).
func (c *Context) EnterPhase(p domain.Phase) {
	c.phase.Store(uint32(p))
}

// Scopes returns the scope tree (nil before Load).
func (c *Context) Scopes() *scope.Map { return c.scopes }

// Targets returns the target store.
func (c *Context) Targets() *target.Set { return c.targets }

// Types returns the target type registry.
func (c *Context) Types() *target.TypeMap { return c.types }

// Scheduler returns the task scheduler.
func (c *Context) Scheduler() *scheduler.Scheduler { return c.sched }

// Logger returns the diagnostics sink.
func (c *Context) Logger() ports.Logger { return c.log }

// KeepGoing reports whether sibling failures should not stop the build.
func (c *Context) KeepGoing() bool { return c.keepGoing }

// SrcDir implements target.SearchContext over the scope tree.
func (c *Context) SrcDir(outDir string) (string, bool) {
	return c.scopes.SrcDir(outDir)
}

// Shutdown stops the scheduler. The tracer is owned by the driver and
// outlives individual build invocations.
func (c *Context) Shutdown() {
	c.sched.Shutdown()
}

// requirePhase asserts the engine operation runs in one of the named
// phases. A wrong phase is an invariant violation, never suppressed.
func (c *Context) requirePhase(ps ...domain.Phase) error {
	cur := c.Phase()
	for _, p := range ps {
		if cur == p {
			return nil
		}
	}
	return wrongPhase(cur)
}

// ancestor stack for cycle detection: each match/execute call links its
// (action, target) pair into the context chain so a lock acquisition can
// tell whether the holder is an ancestor of the requesting worker.
type stackKey struct{}

type stackNode struct {
	a      domain.Action
	t      *target.Target
	parent *stackNode
}

func pushStack(ctx context.Context, a domain.Action, t *target.Target) context.Context {
	parent, _ := ctx.Value(stackKey{}).(*stackNode)
	return context.WithValue(ctx, stackKey{}, &stackNode{a: a, t: t, parent: parent})
}

func onStack(ctx context.Context, a domain.Action, t *target.Target) bool {
	n, _ := ctx.Value(stackKey{}).(*stackNode)
	for ; n != nil; n = n.parent {
		if n.t == t && n.a == a {
			return true
		}
	}
	return false
}

func cyclePath(ctx context.Context, t *target.Target) string {
	n, _ := ctx.Value(stackKey{}).(*stackNode)
	path := t.String()
	for ; n != nil; n = n.parent {
		path = n.t.String() + " -> " + path
		if n.t == t {
			break
		}
	}
	return path
}
