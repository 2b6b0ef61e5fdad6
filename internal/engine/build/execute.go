package build

import (
	"context"
	"errors"
	"time"

	"go.trai.ch/zerr"

	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/engine/scheduler"
	"go.trai.ch/mason/internal/engine/target"
)

// Execute claims (a, t) and invokes its recipe, or joins the worker that
// already did. The returned state equals the published one.
func (c *Context) Execute(ctx context.Context, a domain.Action, t *target.Target) (domain.State, error) {
	if err := c.requirePhase(domain.PhaseExecute); err != nil {
		return domain.StateFailed, err
	}
	return c.executeImpl(ctx, a, t)
}

// ExecuteDirect is Execute that is also permitted during the match phase:
// rules use it to bring dynamically discovered prerequisites up to date
// while extracting them.
func (c *Context) ExecuteDirect(ctx context.Context, a domain.Action, t *target.Target) (domain.State, error) {
	if err := c.requirePhase(domain.PhaseMatch, domain.PhaseExecute); err != nil {
		return domain.StateFailed, err
	}
	return c.executeImpl(ctx, a, t)
}

// ExecuteWait blocks until (a, t) has been executed by someone and returns
// the published state. The target must already be claimed or executed.
func (c *Context) ExecuteWait(ctx context.Context, a domain.Action, t *target.Target) (domain.State, error) {
	st := t.OpState(a)
	if onStack(ctx, a, t) {
		return domain.StateFailed, zerr.With(domain.ErrDependencyCycle, "cycle", cyclePath(ctx, t))
	}
	st.WaitFor(target.OffsetExecuted)
	s := st.State()
	if s == domain.StateFailed {
		return s, failedTarget(t)
	}
	return s, nil
}

// ExecuteAsync submits an execute of (a, t) to the scheduler under cnt.
// Failures are published into the op-state and observed at aggregation.
func (c *Context) ExecuteAsync(ctx context.Context, a domain.Action, t *target.Target, cnt *scheduler.Count) {
	c.sched.Submit(cnt, func() {
		_, _ = c.executeImpl(ctx, a, t)
	})
}

func (c *Context) executeImpl(ctx context.Context, a domain.Action, t *target.Target) (domain.State, error) {
	st := t.OpState(a)

	for {
		switch off := st.Offset(); {
		case off == target.OffsetExecuted:
			s := st.State()
			if s == domain.StateFailed {
				return s, failedTarget(t)
			}
			return s, nil

		case off == target.OffsetApplied:
			if !st.TryAdvance(target.OffsetApplied, target.OffsetBusy) {
				continue
			}
			return c.invokeRecipe(ctx, a, t, st)

		case off == target.OffsetBusy:
			if onStack(ctx, a, t) {
				return domain.StateFailed,
					zerr.With(domain.ErrDependencyCycle, "cycle", cyclePath(ctx, t))
			}
			st.WaitFor(target.OffsetExecuted)

		default:
			// Executing an unmatched target is a sequencing bug in the
			// caller, not a build failure.
			return domain.StateFailed, zerr.With(zerr.With(domain.ErrWrongPhase,
				"target", t.String()), "task_offset", int(off))
		}
	}
}

// invokeRecipe runs the claimed target's recipe and publishes the result.
// The counter reaches executed on every exit path.
func (c *Context) invokeRecipe(ctx context.Context, a domain.Action, t *target.Target, st *target.OpState) (domain.State, error) {
	ctx = pushStack(ctx, a, t)

	var (
		s   domain.State
		err error
	)

	switch r := st.Recipe(); {
	case r == nil:
		// Match failed earlier; the state is already failed.
		s, err = domain.StateFailed, failedTarget(t)

	case target.IsNoop(r):
		s = domain.StateUnchanged

	case target.IsGroup(r):
		// The member's state lives in its group; drive the group and
		// leave a redirect behind.
		if t.Group == nil {
			s, err = domain.StateFailed, zerr.With(domain.ErrConfiguration, "target", t.String())
		} else if _, err = c.executeImpl(ctx, a, t.Group); err == nil {
			s = domain.StateGroup
		} else {
			s = domain.StateFailed
		}

	case target.IsDefault(r):
		s, _, err = c.executePrereqsImpl(ctx, a, t, target.TimeUnknown, nil, 0)

	default:
		var vtx vertexCloser = noopVertex{}
		if c.tracer != nil {
			_, vtx = c.tracer.Start(ctx, a.String()+" "+t.String())
		}
		s, err = r(ctx, a, t)
		if err != nil {
			vtx.Done(err)
		} else if s == domain.StateUnchanged {
			vtx.Cached()
			vtx.Done(nil)
		} else {
			vtx.Done(nil)
		}
	}

	if err != nil {
		s = domain.StateFailed
		// Diagnose at the point of failure; the callers see the failed
		// sentinel and unwind cooperatively.
		if c.log != nil && !errors.Is(err, domain.ErrTargetFailed) {
			c.log.Error(err)
		}
		err = failedTarget(t)
	}

	st.SetState(s)
	st.Advance(target.OffsetExecuted)
	return s, err
}

type vertexCloser interface {
	Cached()
	Done(error)
}

type noopVertex struct{}

func (noopVertex) Cached()    {}
func (noopVertex) Done(error) {}

// ExecutePrerequisites executes up to count (0 = all) prerequisites of t
// passing the filter, in the action's execution mode, waits for them, and
// aggregates. When mt is not the zero time the second result is the first
// prerequisite whose file is newer than mt (the "anything newer?" answer).
func (c *Context) ExecutePrerequisites(ctx context.Context, a domain.Action, t *target.Target,
	mt time.Time, filter func(*target.Target) bool, count int) (domain.State, *target.Target, error) {
	if err := c.requirePhase(domain.PhaseMatch, domain.PhaseExecute); err != nil {
		return domain.StateFailed, nil, err
	}
	return c.executePrereqsImpl(ctx, a, t, mt, filter, count)
}

func (c *Context) executePrereqsImpl(ctx context.Context, a domain.Action, t *target.Target,
	mt time.Time, filter func(*target.Target) bool, count int) (domain.State, *target.Target, error) {
	st := t.OpState(a)

	sel := make([]*target.Target, 0, len(st.PrerequisiteTargets))
	for _, pt := range st.PrerequisiteTargets {
		if pt == nil || (filter != nil && !filter(pt)) {
			continue
		}
		sel = append(sel, pt)
	}

	// The execution mode picks the traversal direction; the count caps
	// how many are taken from that end (0 means all remaining).
	if a.Mode() == domain.ModeReverse {
		for i, j := 0, len(sel)-1; i < j; i, j = i+1, j-1 {
			sel[i], sel[j] = sel[j], sel[i]
		}
	}
	if count > 0 && count < len(sel) {
		sel = sel[:count]
	}

	cnt := scheduler.NewCount()
	for _, pt := range sel {
		c.ExecuteAsync(ctx, a, pt, cnt)
	}
	c.sched.Wait(cnt)

	agg := domain.StateUnchanged
	var newer *target.Target
	for _, pt := range sel {
		s := c.observedState(a, pt)
		agg = agg.Merge(s)

		if !mt.IsZero() && pt.Type.File && newer == nil {
			pmt := pt.Mtime()
			// The equal case counts when the prerequisite actually
			// changed this run; equal mtimes from a fast rebuild must
			// not be mistaken for "up to date".
			if pmt.After(mt) || (pmt.Equal(mt) && s == domain.StateChanged) {
				newer = pt
			}
		}
	}

	if agg == domain.StateFailed {
		return agg, newer, failedTarget(t)
	}
	return agg, newer, nil
}

// observedState reads a target's published state, following the group
// redirect.
func (c *Context) observedState(a domain.Action, t *target.Target) domain.State {
	s := t.OpState(a).State()
	if s == domain.StateGroup && t.Group != nil {
		return t.Group.OpState(a).State()
	}
	return s
}
