package build

import (
	"context"

	"go.trai.ch/zerr"

	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/engine/scope"
	"go.trai.ch/mason/internal/engine/target"
)

// Match selects and applies a rule for (a, t), leaving the op-state at
// applied with the recipe published. Callers racing on the same target
// either win the lock or wait for the winner's result.
func (c *Context) Match(ctx context.Context, a domain.Action, t *target.Target) (domain.State, error) {
	if err := c.requirePhase(domain.PhaseMatch); err != nil {
		return domain.StateFailed, err
	}
	st, err := c.matchImpl(ctx, a, t, true)
	return st, err
}

// TryMatch is Match without failing when no rule applies; the second
// result reports whether a rule matched.
func (c *Context) TryMatch(ctx context.Context, a domain.Action, t *target.Target) (domain.State, bool, error) {
	if err := c.requirePhase(domain.PhaseMatch); err != nil {
		return domain.StateFailed, false, err
	}
	st, err := c.matchImpl(ctx, a, t, false)
	if err != nil {
		return st, false, err
	}
	return st, t.OpState(a).Offset() >= target.OffsetApplied, nil
}

// MatchInner matches t under the inner (perform) counterpart of a. Outer
// meta-operations use it to piggy-back on the perform rules.
func (c *Context) MatchInner(ctx context.Context, a domain.Action, t *target.Target) (domain.State, error) {
	return c.Match(ctx, domain.Action{Meta: domain.MetaPerform, Op: a.Op}, t)
}

func (c *Context) matchImpl(ctx context.Context, a domain.Action, t *target.Target, failOnNoRule bool) (domain.State, error) {
	st := t.OpState(a)

	for {
		switch off := st.Offset(); {
		case off >= target.OffsetApplied:
			// Already matched (or failed to). The recipe publish
			// happened before the counter advance, so reading here is
			// ordered.
			s := st.State()
			if s == domain.StateFailed {
				return s, failedTarget(t)
			}
			return s, nil

		case off == target.OffsetIdle:
			if !st.TryAdvance(target.OffsetIdle, target.OffsetTouched) {
				continue
			}
			return c.matchLocked(ctx, a, t, st, failOnNoRule)

		default:
			// Another worker holds the match lock. An ancestor of ours
			// holding it means the graph loops back through us.
			if onStack(ctx, a, t) {
				return domain.StateFailed,
					zerr.With(domain.ErrDependencyCycle, "cycle", cyclePath(ctx, t))
			}
			// The holder either finishes (applied) or abandons a
			// try-match (back to idle); re-examine on any movement.
			st.WaitBeyond(off)
		}
	}
}

// matchLocked runs rule selection and application with the match lock
// held. All exit paths advance the counter to applied so waiters wake.
func (c *Context) matchLocked(ctx context.Context, a domain.Action, t *target.Target, st *target.OpState, failOnNoRule bool) (domain.State, error) {
	ctx = pushStack(ctx, a, t)
	st.Advance(target.OffsetTried)

	hint := scope.LookupString(c.scopeOf(t), t, domain.N("rule"))

	nr, err := c.selectRule(ctx, a, t, hint)
	if err != nil {
		return c.matchFailed(st, t, err)
	}
	if nr == nil {
		if failOnNoRule {
			return c.matchFailed(st, t, zerr.With(zerr.With(domain.ErrRuleNotFound,
				"target", t.String()), "action", a.String()))
		}
		// Leave the target untouched for a later attempt.
		st.Advance(target.OffsetIdle)
		return domain.StateUnknown, nil
	}

	st.RuleName, st.Rule = nr.Name, nr.Rule
	st.Advance(target.OffsetMatched)

	recipe, err := nr.Rule.Apply(ctx, c, a, t)
	if err != nil {
		return c.matchFailed(st, t, err)
	}

	st.SetRecipe(recipe)
	st.Advance(target.OffsetApplied)
	return st.State(), nil
}

// selectRule walks the rule registry from the target's base scope up
// through the root; the first rule whose Match returns true wins.
func (c *Context) selectRule(ctx context.Context, a domain.Action, t *target.Target, hint string) (*scope.NamedRule, error) {
	for s := c.scopeOf(t); s != nil; s = s.Parent() {
		for _, nr := range s.Rules(a, t.Type) {
			if hint != "" && nr.Name != hint {
				continue
			}
			ok, err := nr.Rule.Match(ctx, c, a, t, hint)
			if err != nil {
				return nil, err
			}
			if ok {
				return &nr, nil
			}
		}
	}
	return nil, nil
}

func (c *Context) matchFailed(st *target.OpState, t *target.Target, err error) (domain.State, error) {
	st.SetState(domain.StateFailed)
	st.Advance(target.OffsetApplied)
	if c.log != nil {
		c.log.Error(err)
	}
	return domain.StateFailed, err
}

func (c *Context) scopeOf(t *target.Target) *scope.Scope {
	if s := c.scopes.FindOut(t.Dir); s != nil {
		return s
	}
	return c.scopes.Root()
}

// MatchPrerequisites searches and matches every declared prerequisite of
// t, recording the resolved targets in the op-state and registering t as
// their dependent.
func (c *Context) MatchPrerequisites(ctx context.Context, a domain.Action, t *target.Target) error {
	st := t.OpState(a)
	for _, p := range t.Prerequisites {
		pt, err := c.Search(p)
		if err != nil {
			return err
		}
		if _, err := c.matchImpl(ctx, a, pt, true); err != nil {
			if c.keepGoing {
				st.PrerequisiteTargets = append(st.PrerequisiteTargets, pt)
				pt.OpState(a).AddDependent()
				continue
			}
			return err
		}
		pt.OpState(a).AddDependent()
		st.PrerequisiteTargets = append(st.PrerequisiteTargets, pt)
	}
	return nil
}

// Unmatch abandons a matched prerequisite when executing it would be
// pointless: the target is already known unchanged, or other dependents
// remain to drive it. It reports whether the caller may drop the target
// from its prerequisite set.
func (c *Context) Unmatch(a domain.Action, t *target.Target) bool {
	st := t.OpState(a)
	if st.Offset() != target.OffsetApplied {
		return false
	}
	if st.State() == domain.StateUnchanged || st.Dependents() > 1 {
		st.DropDependent()
		return true
	}
	return false
}

// ResolveGroupMembers makes a see-through group's members available at
// match time by matching the group itself first.
func (c *Context) ResolveGroupMembers(ctx context.Context, a domain.Action, g *target.Target) ([]*target.Target, error) {
	if !g.Type.SeeThrough {
		return nil, nil
	}
	if len(g.Members) == 0 {
		if _, err := c.matchImpl(ctx, a, g, true); err != nil {
			return nil, err
		}
	}
	return g.Members, nil
}
