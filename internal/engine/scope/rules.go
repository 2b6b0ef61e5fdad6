package scope

import (
	"context"
	"time"

	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/engine/target"
)

// Engine is the slice of the build engine exposed to rules. The concrete
// implementation lives in the build package; rules receive it in Match and
// Apply so they can resolve, match and directly update prerequisites.
type Engine interface {
	// Phase returns the current global phase.
	Phase() domain.Phase

	// Scopes returns the scope tree.
	Scopes() *Map

	// Targets returns the target store.
	Targets() *target.Set

	// Search resolves a prerequisite to its target, publishing the
	// binding on first resolution.
	Search(p *target.Prerequisite) (*target.Target, error)

	// Match runs the match engine for (a, t).
	Match(ctx context.Context, a domain.Action, t *target.Target) (domain.State, error)

	// MatchPrerequisites searches and matches all of t's declared
	// prerequisites and records them in the op-state.
	MatchPrerequisites(ctx context.Context, a domain.Action, t *target.Target) error

	// ExecuteDirect executes t synchronously. Unlike Execute it is also
	// permitted during the match phase (dynamic prerequisite updates).
	ExecuteDirect(ctx context.Context, a domain.Action, t *target.Target) (domain.State, error)

	// ExecutePrerequisites executes up to count (0 = all) prerequisites of
	// t that pass the filter, in the action's execution mode, and returns
	// the aggregated state plus the first prerequisite newer than mt
	// (nil if none or mt is the zero time).
	ExecutePrerequisites(ctx context.Context, a domain.Action, t *target.Target,
		mt time.Time, filter func(*target.Target) bool, count int) (domain.State, *target.Target, error)
}

// Rule matches targets to recipes for an action.
type Rule interface {
	// Match reports whether this rule can build t under a. The hint names
	// the rule the author requested, empty for any.
	Match(ctx context.Context, e Engine, a domain.Action, t *target.Target, hint string) (bool, error)

	// Apply prepares and returns the recipe. It runs with the target lock
	// held and may synchronously search/match prerequisites.
	Apply(ctx context.Context, e Engine, a domain.Action, t *target.Target) (target.Recipe, error)
}

// ruleKey addresses one registration slot. MetaNone, OpNone and a nil type
// act as wildcards; wildcard entries lose to exact ones at lookup.
type ruleKey struct {
	meta domain.MetaOpID
	op   domain.OpID
	tt   *target.Type
}

// NamedRule pairs a rule with its registration name (the depdb rule
// identity).
type NamedRule struct {
	Name string
	Rule Rule
}

type ruleTable struct {
	entries map[ruleKey][]NamedRule
}

// InsertRule registers a rule in this scope for the given meta-operation,
// operation and target type. Zero meta/op and a nil type register a
// wildcard slot.
func (s *Scope) InsertRule(meta domain.MetaOpID, op domain.OpID, tt *target.Type, name string, r Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules.entries == nil {
		s.rules.entries = make(map[ruleKey][]NamedRule)
	}
	k := ruleKey{meta: meta, op: op, tt: tt}
	s.rules.entries[k] = append(s.rules.entries[k], NamedRule{Name: name, Rule: r})
}

// Rules returns the candidate rules of this single scope for (a, tt), most
// specific first: exact (meta, op) before wildcard slots, the most derived
// matching target type before its bases, declaration order within a slot.
func (s *Scope) Rules(a domain.Action, tt *target.Type) []NamedRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rules.entries == nil {
		return nil
	}

	keyVariants := [...]struct {
		meta domain.MetaOpID
		op   domain.OpID
	}{
		{a.Meta, a.Op},
		{a.Meta, domain.OpNone},
		{domain.MetaNone, a.Op},
		{domain.MetaNone, domain.OpNone},
	}

	var out []NamedRule
	for b := tt; b != nil; b = b.Base {
		for _, kv := range keyVariants {
			out = append(out, s.rules.entries[ruleKey{kv.meta, kv.op, b}]...)
		}
	}
	for _, kv := range keyVariants {
		out = append(out, s.rules.entries[ruleKey{kv.meta, kv.op, nil}]...)
	}
	return out
}
