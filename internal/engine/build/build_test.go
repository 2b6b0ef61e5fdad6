package build_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/engine/build"
	"go.trai.ch/mason/internal/engine/scope"
	"go.trai.ch/mason/internal/engine/target"
	"go.trai.ch/mason/internal/rules/file"
)

var update = domain.Action{Meta: domain.MetaPerform, Op: domain.OpUpdate}
var clean = domain.Action{Meta: domain.MetaPerform, Op: domain.OpClean}

// recipeRule matches everything and returns a fixed recipe.
type recipeRule struct {
	recipe  target.Recipe
	applied atomic.Int64
}

func (r *recipeRule) Match(context.Context, scope.Engine, domain.Action, *target.Target, string) (bool, error) {
	return true, nil
}

func (r *recipeRule) Apply(context.Context, scope.Engine, domain.Action, *target.Target) (target.Recipe, error) {
	r.applied.Add(1)
	return r.recipe, nil
}

func newTestContext(t *testing.T, m *domain.Manifest) *build.Context {
	t.Helper()
	c := build.NewContext(build.Options{Jobs: 2})
	t.Cleanup(c.Shutdown)
	require.NoError(t, c.Load(m))
	return c
}

func aliasDecl(name string, prereqs ...domain.PrereqDecl) domain.TargetDecl {
	return domain.TargetDecl{Type: "alias", Name: name, Prereqs: prereqs}
}

func aliasRef(name string) domain.PrereqDecl {
	return domain.PrereqDecl{Type: "alias", Name: name}
}

func findAlias(t *testing.T, c *build.Context, name string) *target.Target {
	t.Helper()
	tg, err := c.Targets().FindName(target.Alias, name)
	require.NoError(t, err)
	return tg
}

func TestMatch_PublishesRecipe(t *testing.T) {
	root := t.TempDir()
	c := newTestContext(t, &domain.Manifest{
		SrcRoot: root,
		Targets: []domain.TargetDecl{aliasDecl("a")},
	})

	counted := &recipeRule{recipe: func(context.Context, domain.Action, *target.Target) (domain.State, error) {
		return domain.StateChanged, nil
	}}
	c.Scopes().Root().InsertRule(domain.MetaNone, domain.OpNone, target.Alias, "test", counted)

	tg := findAlias(t, c, "a")

	c.EnterPhase(domain.PhaseMatch)
	s, err := c.Match(context.Background(), update, tg)
	require.NoError(t, err)
	assert.Equal(t, domain.StateUnknown, s)

	// After a non-failed match the recipe is published and the counter
	// is at least applied.
	st := tg.OpState(update)
	assert.NotNil(t, st.Recipe())
	assert.GreaterOrEqual(t, st.Offset(), target.OffsetApplied)
	assert.Equal(t, "test", st.RuleName)

	// Matching again is idempotent: the rule does not re-apply.
	_, err = c.Match(context.Background(), update, tg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counted.applied.Load())
}

func TestMatch_NoRuleFails(t *testing.T) {
	root := t.TempDir()
	c := newTestContext(t, &domain.Manifest{
		SrcRoot: root,
		Targets: []domain.TargetDecl{aliasDecl("a")},
	})

	tg := findAlias(t, c, "a")
	c.EnterPhase(domain.PhaseMatch)

	_, err := c.Match(context.Background(), update, tg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)
	assert.Equal(t, domain.StateFailed, tg.OpState(update).State())
}

func TestExecute_PhaseGated(t *testing.T) {
	root := t.TempDir()
	c := newTestContext(t, &domain.Manifest{
		SrcRoot: root,
		Targets: []domain.TargetDecl{aliasDecl("a")},
	})
	c.Scopes().Root().InsertRule(domain.MetaNone, domain.OpNone, nil, "any", &recipeRule{recipe: target.Noop})

	tg := findAlias(t, c, "a")

	// Executing during load or match is a detected invariant violation.
	_, err := c.Execute(context.Background(), update, tg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrWrongPhase)

	c.EnterPhase(domain.PhaseMatch)
	_, err = c.Execute(context.Background(), update, tg)
	assert.ErrorIs(t, err, domain.ErrWrongPhase)

	// And matching during execute likewise.
	c.EnterPhase(domain.PhaseExecute)
	_, err = c.Match(context.Background(), update, tg)
	assert.ErrorIs(t, err, domain.ErrWrongPhase)
}

func TestExecute_RunsRecipeOnce(t *testing.T) {
	root := t.TempDir()
	c := newTestContext(t, &domain.Manifest{
		SrcRoot: root,
		Targets: []domain.TargetDecl{aliasDecl("a")},
	})

	var runs atomic.Int64
	r := &recipeRule{recipe: func(context.Context, domain.Action, *target.Target) (domain.State, error) {
		runs.Add(1)
		return domain.StateChanged, nil
	}}
	c.Scopes().Root().InsertRule(domain.MetaNone, domain.OpNone, target.Alias, "test", r)

	tg := findAlias(t, c, "a")

	c.EnterPhase(domain.PhaseMatch)
	_, err := c.Match(context.Background(), update, tg)
	require.NoError(t, err)

	c.EnterPhase(domain.PhaseExecute)

	// Hammer the same target from several goroutines: exactly one
	// invocation, every caller observes the published state.
	var wg sync.WaitGroup
	states := make([]domain.State, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := c.Execute(context.Background(), update, tg)
			assert.NoError(t, err)
			states[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), runs.Load())
	for _, s := range states {
		assert.Equal(t, domain.StateChanged, s)
	}
	assert.Equal(t, target.OffsetExecuted, tg.OpState(update).Offset())
	assert.Equal(t, domain.StateChanged, tg.OpState(update).State())
}

func TestMatch_DependencyCycle(t *testing.T) {
	root := t.TempDir()
	c := newTestContext(t, &domain.Manifest{
		SrcRoot: root,
		Targets: []domain.TargetDecl{
			aliasDecl("a", aliasRef("b")),
			aliasDecl("b", aliasRef("a")),
		},
	})
	c.Scopes().Root().InsertRule(domain.MetaNone, domain.OpNone, target.Alias, "alias", file.AliasRule{})

	tg := findAlias(t, c, "a")
	c.EnterPhase(domain.PhaseMatch)

	_, err := c.Match(context.Background(), update, tg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDependencyCycle)
}

func TestExecutePrerequisites_Aggregation(t *testing.T) {
	root := t.TempDir()
	c := newTestContext(t, &domain.Manifest{
		SrcRoot: root,
		Targets: []domain.TargetDecl{
			aliasDecl("all", aliasRef("ok"), aliasRef("busy")),
			aliasDecl("ok"),
			aliasDecl("busy"),
		},
	})

	unchanged := &recipeRule{recipe: func(context.Context, domain.Action, *target.Target) (domain.State, error) {
		return domain.StateUnchanged, nil
	}}
	changed := &recipeRule{recipe: func(context.Context, domain.Action, *target.Target) (domain.State, error) {
		return domain.StateChanged, nil
	}}

	// Register distinct rules by name and steer per target with the
	// "rule" hint variable.
	rootScope := c.Scopes().Root()
	rootScope.InsertRule(domain.MetaNone, domain.OpNone, target.Alias, "alias", file.AliasRule{})
	rootScope.InsertRule(domain.MetaNone, domain.OpNone, target.Alias, "keep", unchanged)
	rootScope.InsertRule(domain.MetaNone, domain.OpNone, target.Alias, "make", changed)
	findAlias(t, c, "ok").SetVar(domain.N("rule"), "keep")
	findAlias(t, c, "busy").SetVar(domain.N("rule"), "make")

	all := findAlias(t, c, "all")
	c.EnterPhase(domain.PhaseMatch)
	_, err := c.Match(context.Background(), update, all)
	require.NoError(t, err)

	c.EnterPhase(domain.PhaseExecute)
	s, err := c.Execute(context.Background(), update, all)
	require.NoError(t, err)
	// One changed prerequisite makes the aggregate changed.
	assert.Equal(t, domain.StateChanged, s)
}

func TestExecutePrerequisites_FailurePropagates(t *testing.T) {
	root := t.TempDir()
	c := newTestContext(t, &domain.Manifest{
		SrcRoot: root,
		Targets: []domain.TargetDecl{
			aliasDecl("all", aliasRef("bad")),
			aliasDecl("bad"),
		},
	})

	failing := &recipeRule{recipe: func(context.Context, domain.Action, *target.Target) (domain.State, error) {
		return domain.StateFailed, domain.ErrTargetFailed
	}}
	s := c.Scopes().Root()
	s.InsertRule(domain.MetaNone, domain.OpNone, target.Alias, "alias", file.AliasRule{})
	s.InsertRule(domain.MetaNone, domain.OpNone, target.Alias, "bad", failing)
	findAlias(t, c, "bad").SetVar(domain.N("rule"), "bad")

	all := findAlias(t, c, "all")
	c.EnterPhase(domain.PhaseMatch)
	_, err := c.Match(context.Background(), update, all)
	require.NoError(t, err)

	c.EnterPhase(domain.PhaseExecute)
	st, err := c.Execute(context.Background(), update, all)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTargetFailed)
	assert.Equal(t, domain.StateFailed, st)
}

func TestExecutePrerequisites_ReverseCount(t *testing.T) {
	root := t.TempDir()
	c := newTestContext(t, &domain.Manifest{
		SrcRoot: root,
		Targets: []domain.TargetDecl{
			aliasDecl("all", aliasRef("c1"), aliasRef("c2"), aliasRef("c3")),
			aliasDecl("c1"), aliasDecl("c2"), aliasDecl("c3"),
		},
	})

	var mu sync.Mutex
	var ran []string
	recording := &recipeRule{}
	recording.recipe = func(_ context.Context, _ domain.Action, tg *target.Target) (domain.State, error) {
		mu.Lock()
		ran = append(ran, tg.Name)
		mu.Unlock()
		return domain.StateChanged, nil
	}

	s := c.Scopes().Root()
	s.InsertRule(domain.MetaNone, domain.OpNone, target.Alias, "alias", file.AliasRule{})
	s.InsertRule(domain.MetaNone, domain.OpNone, target.Alias, "rec", recording)
	for _, n := range []string{"c1", "c2", "c3"} {
		findAlias(t, c, n).SetVar(domain.N("rule"), "rec")
	}

	all := findAlias(t, c, "all")
	c.EnterPhase(domain.PhaseMatch)
	_, err := c.Match(context.Background(), clean, all)
	require.NoError(t, err)

	c.EnterPhase(domain.PhaseExecute)
	// Clean runs in reverse mode: count 1 selects the last declared
	// prerequisite.
	s2, _, err := c.ExecutePrerequisites(context.Background(), clean, all, target.TimeUnknown, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StateChanged, s2)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"c3"}, ran)
}

func TestUnmatch(t *testing.T) {
	root := t.TempDir()
	c := newTestContext(t, &domain.Manifest{
		SrcRoot: root,
		Targets: []domain.TargetDecl{aliasDecl("a")},
	})
	c.Scopes().Root().InsertRule(domain.MetaNone, domain.OpNone, target.Alias, "any",
		&recipeRule{recipe: target.Noop})

	tg := findAlias(t, c, "a")
	c.EnterPhase(domain.PhaseMatch)
	_, err := c.Match(context.Background(), update, tg)
	require.NoError(t, err)

	st := tg.OpState(update)
	st.AddDependent()

	// A noop (unchanged) target can be unmatched by its only dependent.
	assert.True(t, c.Unmatch(update, tg))
	assert.Equal(t, 0, st.Dependents())
}

func TestTryMatch_NoRule(t *testing.T) {
	root := t.TempDir()
	c := newTestContext(t, &domain.Manifest{
		SrcRoot: root,
		Targets: []domain.TargetDecl{aliasDecl("a")},
	})

	tg := findAlias(t, c, "a")
	c.EnterPhase(domain.PhaseMatch)

	_, matched, err := c.TryMatch(context.Background(), update, tg)
	require.NoError(t, err)
	assert.False(t, matched)

	// The target is untouched and a later match can still claim it.
	assert.Equal(t, target.OffsetIdle, tg.OpState(update).Offset())
}
