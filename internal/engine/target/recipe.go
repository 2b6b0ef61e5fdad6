package target

import (
	"context"
	"reflect"

	"go.trai.ch/mason/internal/core/domain"
)

// Recipe realises a target under an action and returns the resulting state.
type Recipe func(ctx context.Context, a domain.Action, t *Target) (domain.State, error)

// Sentinel recipes. They are recognised by identity (see IsNoop and
// friends), so rules must return these exact values rather than
// equivalent closures.
var (
	// Noop does nothing; a target with this recipe is published as
	// unchanged without executing.
	Noop Recipe = noopRecipe

	// Default executes the target's prerequisites and aggregates their
	// states.
	Default Recipe = defaultRecipe

	// Group redirects execution to the target's group.
	Group Recipe = groupRecipe
)

func noopRecipe(context.Context, domain.Action, *Target) (domain.State, error) {
	return domain.StateUnchanged, nil
}

func defaultRecipe(context.Context, domain.Action, *Target) (domain.State, error) {
	// The execute engine special-cases this sentinel and runs the
	// prerequisite set itself; reaching the body means no override.
	return domain.StateUnchanged, nil
}

func groupRecipe(context.Context, domain.Action, *Target) (domain.State, error) {
	return domain.StateGroup, nil
}

// IsNoop reports whether r is the Noop sentinel.
func IsNoop(r Recipe) bool { return recipeID(r) == recipeID(Noop) }

// IsDefault reports whether r is the Default sentinel.
func IsDefault(r Recipe) bool { return recipeID(r) == recipeID(Default) }

// IsGroup reports whether r is the Group sentinel.
func IsGroup(r Recipe) bool { return recipeID(r) == recipeID(Group) }

func recipeID(r Recipe) uintptr {
	if r == nil {
		return 0
	}
	return reflect.ValueOf(r).Pointer()
}
