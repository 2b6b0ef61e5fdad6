package target

import (
	"sync"
	"sync/atomic"

	"go.trai.ch/mason/internal/core/domain"
)

// Offset is a position in the per-(target, action) task lifecycle. The
// task counter advances, except that an abandoned try-match stores
// OffsetIdle back; transitions are compare-exchanges and observers wait
// on the counter reaching an offset.
type Offset = uint32

// Task counter offsets, in lifecycle order.
const (
	// OffsetIdle: nothing has happened to the target under this action.
	OffsetIdle Offset = iota
	// OffsetTouched: a worker holds the match lock.
	OffsetTouched
	// OffsetTried: rule search is in progress.
	OffsetTried
	// OffsetMatched: a rule matched, apply is in progress.
	OffsetMatched
	// OffsetApplied: the recipe is published and readable.
	OffsetApplied
	// OffsetBusy: a worker holds the execute claim.
	OffsetBusy
	// OffsetExecuted: the final state is published.
	OffsetExecuted
)

// OpState is the per-(target, action) mutable block: the matched rule, the
// prepared recipe, the published state, the task counter, and the resolved
// prerequisite targets.
type OpState struct {
	task       atomic.Uint32
	dependents atomic.Int32

	mu   sync.Mutex
	cond *sync.Cond

	// RuleName and Rule record the matched rule. Rule is opaque here (the
	// match engine owns the concrete type); RuleName feeds diagnostics and
	// the depdb rule identity line.
	RuleName string
	Rule     any

	recipe Recipe
	state  domain.State

	// PrerequisiteTargets is the action-resolved prerequisite list,
	// populated during match under the target lock (cached entries from
	// the depdb are appended here as well).
	PrerequisiteTargets []*Target
}

func newOpState() *OpState {
	s := &OpState{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Offset returns the current task counter value.
func (s *OpState) Offset() Offset {
	return s.task.Load()
}

// TryAdvance compare-exchanges the task counter from one offset to the
// next. It reports whether the caller won the transition.
func (s *OpState) TryAdvance(from, to Offset) bool {
	if !s.task.CompareAndSwap(from, to) {
		return false
	}
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
	return true
}

// Advance stores the offset unconditionally and wakes waiters. Only the
// worker holding the lock (a prior successful TryAdvance) may call it.
func (s *OpState) Advance(to Offset) {
	s.task.Store(to)
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// WaitBeyond blocks until the task counter moves off the given offset in
// either direction (an abandoned try-match restores a lower offset).
func (s *OpState) WaitBeyond(off Offset) {
	s.mu.Lock()
	for s.task.Load() == off {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// WaitFor blocks until the task counter is at least the given offset.
// This is the only blocking primitive on a target.
func (s *OpState) WaitFor(off Offset) {
	if s.task.Load() >= off {
		return
	}
	s.mu.Lock()
	for s.task.Load() < off {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// SetRecipe publishes the recipe. The publish happens-before any observer
// of OffsetApplied reads it: the caller advances the counter afterwards and
// observers load the counter first.
func (s *OpState) SetRecipe(r Recipe) {
	s.mu.Lock()
	s.recipe = r
	if IsNoop(r) {
		// No point executing a noop; the target is known unchanged.
		s.state = domain.StateUnchanged
	} else if IsGroup(r) {
		s.state = domain.StateGroup
	} else {
		s.state = domain.StateUnknown
	}
	s.mu.Unlock()
}

// Recipe returns the published recipe (nil before OffsetApplied).
func (s *OpState) Recipe() Recipe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipe
}

// State returns the published target state.
func (s *OpState) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState publishes the target state.
func (s *OpState) SetState(st domain.State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// AddDependent counts another target that has matched this one as a
// prerequisite.
func (s *OpState) AddDependent() {
	s.dependents.Add(1)
}

// Dependents returns the current dependent count.
func (s *OpState) Dependents() int {
	return int(s.dependents.Load())
}

// DropDependent removes one dependent registration.
func (s *OpState) DropDependent() {
	s.dependents.Add(-1)
}
