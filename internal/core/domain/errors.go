package domain

import "go.trai.ch/zerr"

var (
	// ErrBuildFailed is returned when any requested root target fails.
	ErrBuildFailed = zerr.New("build failed")

	// ErrRuleNotFound is returned when no rule matches a target and the
	// caller asked for failure on mismatch.
	ErrRuleNotFound = zerr.New("no rule to update target")

	// ErrTargetNotFound is returned when a prerequisite names a target
	// that does not exist and cannot be searched into existence.
	ErrTargetNotFound = zerr.New("target not found")

	// ErrAmbiguousTarget is returned when a target reference resolves to
	// more than one target.
	ErrAmbiguousTarget = zerr.New("ambiguous target reference")

	// ErrUnknownOperation is returned for an operation name the driver
	// does not recognise. Maps to the usage exit code.
	ErrUnknownOperation = zerr.New("unknown operation")

	// ErrConfiguration is returned for invalid buildfile or variable
	// values. Maps to the usage exit code.
	ErrConfiguration = zerr.New("configuration error")

	// ErrDependencyCycle is returned when a target lock is requested for a
	// target already held by an ancestor of the requesting worker.
	ErrDependencyCycle = zerr.New("dependency cycle detected")

	// ErrTargetFailed is the cooperative-cancellation sentinel: a match or
	// execute call observed a failed target. Caught at the driver
	// boundary; keep-going suppresses it for siblings.
	ErrTargetFailed = zerr.New("target failed")

	// Invariant violations. These abort the build and are never suppressed
	// by keep-going.

	// ErrWrongPhase is returned when an engine operation runs outside its
	// required phase.
	ErrWrongPhase = zerr.New("operation invoked in wrong phase")

	// ErrExtensionConflict is returned when a target's extension is
	// refined a second time with a different value.
	ErrExtensionConflict = zerr.New("conflicting target extension")

	// ErrPrerequisiteRebound is returned when a prerequisite is published
	// with a second, different resolved target.
	ErrPrerequisiteRebound = zerr.New("prerequisite resolved to a different target")

	// ErrDepdbCorrupt is returned when the dependency database terminator
	// or structure is invalid beyond the usual truncate-and-rewrite path.
	ErrDepdbCorrupt = zerr.New("dependency database corrupt")
)
