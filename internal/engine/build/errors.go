package build

import (
	"go.trai.ch/zerr"

	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/engine/target"
)

func wrongPhase(p domain.Phase) error {
	return zerr.With(domain.ErrWrongPhase, "phase", p.String())
}

func failedTarget(t *target.Target) error {
	return zerr.With(domain.ErrTargetFailed, "target", t.String())
}
