package telemetry

import (
	"context"
	"os"

	"github.com/grindlemire/graft"

	"go.trai.ch/mason/internal/adapters/telemetry/progrock"
	"go.trai.ch/mason/internal/core/ports"
)

// TracerNodeID is the unique identifier for the tracer Graft node.
const TracerNodeID graft.ID = "adapter.telemetry"

func init() {
	graft.Register(graft.Node[ports.Tracer]{
		ID:        TracerNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Tracer, error) {
			// The progress tape wants a terminal of its own; opt in
			// explicitly.
			if os.Getenv("MASON_PROGRESS") != "" {
				return progrock.New(), nil
			}
			return NewNoopTracer(), nil
		},
	})
}
