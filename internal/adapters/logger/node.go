package logger

import (
	"context"
	"os"
	"strconv"

	"github.com/grindlemire/graft"

	"go.trai.ch/mason/internal/core/ports"
)

// NodeID is the unique identifier for the logger Graft node.
const NodeID graft.ID = "adapter.logger"

func init() {
	graft.Register(graft.Node[ports.Logger]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Logger, error) {
			// The CLI sets MASON_VERBOSE before nodes resolve.
			v, _ := strconv.Atoi(os.Getenv("MASON_VERBOSE"))
			return New(v), nil
		},
	})
}
