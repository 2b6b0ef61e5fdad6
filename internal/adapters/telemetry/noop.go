// Package telemetry provides the progress tracer adapters.
package telemetry

import (
	"context"

	"go.trai.ch/mason/internal/core/ports"
)

// NoopTracer is a no-op implementation of ports.Tracer.
type NoopTracer struct{}

// NewNoopTracer creates a tracer that records nothing.
func NewNoopTracer() *NoopTracer {
	return &NoopTracer{}
}

// Start returns a no-op vertex.
func (t *NoopTracer) Start(ctx context.Context, _ string) (context.Context, ports.Vertex) {
	return ctx, noopVertex{}
}

// Close does nothing.
func (t *NoopTracer) Close() error { return nil }

type noopVertex struct{}

func (noopVertex) Write(p []byte) (int, error) { return len(p), nil }
func (noopVertex) Cached()                     {}
func (noopVertex) Done(error)                  {}
