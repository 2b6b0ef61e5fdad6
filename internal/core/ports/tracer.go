package ports

import (
	"context"
	"io"
)

//go:generate go run go.uber.org/mock/mockgen -source=tracer.go -destination=mocks/mock_tracer.go -package=mocks

// Tracer records build progress, one vertex per executed target.
type Tracer interface {
	// Start begins a vertex for the named unit of work.
	Start(ctx context.Context, name string) (context.Context, Vertex)

	// Close flushes the recording session.
	Close() error
}

// Vertex is one unit of recorded work.
type Vertex interface {
	io.Writer

	// Cached marks the vertex as up to date (no work performed).
	Cached()

	// Done completes the vertex, with err recording a failure.
	Done(err error)
}
