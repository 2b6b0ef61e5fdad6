package ports

import (
	"context"
	"io"
)

// ToolRunner defines the interface for invoking external tools (compilers
// and the like) on behalf of rules.
//
//go:generate go run go.uber.org/mock/mockgen -source=runner.go -destination=mocks/mock_runner.go -package=mocks
type ToolRunner interface {
	// Run invokes the tool and waits for it, streaming its combined
	// output to out. A non-zero exit is returned as an error carrying the
	// exit code.
	Run(ctx context.Context, name string, args []string, out io.Writer) error

	// Start invokes the tool with its stdout available for streaming.
	// The caller must Wait (or Kill) the returned process.
	Start(ctx context.Context, name string, args []string) (ToolProcess, error)
}

// ToolProcess is a started tool invocation.
type ToolProcess interface {
	// Out returns the tool's standard output stream.
	Out() io.Reader

	// Wait reaps the process. A non-zero exit is an error carrying the
	// exit code.
	Wait() error

	// Kill terminates the process early (an abandoned extraction run).
	Kill() error
}
