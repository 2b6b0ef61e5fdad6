// Package shell provides the tool runner adapter over os/exec.
package shell

import (
	"context"
	"io"
	"os/exec"

	"go.trai.ch/zerr"

	"go.trai.ch/mason/internal/core/ports"
)

var _ ports.ToolRunner = (*Runner)(nil)

// Runner implements ports.ToolRunner using os/exec.
type Runner struct {
	log ports.Logger
}

// NewRunner creates a new tool runner.
func NewRunner(log ports.Logger) *Runner {
	return &Runner{log: log}
}

// Run invokes the tool and waits for it, streaming combined output to out.
func (r *Runner) Run(ctx context.Context, name string, args []string, out io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // tool comes from build configuration
	cmd.Stdout = out
	cmd.Stderr = out

	if r.log != nil {
		r.log.Debug("running tool", "tool", name, "args", args)
	}

	if err := cmd.Run(); err != nil {
		return wrapExit(err, name)
	}
	return nil
}

// Start invokes the tool with its stdout exposed for streaming; stderr
// goes to the logger.
func (r *Runner) Start(ctx context.Context, name string, args []string) (ports.ToolProcess, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // tool comes from build configuration
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to pipe tool output")
	}
	cmd.Stderr = &stderrWriter{log: r.log}

	if r.log != nil {
		r.log.Debug("running tool", "tool", name, "args", args)
	}

	if err := cmd.Start(); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to start tool"), "tool", name)
	}
	return &process{cmd: cmd, out: stdout, name: name}, nil
}

type process struct {
	cmd  *exec.Cmd
	out  io.Reader
	name string
}

func (p *process) Out() io.Reader { return p.out }

func (p *process) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		return wrapExit(err, p.name)
	}
	return nil
}

func (p *process) Kill() error {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	return p.cmd.Wait()
}

func wrapExit(err error, name string) error {
	code := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	}
	return zerr.With(zerr.With(zerr.Wrap(err, "tool failed"), "tool", name), "exit_code", code)
}

type stderrWriter struct {
	log ports.Logger
}

func (w *stderrWriter) Write(p []byte) (int, error) {
	if w.log != nil && len(p) > 0 {
		w.log.Warn(string(p))
	}
	return len(p), nil
}
