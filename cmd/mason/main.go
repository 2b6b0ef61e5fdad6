// Package main is the entry point for the mason build tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/grindlemire/graft"

	"go.trai.ch/mason/cmd/mason/commands"
	"go.trai.ch/mason/internal/app"
	"go.trai.ch/mason/internal/core/domain"
	_ "go.trai.ch/mason/internal/wiring"
)

// ComponentProvider is a function that returns the application components.
type ComponentProvider func(context.Context) (*app.Components, error)

func main() {
	// The logger node resolves before flags parse, so verbosity travels
	// through the environment.
	seedVerbosity(os.Args[1:])

	os.Exit(run(context.Background(), os.Args[1:], os.Stderr, func(ctx context.Context) (*app.Components, error) {
		c, _, err := graft.ExecuteFor[*app.Components](ctx)
		return c, err
	}))
}

func run(ctx context.Context, args []string, stderr io.Writer, provider ComponentProvider) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, err := provider(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return 2
	}

	cli := commands.New(components.App)
	cli.SetArgs(args)

	if err := cli.Execute(ctx); err != nil {
		switch {
		case errors.Is(err, domain.ErrBuildFailed):
			return 1
		case errors.Is(err, domain.ErrUnknownOperation),
			errors.Is(err, domain.ErrConfiguration):
			components.Logger.Error(err)
			return 2
		default:
			components.Logger.Error(err)
			return 1
		}
	}
	return 0
}

func seedVerbosity(args []string) {
	if os.Getenv("MASON_VERBOSE") != "" {
		return
	}
	n := 0
	for _, a := range args {
		switch {
		case a == "--verbose" || a == "-v":
			n++
		case strings.HasPrefix(a, "-v") && strings.Trim(a, "-v") == "":
			n += len(a) - 1
		}
	}
	if n > 0 {
		_ = os.Setenv("MASON_VERBOSE", fmt.Sprint(n))
	}
}
