package app_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"go.trai.ch/mason/internal/adapters/logger"
	"go.trai.ch/mason/internal/adapters/telemetry"
	"go.trai.ch/mason/internal/app"
	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/core/ports"
	"go.trai.ch/mason/internal/core/ports/mocks"
)

type stubProc struct{ r io.Reader }

func (p stubProc) Out() io.Reader { return p.r }
func (p stubProc) Wait() error    { return nil }
func (p stubProc) Kill() error    { return nil }

func manifestFor(root string) *domain.Manifest {
	return &domain.Manifest{
		SrcRoot: root,
		Targets: []domain.TargetDecl{
			{Type: "obj", Name: "a", Prereqs: []domain.PrereqDecl{{Type: "cxx", Name: "a"}}},
			{Type: "obj", Name: "b", Prereqs: []domain.PrereqDecl{{Type: "cxx", Name: "b"}}},
		},
	}
}

func writeSources(t *testing.T, root string) {
	t.Helper()
	old := time.Now().Add(-time.Hour)
	for _, n := range []string{"a", "b"} {
		p := filepath.Join(root, n+".cxx")
		require.NoError(t, os.WriteFile(p, []byte("int x;"), 0o644))
		require.NoError(t, os.Chtimes(p, old, old))
	}
}

func newApp(t *testing.T, ctrl *gomock.Controller, root string) (*app.App, *mocks.MockToolRunner) {
	t.Helper()

	loader := mocks.NewMockConfigLoader(ctrl)
	loader.EXPECT().Load(gomock.Any(), gomock.Any()).
		DoAndReturn(func(string, string) (*domain.Manifest, error) {
			return manifestFor(root), nil
		}).AnyTimes()

	runner := mocks.NewMockToolRunner(ctrl)

	a := app.New(loader, runner, telemetry.NewNoopTracer(), logger.NewWriter(io.Discard, 0))
	return a, runner
}

func expectExtraction(runner *mocks.MockToolRunner, root string, names ...string) {
	for _, n := range names {
		src, _ := filepath.Abs(filepath.Join(root, n+".cxx"))
		runner.EXPECT().
			Start(gomock.Any(), "c++", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, args []string) (ports.ToolProcess, error) {
				// Answer for whichever source this invocation names.
				for _, a := range args {
					if strings.HasSuffix(a, ".cxx") {
						return stubProc{r: strings.NewReader("^: " + a + "\n")}, nil
					}
				}
				return stubProc{r: strings.NewReader("^: " + src + "\n")}, nil
			})
	}
}

func expectCompiles(t *testing.T, runner *mocks.MockToolRunner, times int) {
	runner.EXPECT().
		Run(gomock.Any(), "c++", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, args []string, _ io.Writer) error {
			for i, a := range args {
				if a == "-o" && i+1 < len(args) {
					return os.WriteFile(args[i+1], []byte("obj"), 0o644)
				}
			}
			t.Error("no -o in compile args")
			return nil
		}).Times(times)
}

// Two independent objects build concurrently, each compiled exactly once.
func TestApp_ParallelUpdate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	root := t.TempDir()
	writeSources(t, root)

	a, runner := newApp(t, ctrl, root)
	expectExtraction(runner, root, "a", "b")
	expectCompiles(t, runner, 2)

	err := a.Run(context.Background(), app.Request{
		Operations: []string{"update"},
		Targets:    []string{"obj{a}", "obj{b}"},
		Jobs:       4,
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(root, "a.o"))
	assert.FileExists(t, filepath.Join(root, "b.o"))
}

// Update then clean round-trips the out state.
func TestApp_UpdateThenClean(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	root := t.TempDir()
	writeSources(t, root)

	a, runner := newApp(t, ctrl, root)
	expectExtraction(runner, root, "a", "b")
	expectCompiles(t, runner, 2)

	req := app.Request{Operations: []string{"update"}, Targets: []string{"obj{a}", "obj{b}"}}
	require.NoError(t, a.Run(context.Background(), req))

	req.Operations = []string{"clean"}
	require.NoError(t, a.Run(context.Background(), req))

	assert.NoFileExists(t, filepath.Join(root, "a.o"))
	assert.NoFileExists(t, filepath.Join(root, "a.o.d"))
	assert.NoFileExists(t, filepath.Join(root, "b.o"))
}

// A failing compilation surfaces as the build-failed contract error.
func TestApp_BuildFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	root := t.TempDir()
	writeSources(t, root)

	a, runner := newApp(t, ctrl, root)
	expectExtraction(runner, root, "a")
	runner.EXPECT().
		Run(gomock.Any(), "c++", gomock.Any(), gomock.Any()).
		Return(domain.ErrTargetFailed)

	err := a.Run(context.Background(), app.Request{
		Operations: []string{"update"},
		Targets:    []string{"obj{a}"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBuildFailed)
}

// Keep-going lets the healthy sibling finish after a failure.
func TestApp_KeepGoing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	root := t.TempDir()
	writeSources(t, root)

	a, runner := newApp(t, ctrl, root)
	expectExtraction(runner, root, "a", "b")

	runner.EXPECT().
		Run(gomock.Any(), "c++", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, args []string, _ io.Writer) error {
			for i, arg := range args {
				if arg == "-o" && i+1 < len(args) {
					if strings.HasSuffix(args[i+1], "a.o") {
						return domain.ErrTargetFailed
					}
					return os.WriteFile(args[i+1], []byte("obj"), 0o644)
				}
			}
			return nil
		}).Times(2)

	err := a.Run(context.Background(), app.Request{
		Operations: []string{"update"},
		Targets:    []string{"obj{a}", "obj{b}"},
		KeepGoing:  true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBuildFailed)

	assert.NoFileExists(t, filepath.Join(root, "a.o"))
	assert.FileExists(t, filepath.Join(root, "b.o"))
}

func TestApp_UnknownOperation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	a, _ := newApp(t, ctrl, t.TempDir())
	err := a.Run(context.Background(), app.Request{Operations: []string{"install"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownOperation)
}

func TestApp_UnknownTarget(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	root := t.TempDir()
	writeSources(t, root)

	a, _ := newApp(t, ctrl, root)
	err := a.Run(context.Background(), app.Request{
		Operations: []string{"update"},
		Targets:    []string{"obj{missing}"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTargetNotFound)
}
