package commands_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"go.trai.ch/mason/cmd/mason/commands"
	"go.trai.ch/mason/internal/adapters/logger"
	"go.trai.ch/mason/internal/adapters/telemetry"
	"go.trai.ch/mason/internal/app"
	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/core/ports/mocks"
)

func newCLI(t *testing.T, ctrl *gomock.Controller) (*commands.CLI, *mocks.MockConfigLoader) {
	t.Helper()
	loader := mocks.NewMockConfigLoader(ctrl)
	runner := mocks.NewMockToolRunner(ctrl)
	a := app.New(loader, runner, telemetry.NewNoopTracer(), logger.NewWriter(io.Discard, 0))
	return commands.New(a), loader
}

func TestCommands_Version(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cli, _ := newCLI(t, ctrl)
	cli.SetArgs([]string{"version"})
	require.NoError(t, cli.Execute(context.Background()))
}

func TestCommands_UnknownCommand(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cli, _ := newCLI(t, ctrl)
	cli.SetArgs([]string{"install"})
	assert.Error(t, cli.Execute(context.Background()))
}

func TestCommands_UpdatePropagatesLoaderError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cli, loader := newCLI(t, ctrl)
	loader.EXPECT().Load(gomock.Any(), "custom.yaml").Return(nil, domain.ErrConfiguration)

	cli.SetArgs([]string{"update", "--config", "custom.yaml", "some-target"})
	err := cli.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
