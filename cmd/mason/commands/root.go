// Package commands implements the CLI commands for the mason build tool.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"go.trai.ch/mason/internal/app"
)

// CLI represents the command line interface for mason.
type CLI struct {
	app     *app.App
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given app.
func New(a *app.App) *CLI {
	rootCmd := &cobra.Command{
		Use:           "mason",
		Short:         "A build executor with incremental dependency tracking",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the buildfile (default mason.yaml)")
	rootCmd.PersistentFlags().IntP("jobs", "j", 0, "Number of parallel workers (default NumCPU)")
	rootCmd.PersistentFlags().BoolP("keep-going", "k", false, "Keep building unaffected targets after a failure")
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase diagnostics verbosity")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newUpdateCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// request assembles an app request from the persistent flags.
func (c *CLI) request(cmd *cobra.Command, op string, targets []string) app.Request {
	file, _ := cmd.Flags().GetString("config")
	jobs, _ := cmd.Flags().GetInt("jobs")
	keepGoing, _ := cmd.Flags().GetBool("keep-going")

	return app.Request{
		Operations: []string{op},
		Targets:    targets,
		Buildfile:  file,
		Jobs:       jobs,
		KeepGoing:  keepGoing,
	}
}
