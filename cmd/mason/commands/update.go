package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [targets...]",
		Short: "Bring targets up to date",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := c.request(cmd, "update", args)
			req.Watch, _ = cmd.Flags().GetBool("watch")
			return c.app.Run(cmd.Context(), req)
		},
	}
	cmd.Flags().BoolP("watch", "w", false, "Rebuild when the source tree changes")
	return cmd
}
