package commands

import (
	"github.com/spf13/cobra"
)

// StatusCmd creates the status command
func StatusCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <offer_id>",
		Short: "Show the workflow status of an offer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.resolveConfig(args[0], nil)
			if err != nil {
				return err
			}

			status, err := app.Engine.Status(app.Ctx, args[0], cfg)
			if err != nil {
				return err
			}

			printWorkflowStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}
