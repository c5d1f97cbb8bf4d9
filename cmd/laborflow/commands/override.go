package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ApproveCmd creates the approve command
func ApproveCmd(app *AppContext) *cobra.Command {
	var actor, notes string

	cmd := &cobra.Command{
		Use:   "approve <offer_id> <response_id>...",
		Short: "Manually approve pending or waitlisted responses",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("approve command",
				zap.String("offer_id", args[0]),
				zap.Strings("response_ids", args[1:]))

			result, err := app.Batch.Approve(app.Ctx, args[0], args[1:], actor, notes)
			if err != nil {
				return err
			}

			printBatchResult(cmd.OutOrStdout(), "approved", result)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "Manager recorded as the decider")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes appended to the decision reason")
	cmd.MarkFlagRequired("actor")

	return cmd
}

// RejectCmd creates the reject command
func RejectCmd(app *AppContext) *cobra.Command {
	var actor, reason string

	cmd := &cobra.Command{
		Use:   "reject <offer_id> <response_id>...",
		Short: "Manually reject pending or waitlisted responses",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("reject command",
				zap.String("offer_id", args[0]),
				zap.Strings("response_ids", args[1:]))

			result, err := app.Batch.Reject(app.Ctx, args[0], args[1:], actor, reason)
			if err != nil {
				return err
			}

			printBatchResult(cmd.OutOrStdout(), "rejected", result)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "Manager recorded as the decider")
	cmd.Flags().StringVar(&reason, "reason", "", "Decision reason (defaults to a manual rejection reason)")
	cmd.MarkFlagRequired("actor")

	return cmd
}
