package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mm1618bu/laborflow/pkg/configstore"
	"github.com/mm1618bu/laborflow/pkg/core/allocation"
)

// ProcessCmd creates the process command
func ProcessCmd(app *AppContext) *cobra.Command {
	var (
		dryRun      bool
		processedBy string
		threshold   float64
		maxWaitlist int
	)

	cmd := &cobra.Command{
		Use:   "process <offer_id>",
		Short: "Score pending responses and allocate positions for an offer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			offerID := args[0]

			var patch configstore.Patch
			if cmd.Flags().Changed("threshold") {
				patch.AutoApproveThreshold = &threshold
			}
			if cmd.Flags().Changed("max-waitlist") {
				patch.MaxWaitlistSize = &maxWaitlist
			}

			app.Logger.Debug("process command",
				zap.String("offer_id", offerID),
				zap.Bool("dry_run", dryRun))

			cfg, err := app.resolveConfig(offerID, &patch)
			if err != nil {
				return err
			}

			result, err := app.Engine.Process(app.Ctx, offerID, cfg, allocation.Options{
				DryRun:      dryRun,
				ProcessedBy: processedBy,
			})
			if err != nil {
				return err
			}

			printProcessingResult(cmd.OutOrStdout(), result, dryRun)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute decisions without persisting or notifying")
	cmd.Flags().StringVar(&processedBy, "processed-by", "", "Actor recorded on the run (defaults to system)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Override the auto-approve threshold for this run")
	cmd.Flags().IntVar(&maxWaitlist, "max-waitlist", 0, "Override the maximum waitlist size for this run")

	return cmd
}
