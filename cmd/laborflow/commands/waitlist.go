package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mm1618bu/laborflow/pkg/core/allocation"
)

// PromoteCmd creates the promote command
func PromoteCmd(app *AppContext) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "promote <offer_id> <positions>",
		Short: "Promote the head of the waitlist into freed positions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			positions, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("positions must be a number: %w", err)
			}

			result, err := app.Waitlist.Promote(app.Ctx, args[0], positions, actor)
			if err != nil {
				return err
			}

			printPromotionResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", allocation.SystemActor, "Actor recorded on the promotion")

	return cmd
}

// WithdrawCmd creates the withdraw command
func WithdrawCmd(app *AppContext) *cobra.Command {
	var (
		actor       string
		autoPromote bool
	)

	cmd := &cobra.Command{
		Use:   "withdraw <offer_id> <response_id>",
		Short: "Withdraw a response, optionally promoting the head of the waitlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.Waitlist.Withdraw(app.Ctx, args[0], args[1], actor, autoPromote)
			if err != nil {
				return err
			}

			printWithdrawalResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", allocation.SystemActor, "Actor recorded on the withdrawal")
	cmd.Flags().BoolVar(&autoPromote, "auto-promote", false, "Fill a freed position from the waitlist")

	return cmd
}

// TrimCmd creates the trim command
func TrimCmd(app *AppContext) *cobra.Command {
	var (
		actor   string
		maxSize int
	)

	cmd := &cobra.Command{
		Use:   "trim <offer_id>",
		Short: "Reject waitlisted responses beyond the maximum waitlist size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			offerID := args[0]

			if !cmd.Flags().Changed("max-size") {
				cfg, err := app.resolveConfig(offerID, nil)
				if err != nil {
					return err
				}
				maxSize = cfg.MaxWaitlistSize
			}

			result, err := app.Waitlist.Trim(app.Ctx, offerID, maxSize, actor)
			if err != nil {
				return err
			}

			printTrimResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", allocation.SystemActor, "Actor recorded on the trim")
	cmd.Flags().IntVar(&maxSize, "max-size", 0, "Waitlist size to keep (defaults to the configured maximum)")

	return cmd
}

// WaitlistCmd creates the waitlist command
func WaitlistCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "waitlist <offer_id>",
		Short: "List an offer's waitlist in queue order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := app.Waitlist.Entries(app.Ctx, args[0])
			if err != nil {
				return err
			}

			printWaitlist(cmd.OutOrStdout(), args[0], entries)
			return nil
		},
	}
}
