package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// MigrateCmd creates the migrate command
func MigrateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Postgres == nil {
				return errors.New("migrate requires database.url to be configured")
			}

			applied, err := app.Postgres.RunMigrations(app.Ctx)
			if err != nil {
				return err
			}
			app.Logger.Info("Migrations complete", zap.Int("applied", len(applied)))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n%s Applied %d migrations\n", successMark(true), len(applied))
			for _, name := range applied {
				fmt.Fprintf(out, "  %s\n", name)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
