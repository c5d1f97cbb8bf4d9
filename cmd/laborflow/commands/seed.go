package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// SeedCmd creates the seed command
func SeedCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixtures_file>",
		Short: "Load offers, responses, and employees from a fixtures file into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Postgres == nil {
				return errors.New("seed requires database.url to be configured")
			}

			f, err := ReadFixtures(args[0])
			if err != nil {
				return err
			}

			for _, emp := range f.Attributes() {
				if err := app.Postgres.UpsertEmployee(app.Ctx, emp); err != nil {
					return err
				}
			}

			responses := 0
			for _, o := range f.Offers {
				if err := app.Postgres.UpsertOffer(app.Ctx, o.Model()); err != nil {
					return err
				}
				for _, r := range o.Responses {
					if err := app.Postgres.InsertResponse(app.Ctx, r.Model(o.ID)); err != nil {
						return fmt.Errorf("response %s: %w", r.ID, err)
					}
					responses++
				}
			}

			app.Logger.Info("Seeded database",
				zap.Int("employees", len(f.Employees)),
				zap.Int("offers", len(f.Offers)),
				zap.Int("responses", responses))

			fmt.Fprintf(cmd.OutOrStdout(), "\n%s Seeded %d employees, %d offers, %d responses\n\n",
				successMark(true), len(f.Employees), len(f.Offers), responses)
			return nil
		},
	}
}
