package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Apply the embedded schema to the configured Postgres database.

The schema is idempotent, so running migrate on an up-to-date database
changes nothing. With STORE_DRIVER=memory this is a no-op.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := app.Migrate(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s store).\n", app.Config.Store.Driver)
	return nil
}
