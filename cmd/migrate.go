package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/officebot/internal/db"
)

func newMigrateCmd() *cobra.Command {
	flags := newConfigFlags()

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the attendance database",
		Long: `Apply all pending schema migrations to the SQLite database and print
the resulting schema version. serve migrates on startup as well; this
command lets you prepare the database ahead of a deployment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.resolve(cmd, os.LookupEnv)
			if err != nil {
				return err
			}

			conn, err := db.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer conn.Close()

			v, err := db.Version(cmd.Context(), conn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is at schema version %d\n", cfg.Database.Path, v)
			return nil
		},
	}

	flags.addDatabase(cmd.Flags())
	return cmd
}
