package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitDBCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Drop and recreate all nine tables",
		Long: `
Drops every table and recreates the schema. All loaded data is lost.
Ingestion never does this on its own.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Reset(ctx); err != nil {
				return fmt.Errorf("reset schema: %w", err)
			}
			a.log.Info("schema created", "database", a.cfg.Database)
			fmt.Fprintln(a.stdout, "Database schema created.")
			return nil
		},
	}
}
