package main

import (
	"github.com/spf13/cobra"

	"github.com/23atomist/electrion-PA/internal/ingest"
)

func newIngestCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [results|registration|all]",
		Short: "Ingest source files for the configured years",
		Long: `
Loads the results or registration files (or both, results first) for every
configured year from the data directory. Missing years are skipped. Rows that
cannot be parsed are logged and skipped. A store or integrity error rolls the
run back and exits non-zero.
`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"results", "registration", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			which := "all"
			if len(args) == 1 {
				which = args[0]
			}
			var kind ingest.Kind
			if which != "all" {
				k, err := ingest.ParseKind(which)
				if err != nil {
					return err
				}
				kind = k
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			eng := a.engine(st)
			var reports []*ingest.Report
			if kind == "" {
				reports, err = eng.RunAll(ctx)
			} else {
				var rep *ingest.Report
				rep, err = eng.Run(ctx, kind)
				reports = append(reports, rep)
			}
			for _, rep := range reports {
				rep.Render(a.stdout)
			}
			return err
		},
	}
}
