package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newVerifyCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Print table row counts and a sample of joined results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			counts, err := st.CountRows(ctx)
			if err != nil {
				return fmt.Errorf("count rows: %w", err)
			}
			t := table.NewWriter()
			t.SetOutputMirror(a.stdout)
			t.SetTitle("Row counts")
			t.AppendHeader(table.Row{"Table", "Rows"})
			for _, c := range counts {
				t.AppendRow(table.Row{c.Table, c.Rows})
			}
			t.Render()

			sample, err := st.SampleJoined(ctx, limit)
			if err != nil {
				return fmt.Errorf("sample: %w", err)
			}
			if len(sample) == 0 {
				fmt.Fprintln(a.stdout, "No results loaded.")
				return nil
			}
			s := table.NewWriter()
			s.SetOutputMirror(a.stdout)
			s.SetTitle("Sample results")
			s.AppendHeader(table.Row{"Year", "State", "County", "Municipality", "Candidate", "Party", "Votes", "Registered"})
			for _, r := range sample {
				registered := "-"
				if r.RegisteredVoters != nil {
					registered = strconv.Itoa(*r.RegisteredVoters)
				}
				s.AppendRow(table.Row{
					r.Year, r.State, r.CountyName, r.MunicipalityName,
					r.FirstName + " " + r.LastName, r.PartyCode, r.VoteTotal, registered,
				})
			}
			s.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of sample rows")
	return cmd
}
