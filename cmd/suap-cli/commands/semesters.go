package commands

import (
	"suapreport/internal/components/chrono"
	"suapreport/internal/report"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var semestersCount int

func init() {
	semestersCmd.Flags().IntVarP(&semestersCount, "count", "n", 4, "How many semesters to list.")
	rootCmd.AddCommand(semestersCmd)
}

var semestersCmd = &cobra.Command{
	Use:   "semesters [-n <count>]",
	Short: "Lists the most recent semesters, the current one first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		clock, err := chrono.NewStandardImpl()
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Semester"})
		for _, s := range report.RecentSemesters(clock.Now(), semestersCount) {
			t.AppendRow(table.Row{s.String()})
		}
		t.Render()
		return nil
	},
}
