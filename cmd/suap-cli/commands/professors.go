package commands

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(professorsCmd)
}

var professorsCmd = &cobra.Command{
	Use:   "professors <query...>",
	Short: "Searches the configured campus for professors, closest names first.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		professors, err := a.Scraper.SearchProfessors(ctx, strings.Join(args, " "), progress)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Name", "Siape", "Email"})
		for _, p := range professors {
			t.AppendRow(table.Row{p.ID, p.Name, p.Siape, p.Email})
		}
		t.Render()
		return nil
	},
}
