package commands

import (
	"fmt"
	"strconv"

	"suapreport/internal/report"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(booksCmd)
}

func parseArgs(args []string) (int, []string, error) {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, nil, fmt.Errorf("professor id: %w", err)
	}
	semesters := args[1:]
	for _, s := range semesters {
		if _, err := report.ParseSemester(s); err != nil {
			return 0, nil, err
		}
	}
	return id, semesters, nil
}

var booksCmd = &cobra.Command{
	Use:   "books <professor-id> <semester...>",
	Short: "Lists a professor's diaries in the given semesters (ex. 2024.1).",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, semesters, err := parseArgs(args)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		books, err := a.Scraper.Books(ctx, id, semesters, progress)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Semester", "Class", "Diary", "Program"})
		for _, b := range books {
			t.AppendRow(table.Row{b.ID, b.Semester, b.Class, b.Book, b.Program})
		}
		t.Render()
		return nil
	},
}
