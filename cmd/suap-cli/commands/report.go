package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"suapreport/internal/report"
	"suapreport/internal/router"
	"suapreport/internal/scrapers/suap"
	"suapreport/internal/service"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	reportName  string
	reportSiape string
	reportPDF   bool
)

func init() {
	reportCmd.Flags().StringVar(&reportName, "name", "", "The professor's full name as listed on the portal.")
	reportCmd.Flags().StringVar(&reportSiape, "siape", "", "The professor's siape, used to name the document.")
	reportCmd.Flags().BoolVar(&reportPDF, "pdf", false, "Also print the certified document into the output directory.")
	reportCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report <professor-id> <semester...> --name <name> [--pdf]",
	Short: "Reads every diary of a professor and prints the workload per semester.",
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

		aliases := []string{}
		usual, err := a.Scraper.UsualName(ctx, id, progress)
		if err != nil {
			return err
		}
		if usual != "" {
			aliases = append(aliases, usual)
		}
		names := append([]string{reportName}, aliases...)

		books, err := a.Scraper.Books(ctx, id, semesters, progress)
		if err != nil {
			return err
		}

		rows := []report.Row{}
		for i, b := range books {
			lessons, err := a.Scraper.Lessons(ctx, b, progress)
			if err != nil {
				return err
			}
			rows = append(rows, lessons...)
			r := report.NewBookReport(lessons, semesters, names...)
			books[i].Report = &r
			slog.Debug("diary read", "id", b.ID, "eligible", len(r.EligibleLessons))
		}

		summaries := report.Aggregate(rows, reportName, aliases...)
		if len(summaries) == 0 {
			fmt.Println("no lessons taught by", reportName, "in the given semesters")
			return nil
		}
		for _, s := range summaries {
			renderSummary(s)
		}

		if !reportPDF {
			return nil
		}
		return printDocument(cmd, a.Service, books, semesters)
	},
}

func renderSummary(s report.SemesterSummary) {
	t := newTable()
	t.SetTitle(s.Semester)
	t.AppendHeader(table.Row{"Program", "Course", "Classes", "Blocks", "Hours", "Weekly"})
	for _, c := range s.Courses {
		t.AppendRow(table.Row{
			c.Program,
			c.Course,
			c.Quantity,
			report.FormatNumber(c.Blocks),
			report.FormatNumber(c.Hours),
			report.FormatNumber(c.Weekly),
		})
	}
	t.AppendFooter(table.Row{
		"", "Total",
		s.Totals.Classes,
		s.TotalBlocks,
		report.FormatNumber(s.Totals.SemesterHours),
		report.FormatNumber(s.Totals.Weekly),
	})
	t.Render()
}

func printDocument(cmd *cobra.Command, svc *service.Service, books []suap.Book, semesters []string) error {
	req := report.DocumentRequest{
		Professor: report.DocumentProfessor{Name: reportName, Siape: reportSiape},
		Semesters: semesters,
	}
	for _, b := range books {
		doc := report.DocumentBook{Program: b.Program, Book: b.Book, Component: b.Component}
		if b.Report != nil {
			doc.Report.Semesters = b.Report.Semesters
		}
		req.Books = append(req.Books, doc)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	res, err := svc.PostReport(cmd.Context(), payload, router.Discard)
	if err != nil {
		return err
	}
	doc, ok := res.(service.DocumentResult)
	if !ok {
		return errors.New("unexpected document result")
	}
	fmt.Printf("wrote %s (%d bytes)\n", doc.Filename, doc.Size)
	return nil
}
