package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"suapreport/internal/archive"
	"suapreport/internal/components/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	archiveLimit     int
	archiveSiape     string
	archiveOlderThan time.Duration
)

func init() {
	archiveListCmd.Flags().IntVar(&archiveLimit, "limit", 50, "The maximum number of entries to list.")
	archiveListCmd.Flags().StringVar(&archiveSiape, "siape", "", "Only list documents generated for this siape.")
	archivePruneCmd.Flags().DurationVar(&archiveOlderThan, "older-than", 365*24*time.Hour, "Drop entries older than this.")

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archivePruneCmd)
	rootCmd.AddCommand(archiveCmd)
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspects the index of generated documents.",
}

// openArchive skips the browser entirely, listing documents needs no
// portal credentials.
func openArchive(ctx context.Context) (archive.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return archive.Store{}, nil, err
	}
	database, err := cfg.Report.Archive.OpenDB()
	if err != nil {
		return archive.Store{}, nil, err
	}
	if err := archive.Migrate(ctx, database); err != nil {
		database.Close()
		return archive.Store{}, nil, err
	}
	return archive.NewStore(database, telemetry.SlogAPI{}), func() { database.Close() }, nil
}

var archiveListCmd = &cobra.Command{
	Use:   "list [--limit <n>] [--siape <siape>]",
	Short: "Lists generated documents, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closer, err := openArchive(ctx)
		if err != nil {
			return err
		}
		defer closer()

		var entries []archive.Entry
		if archiveSiape != "" {
			entries, err = store.ForProfessor(ctx, archiveSiape)
		} else {
			entries, err = store.List(ctx, archiveLimit)
		}
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Created", "Professor", "Siape", "Semesters", "Size", "File"})
		for _, e := range entries {
			t.AppendRow(table.Row{
				e.CreatedAt.Local().Format(time.DateTime),
				e.Professor,
				e.Siape,
				strings.Join(e.Semesters, ", "),
				e.Size,
				e.Filename,
			})
		}
		t.Render()
		return nil
	},
}

var archivePruneCmd = &cobra.Command{
	Use:   "prune [--older-than <duration>]",
	Short: "Drops index entries older than the given age, documents on disk are kept.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closer, err := openArchive(ctx)
		if err != nil {
			return err
		}
		defer closer()

		n, err := store.Prune(ctx, time.Now().Add(-archiveOlderThan))
		if err != nil {
			return err
		}
		fmt.Printf("pruned %d entries\n", n)
		return nil
	},
}
