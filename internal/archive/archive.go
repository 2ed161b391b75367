// Package archive indexes the certified documents that were generated.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"suapreport/internal/archive/db"
	"suapreport/internal/components/telemetry"
)

const report_archive_record = "archive.record"

// Config selects the database. A libsql Url takes precedence over File.
type Config struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (config Config) OpenDB() (*sql.DB, error) {
	if config.Url != "" {
		dsn := config.Url
		if config.AuthToken != "" {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "authToken=" + config.AuthToken
		}
		return sql.Open("libsql", dsn)
	}

	if config.File == "" {
		return nil, fmt.Errorf("a path was not specified")
	}
	if dir := filepath.Dir(config.File); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	database, err := sql.Open("sqlite", config.File)
	if err != nil {
		return nil, err
	}
	// sqlite only allows one writer at a time
	database.SetMaxOpenConns(1)
	_, err = database.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, database *sql.DB) error {
	_, err := database.ExecContext(ctx, db.Schema)
	return err
}

type Entry struct {
	Filename  string    `json:"filename"`
	Professor string    `json:"professor"`
	Siape     string    `json:"siape"`
	Semesters []string  `json:"semesters"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store struct {
	db  *sql.DB
	qry *db.Queries
	tel telemetry.API
}

func NewStore(database *sql.DB, tel telemetry.API) Store {
	return Store{
		db:  database,
		qry: db.New(database),
		tel: telemetry.NewScopedAPI("archive", tel),
	}
}

// Record indexes a generated document, replacing an entry with the same
// filename.
func (s Store) Record(ctx context.Context, e Entry) error {
	err := s.qry.CreateReport(ctx, db.CreateReportParams{
		Filename:  e.Filename,
		Professor: e.Professor,
		Siape:     e.Siape,
		Semesters: strings.Join(e.Semesters, ","),
		Size:      e.Size,
		CreatedAt: e.CreatedAt.Unix(),
	})
	if err != nil {
		s.tel.ReportWarning(report_archive_record, err, e.Filename)
		return err
	}
	s.tel.ReportDebug("document archived", e.Filename, e.Size)
	return nil
}

// List returns at most limit entries, newest first.
func (s Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.qry.ListReports(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	return entries(rows), nil
}

// ForProfessor returns every entry generated for siape, newest first.
func (s Store) ForProfessor(ctx context.Context, siape string) ([]Entry, error) {
	rows, err := s.qry.ListReportsBySiape(ctx, siape)
	if err != nil {
		return nil, err
	}
	return entries(rows), nil
}

// Prune drops entries created before t and returns how many were removed.
func (s Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	n, err := s.qry.WithTx(tx).DeleteReportsBefore(ctx, before.Unix())
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func entries(rows []db.Report) []Entry {
	out := make([]Entry, len(rows))
	for i, r := range rows {
		semesters := []string{}
		if r.Semesters != "" {
			semesters = strings.Split(r.Semesters, ",")
		}
		out[i] = Entry{
			Filename:  r.Filename,
			Professor: r.Professor,
			Siape:     r.Siape,
			Semesters: semesters,
			Size:      r.Size,
			CreatedAt: time.Unix(r.CreatedAt, 0),
		}
	}
	return out
}
