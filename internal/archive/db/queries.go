package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Report struct {
	ID        int64
	Filename  string
	Professor string
	Siape     string
	Semesters string
	Size      int64
	CreatedAt int64
}

const createReport = `insert into report (filename, professor, siape, semesters, size, created_at)
values (?, ?, ?, ?, ?, ?)
on conflict (filename) do update set
    professor = excluded.professor,
    siape = excluded.siape,
    semesters = excluded.semesters,
    size = excluded.size,
    created_at = excluded.created_at`

type CreateReportParams struct {
	Filename  string
	Professor string
	Siape     string
	Semesters string
	Size      int64
	CreatedAt int64
}

func (q *Queries) CreateReport(ctx context.Context, arg CreateReportParams) error {
	_, err := q.db.ExecContext(ctx, createReport,
		arg.Filename,
		arg.Professor,
		arg.Siape,
		arg.Semesters,
		arg.Size,
		arg.CreatedAt,
	)
	return err
}

const listReports = `select id, filename, professor, siape, semesters, size, created_at
from report
order by created_at desc, id desc
limit ?`

func (q *Queries) ListReports(ctx context.Context, limit int64) ([]Report, error) {
	rows, err := q.db.QueryContext(ctx, listReports, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReports(rows)
}

const listReportsBySiape = `select id, filename, professor, siape, semesters, size, created_at
from report
where siape = ?
order by created_at desc, id desc`

func (q *Queries) ListReportsBySiape(ctx context.Context, siape string) ([]Report, error) {
	rows, err := q.db.QueryContext(ctx, listReportsBySiape, siape)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReports(rows)
}

const deleteReportsBefore = `delete from report where created_at < ?`

func (q *Queries) DeleteReportsBefore(ctx context.Context, before int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteReportsBefore, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanReports(rows *sql.Rows) ([]Report, error) {
	var items []Report
	for rows.Next() {
		var i Report
		if err := rows.Scan(
			&i.ID,
			&i.Filename,
			&i.Professor,
			&i.Siape,
			&i.Semesters,
			&i.Size,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
