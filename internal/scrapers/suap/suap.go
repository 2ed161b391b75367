// Package suap extracts professors, diaries and lessons from the SUAP
// academic portal through the session's page.
package suap

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"suapreport/internal/components/assert"
	"suapreport/internal/components/telemetry"
	"suapreport/internal/evalbridge"
	"suapreport/internal/report"
	"suapreport/internal/session"
	"suapreport/lib/textutil"

	"github.com/antzucaro/matchr"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	report_scraper_professors = "scraper.search-professors"
	report_scraper_books      = "scraper.books"
	report_scraper_lessons    = "scraper.lessons"
	report_scraper_usual_name = "scraper.usual-name"
)

// Portal is the part of the session extractors use.
type Portal interface {
	Navigate(ctx context.Context, req session.NavigationRequest, notify session.Notifier) error
	Evaluate(ctx context.Context, cmd evalbridge.Command) (evalbridge.Result, error)
}

type Professor struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	CPF     string `json:"cpf,omitempty"`
	Email   string `json:"email,omitempty"`
	Siape   string `json:"siape"`
	Picture string `json:"picture,omitempty"`
}

// Book is a diary: one class group of one course in one semester.
type Book struct {
	ID        int    `json:"id"`
	Semester  string `json:"semester"`
	Class     string `json:"class"`
	Book      string `json:"book"`
	Component string `json:"component"`
	Program   string `json:"program"`
	Link      string `json:"link"`

	Report *report.BookReport `json:"report,omitempty"`
}

type Options struct {
	BaseURL   string
	Campus    int
	Selectors Selectors
	// UsualNameTTL is how long a looked up usual name is reused.
	UsualNameTTL time.Duration
}

type Scraper struct {
	portal     Portal
	opts       Options
	usualNames *expirable.LRU[int, string]
	tel        telemetry.API
}

func New(portal Portal, opts Options, tel telemetry.API) *Scraper {
	assert.NotNil(portal, "portal")
	assert.NotNil(tel, "tel")
	assert.NotEmptyStr(opts.BaseURL, "base url")

	ttl := opts.UsualNameTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Scraper{
		portal:     portal,
		opts:       opts,
		usualNames: expirable.NewLRU[int, string](256, nil, ttl),
		tel:        telemetry.NewScopedAPI("suap", tel),
	}
}

func (s *Scraper) url(path string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	path = strings.NewReplacer(pairs...).Replace(path)
	return strings.TrimRight(s.opts.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// SearchProfessors lists the professors of the configured campus matching
// query, closest names first.
func (s *Scraper) SearchProfessors(ctx context.Context, query string, notify session.Notifier) ([]Professor, error) {
	sel := s.opts.Selectors.ProfessorSearch
	target := s.url(sel.Path, map[string]string{
		"campus": strconv.Itoa(s.opts.Campus),
		"query":  url.QueryEscape(query),
	})

	err := s.portal.Navigate(ctx, session.NavigationRequest{URL: target, ConfirmSelector: sel.Ready}, notify)
	if err != nil {
		return nil, fmt.Errorf("search professors: %w", err)
	}

	result, err := s.portal.Evaluate(ctx, evalbridge.Command{
		Op:      evalbridge.OpRecords,
		Rows:    sel.Rows,
		Require: sel.Require,
		Fields:  sel.Fields,
	})
	if err != nil {
		return nil, fmt.Errorf("search professors: %w", err)
	}

	professors := []Professor{}
	for _, r := range result.Records {
		id, err := strconv.Atoi(r["id"])
		if err != nil {
			s.tel.ReportWarning(report_scraper_professors, fmt.Errorf("unreadable professor id %q", r["id"]), r["name"])
			continue
		}
		professors = append(professors, Professor{
			ID:      id,
			Name:    r["name"],
			CPF:     r["cpf"],
			Email:   r["email"],
			Siape:   r["siape"],
			Picture: r["picture"],
		})
	}

	folded := textutil.Fold(query)
	slices.SortStableFunc(professors, func(a, b Professor) int {
		sa := matchr.JaroWinkler(textutil.Fold(a.Name), folded, false)
		sb := matchr.JaroWinkler(textutil.Fold(b.Name), folded, false)
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		}
		return 0
	})

	s.tel.ReportDebug("professors found", query, len(professors))
	return professors, nil
}

// Books lists the professor's diaries for every semester given.
func (s *Scraper) Books(ctx context.Context, professorID int, semesters []string, notify session.Notifier) ([]Book, error) {
	sel := s.opts.Selectors.Books
	books := []Book{}

	for _, semester := range report.SortSemesters(semesters) {
		target := s.url(sel.Path, map[string]string{
			"id":       strconv.Itoa(professorID),
			"semester": url.QueryEscape(semester.String()),
		})
		err := s.portal.Navigate(ctx, session.NavigationRequest{URL: target, ConfirmSelector: sel.Ready}, notify)
		if err != nil {
			return nil, fmt.Errorf("books for %s: %w", semester, err)
		}

		result, err := s.portal.Evaluate(ctx, evalbridge.Command{
			Op:      evalbridge.OpRecords,
			Rows:    sel.Rows,
			Require: sel.Require,
			Fields:  sel.Fields,
		})
		if err != nil {
			return nil, fmt.Errorf("books for %s: %w", semester, err)
		}

		for _, r := range result.Records {
			id, err := strconv.Atoi(r["id"])
			if err != nil {
				s.tel.ReportWarning(report_scraper_books, fmt.Errorf("unreadable diary id %q", r["id"]), semester.String())
				continue
			}
			books = append(books, Book{
				ID:        id,
				Semester:  semester.String(),
				Class:     r["class"],
				Book:      r["book"],
				Component: r["component"],
				Program:   r["program"],
				Link:      r["link"],
			})
		}
	}
	return books, nil
}

type lessonColumns struct {
	date, quantity, professor, topic int
}

func (s *Scraper) columns(headers []string) lessonColumns {
	sel := s.opts.Selectors.Lessons
	find := func(label string) int {
		if label == "" {
			return -1
		}
		want := textutil.Fold(label)
		for i, h := range headers {
			if strings.Contains(textutil.Fold(h), want) {
				return i
			}
		}
		return -1
	}

	cols := lessonColumns{
		date:      find(sel.DateHeader),
		quantity:  find(sel.QuantityHeader),
		professor: find(sel.ProfessorHeader),
		topic:     find(sel.TopicHeader),
	}
	// without a header the table is date, content.
	if cols.date < 0 {
		cols.date = 0
		if cols.topic < 0 {
			cols.topic = 1
		}
	}
	return cols
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Lessons reads the raw lesson rows of a diary.
func (s *Scraper) Lessons(ctx context.Context, book Book, notify session.Notifier) ([]report.Row, error) {
	sel := s.opts.Selectors.Lessons
	target := s.url(sel.Path, map[string]string{"id": strconv.Itoa(book.ID)})

	err := s.portal.Navigate(ctx, session.NavigationRequest{URL: target, ConfirmSelector: sel.Ready}, notify)
	if err != nil {
		return nil, fmt.Errorf("lessons of diary %d: %w", book.ID, err)
	}

	result, err := s.portal.Evaluate(ctx, evalbridge.Command{Op: evalbridge.OpTable, Selector: sel.Table})
	if err != nil {
		return nil, fmt.Errorf("lessons of diary %d: %w", book.ID, err)
	}
	if result.Table == nil {
		s.tel.ReportWarning(report_scraper_lessons, fmt.Errorf("no lesson table"), book.ID)
		return []report.Row{}, nil
	}

	cols := s.columns(result.Table.Headers)
	course := book.Component
	if course == "" {
		course = book.Book
	}

	rows := make([]report.Row, 0, len(result.Table.Rows))
	for _, r := range result.Table.Rows {
		rows = append(rows, report.Row{
			Section:   strconv.Itoa(book.ID),
			Program:   book.Program,
			Course:    course,
			Date:      cell(r, cols.date),
			Blocks:    cell(r, cols.quantity),
			Topic:     cell(r, cols.topic),
			Professor: cell(r, cols.professor),
		})
	}
	s.tel.ReportDebug("lessons read", book.ID, len(rows))
	return rows, nil
}

// UsualName returns the name the professor goes by on the portal, empty
// when the profile does not list one.
func (s *Scraper) UsualName(ctx context.Context, professorID int, notify session.Notifier) (string, error) {
	if name, ok := s.usualNames.Get(professorID); ok {
		return name, nil
	}

	sel := s.opts.Selectors.UsualName
	target := s.url(sel.Path, map[string]string{"id": strconv.Itoa(professorID)})
	err := s.portal.Navigate(ctx, session.NavigationRequest{URL: target, ConfirmSelector: sel.Ready}, notify)
	if err != nil {
		return "", fmt.Errorf("usual name of %d: %w", professorID, err)
	}

	result, err := s.portal.Evaluate(ctx, evalbridge.Command{
		Op:   evalbridge.OpRecords,
		Rows: sel.Rows,
		Fields: []evalbridge.Field{
			{Name: "label", Selector: sel.Label, Index: 0},
			{Name: "value", Selector: sel.Value, Index: 1},
		},
	})
	if err != nil {
		return "", fmt.Errorf("usual name of %d: %w", professorID, err)
	}

	want := textutil.Fold(sel.Match)
	name := ""
	for _, r := range result.Records {
		if strings.Contains(textutil.Fold(r["label"]), want) {
			name = r["value"]
			break
		}
	}
	if name == "" {
		s.tel.ReportWarning(report_scraper_usual_name, fmt.Errorf("no usual name listed"), professorID)
	}
	s.usualNames.Add(professorID, name)
	return name, nil
}
