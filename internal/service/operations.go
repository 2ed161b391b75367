package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"suapreport/internal/archive"
	"suapreport/internal/report"
	"suapreport/internal/router"
	"suapreport/internal/scrapers/suap"
)

type ProfessorsRequest struct {
	Query string `json:"query"`
}

type ProfessorsResult struct {
	Professors []suap.Professor `json:"professors"`
}

func (s *Service) GetProfessors(ctx context.Context, payload json.RawMessage, reply router.Sink) (any, error) {
	req, err := router.Decode[ProfessorsRequest](payload)
	if err != nil {
		return nil, invalid("%s", err)
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, invalid("query is required")
	}

	professors, err := s.scraper.SearchProfessors(ctx, query, notifier(reply))
	if err != nil {
		return nil, err
	}
	return ProfessorsResult{Professors: professors}, nil
}

type BooksRequest struct {
	ProfessorID int      `json:"professorId"`
	Semesters   []string `json:"semesters"`
}

type BooksResult struct {
	Books []suap.Book `json:"books"`
}

func validSemesters(semesters []string) error {
	if len(semesters) == 0 {
		return invalid("at least one semester is required")
	}
	for _, sem := range semesters {
		if _, err := report.ParseSemester(sem); err != nil {
			return invalid("%s", err)
		}
	}
	return nil
}

func (s *Service) GetBooks(ctx context.Context, payload json.RawMessage, reply router.Sink) (any, error) {
	req, err := router.Decode[BooksRequest](payload)
	if err != nil {
		return nil, invalid("%s", err)
	}
	if req.ProfessorID <= 0 {
		return nil, invalid("professorId is required")
	}
	if err := validSemesters(req.Semesters); err != nil {
		return nil, err
	}

	books, err := s.scraper.Books(ctx, req.ProfessorID, req.Semesters, notifier(reply))
	if err != nil {
		return nil, err
	}
	return BooksResult{Books: books}, nil
}

type ReportRequest struct {
	Books     []suap.Book  `json:"books"`
	Semesters []string     `json:"semesters"`
	Professor ProfessorRef `json:"professorName"`
}

// GetReport reads the lessons of every diary and attaches its report. Each
// diary is sent back as soon as it is done.
func (s *Service) GetReport(ctx context.Context, payload json.RawMessage, reply router.Sink) (any, error) {
	req, err := router.Decode[ReportRequest](payload)
	if err != nil {
		return nil, invalid("%s", err)
	}
	if err := validSemesters(req.Semesters); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Professor.Name) == "" {
		return nil, invalid("professorName is required")
	}

	notify := notifier(reply)
	names := []string{req.Professor.Name}
	if req.Professor.ID > 0 {
		usual, err := s.scraper.UsualName(ctx, req.Professor.ID, notify)
		if err != nil {
			return nil, err
		}
		if usual != "" {
			names = append(names, usual)
		}
	}

	books := make([]suap.Book, 0, len(req.Books))
	for _, book := range req.Books {
		rows, err := s.scraper.Lessons(ctx, book, notify)
		if err != nil {
			return nil, err
		}
		r := report.NewBookReport(rows, req.Semesters, names...)
		book.Report = &r
		books = append(books, book)
		reply.Send(router.Fetched(book))
	}
	return BooksResult{Books: books}, nil
}

type DocumentResult struct {
	PDFData  string `json:"pdfData"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
}

// PostReport renders the certified workload document and prints it.
func (s *Service) PostReport(ctx context.Context, payload json.RawMessage, reply router.Sink) (any, error) {
	req, err := router.Decode[report.DocumentRequest](payload)
	if err != nil {
		return nil, invalid("%s", err)
	}
	if strings.TrimSpace(req.Professor.Name) == "" {
		return nil, invalid("professor.name is required")
	}
	if err := validSemesters(req.Semesters); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	doc := report.BuildDocument(req, report.DocumentOptions{
		City:      s.opts.City,
		Signatory: s.opts.Signatory,
	}, now)
	if len(doc.Semesters) == 0 {
		return nil, invalid("no workload in the selected semesters")
	}

	html, err := doc.HTML()
	if err != nil {
		return nil, err
	}
	pdf, err := s.session.RenderPDF(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("print document: %w", err)
	}

	identifier := req.Professor.Siape
	if identifier == "" {
		identifier = "professor"
	}
	filename := report.Filename(now, identifier, "pdf")

	if s.opts.OutputDir != "" {
		if err := os.MkdirAll(s.opts.OutputDir, 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(s.opts.OutputDir, filename), pdf, 0o644); err != nil {
			return nil, err
		}
	}

	if s.archive != nil {
		err := s.archive.Record(ctx, archive.Entry{
			Filename:  filename,
			Professor: req.Professor.Name,
			Siape:     req.Professor.Siape,
			Semesters: doc.SemesterKeys(),
			Size:      int64(len(pdf)),
			CreatedAt: now,
		})
		// the document exists, a missing index entry is not worth failing for
		if err != nil {
			s.tel.ReportWarning(report_service_archive, err, filename)
		}
	}

	return DocumentResult{
		PDFData:  base64.StdEncoding.EncodeToString(pdf),
		Filename: filename,
		MimeType: "application/pdf",
		Size:     len(pdf),
	}, nil
}
