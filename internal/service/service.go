// Package service implements the operations clients can request:
// get_professors, get_books, get_report and post_report.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"suapreport/internal/alert"
	"suapreport/internal/archive"
	"suapreport/internal/components/assert"
	"suapreport/internal/components/chrono"
	"suapreport/internal/components/telemetry"
	"suapreport/internal/router"
	"suapreport/internal/scrapers/suap"
	"suapreport/internal/session"
)

const (
	RouteProfessors = "get_professors"
	RouteBooks      = "get_books"
	RouteReport     = "get_report"
	RouteDocument   = "post_report"
)

const (
	report_service_alert   = "service.alert"
	report_service_archive = "service.archive"
)

var ErrInvalidRequest = errors.New("invalid request")

// Session is the browser session operations run on.
//
// note: fault injection point
type Session interface {
	suap.Portal
	RenderPDF(ctx context.Context, html string) ([]byte, error)
	State() session.State
}

// Archive indexes generated documents.
type Archive interface {
	Record(ctx context.Context, e archive.Entry) error
}

type Options struct {
	// OutputDir receives generated documents, nothing is written when empty.
	OutputDir string
	City      string
	Signatory string
}

type Service struct {
	session Session
	scraper *suap.Scraper
	archive Archive
	clock   chrono.API
	opts    Options
	tel     telemetry.API
}

type Option func(s *Service)

func WithArchive(a Archive) Option {
	return func(s *Service) {
		s.archive = a
	}
}

func WithClock(c chrono.API) Option {
	return func(s *Service) {
		s.clock = c
	}
}

func New(sess Session, scraper *suap.Scraper, opts Options, tel telemetry.API, options ...Option) (*Service, error) {
	assert.NotNil(sess, "session")
	assert.NotNil(scraper, "scraper")
	assert.NotNil(tel, "tel")

	s := &Service{
		session: sess,
		scraper: scraper,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("service", tel),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.clock == nil {
		clock, err := chrono.NewStandardImpl()
		if err != nil {
			return nil, err
		}
		s.clock = clock
	}
	return s, nil
}

// Register binds every operation to r.
func (s *Service) Register(r *router.Router) {
	r.Register(RouteProfessors, s.GetProfessors)
	r.Register(RouteBooks, s.GetBooks)
	r.Register(RouteReport, s.GetReport)
	r.Register(RouteDocument, s.PostReport)
}

// State is the state of the underlying session, safe to call any time.
func (s *Service) State() session.State {
	return s.session.State()
}

func notifier(reply router.Sink) session.Notifier {
	return func(ev session.Event) {
		if ev == session.EventAuthenticating {
			reply.Send(router.Authenticating())
		}
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// AlertHook returns a router.FailureHook forwarding failures to n. Alerts
// are sent in the background so the queue never waits on them.
func AlertHook(n alert.Notifier, tel telemetry.API) router.FailureHook {
	tel = telemetry.NewScopedAPI("service", tel)
	return func(route string, err error) {
		// a malformed request is the caller's problem
		if errors.Is(err, ErrInvalidRequest) {
			return
		}
		// the session already escalated it as broken
		if errors.Is(err, session.ErrTransport) {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := n.Alert(ctx, alert.Failure(route, err)); err != nil {
				tel.ReportWarning(report_service_alert, err, route)
			}
		}()
	}
}

// ProfessorRef identifies the professor a report is for. It is sent either
// as a plain name or as a professor object.
type ProfessorRef struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Siape string `json:"siape"`
}

func (p *ProfessorRef) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*p = ProfessorRef{Name: name}
		return nil
	}

	var obj struct {
		ID    json.RawMessage `json:"id"`
		Name  string          `json:"name"`
		Siape string          `json:"siape"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	ref := ProfessorRef{Name: obj.Name, Siape: obj.Siape}
	if len(obj.ID) > 0 && string(obj.ID) != "null" {
		var id int
		if err := json.Unmarshal(obj.ID, &id); err != nil {
			var text string
			if err := json.Unmarshal(obj.ID, &text); err != nil {
				return fmt.Errorf("professor id: %w", err)
			}
			id, err = strconv.Atoi(text)
			if err != nil {
				return fmt.Errorf("professor id: %w", err)
			}
		}
		ref.ID = id
	}
	*p = ref
	return nil
}
