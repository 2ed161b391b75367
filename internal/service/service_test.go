package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"suapreport/internal/alert"
	"suapreport/internal/archive"
	"suapreport/internal/browser/browsertest"
	"suapreport/internal/components/chrono"
	"suapreport/internal/components/telemetry"
	"suapreport/internal/report"
	"suapreport/internal/router"
	"suapreport/internal/scrapers/suap"
	"suapreport/internal/scrapers/suap/suaptest"
	"suapreport/internal/session"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type recordingSink struct {
	mu  sync.Mutex
	got []router.Status
}

func (s *recordingSink) Send(status router.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, status)
}

func (s *recordingSink) snapshot() []router.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]router.Status{}, s.got...)
}

func (s *recordingSink) statuses() []string {
	out := []string{}
	for _, st := range s.snapshot() {
		if st.Error != "" {
			out = append(out, "error")
			continue
		}
		out = append(out, st.Status)
	}
	return out
}

func (s *recordingSink) last() router.Status {
	got := s.snapshot()
	return got[len(got)-1]
}

type fixture struct {
	router  *router.Router
	browser *browsertest.Browser
	archive archive.Store
	outDir  string
	rec     *telemetry.Recorder
}

var fixedNow = time.Date(2025, time.March, 10, 14, 30, 5, 0, time.UTC)

func newFixture(t *testing.T, options ...router.Option) fixture {
	t.Helper()

	rec := telemetry.NewRecorder()
	b := suaptest.NewBrowser()
	sess := session.New(suaptest.SessionOptions(), b, rec)
	scraper := suap.New(sess, suap.Options{
		BaseURL:   suaptest.BaseURL,
		Campus:    1,
		Selectors: suap.DefaultSelectors(),
	}, rec)

	sqlite, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlite.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlite.Close() })
	require.NoError(t, archive.Migrate(context.Background(), sqlite))
	store := archive.NewStore(sqlite, rec)

	outDir := t.TempDir()
	svc, err := New(sess, scraper, Options{
		OutputDir: outDir,
		City:      "Charqueadas",
		Signatory: "Direção de Ensino",
	}, rec, WithArchive(store), WithClock(chrono.FixedImpl{At: fixedNow}))
	require.NoError(t, err)

	r := router.New(context.Background(), rec, options...)
	svc.Register(r)

	return fixture{router: r, browser: b, archive: store, outDir: outDir, rec: rec}
}

func (f fixture) dispatch(t *testing.T, route string, payload any) *recordingSink {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	sink := &recordingSink{}
	require.NoError(t, f.router.Dispatch(route, raw, sink))
	f.router.Wait()
	return sink
}

func TestGetProfessors(t *testing.T) {
	f := newFixture(t)

	sink := f.dispatch(t, RouteProfessors, map[string]any{"query": "maria silva"})
	require.Equal(t, []string{"queued", "processing", "authenticating", "completed"}, sink.statuses())

	result, ok := sink.last().Result.(ProfessorsResult)
	require.True(t, ok)
	require.Len(t, result.Professors, 2)
	require.Equal(t, "Maria Silva Souza", result.Professors[0].Name)

	// the session stays logged in across requests
	sink = f.dispatch(t, RouteProfessors, map[string]any{"query": "maria silva"})
	require.Equal(t, []string{"queued", "processing", "completed"}, sink.statuses())
	require.Equal(t, 1, f.browser.Logins())
}

func TestGetBooks(t *testing.T) {
	f := newFixture(t)

	sink := f.dispatch(t, RouteBooks, map[string]any{
		"professorId": 42,
		"semesters":   []string{"2024.1", "2024.2"},
	})
	result, ok := sink.last().Result.(BooksResult)
	require.True(t, ok, "%+v", sink.last())
	require.Len(t, result.Books, 2)
	require.Equal(t, 101, result.Books[0].ID)
	require.Equal(t, "Redes", result.Books[1].Component)
}

func TestGetBooksRejectsBadRequests(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name    string
		payload any
	}{
		{"missing professor", map[string]any{"semesters": []string{"2024.1"}}},
		{"missing semesters", map[string]any{"professorId": 42}},
		{"bad semester", map[string]any{"professorId": 42, "semesters": []string{"2024.3"}}},
		{"not an object", []int{1, 2}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sink := f.dispatch(t, RouteBooks, c.payload)
			require.Equal(t, []string{"queued", "processing", "error"}, sink.statuses())
			require.Contains(t, sink.last().Error, ErrInvalidRequest.Error())
		})
	}
	require.Empty(t, f.browser.Navigations())
}

func TestGetReportStreamsEveryBook(t *testing.T) {
	f := newFixture(t)

	books := []suap.Book{
		{ID: 101, Semester: "2024.1", Book: "TEC.0021 - Banco de Dados", Component: "Banco de Dados", Program: "Técnico em Informática"},
		{ID: 202, Semester: "2024.2", Book: "TEC.0030 - Redes", Component: "Redes", Program: "Técnico em Informática"},
	}
	sink := f.dispatch(t, RouteReport, map[string]any{
		"books":         books,
		"semesters":     []string{"2024.1", "2024.2"},
		"professorName": map[string]any{"id": "42", "name": "Maria Silva Souza"},
	})
	require.Equal(t, []string{"queued", "processing", "authenticating", "fetched", "fetched", "completed"}, sink.statuses())

	fetched, ok := sink.snapshot()[3].Result.(suap.Book)
	require.True(t, ok)
	require.Equal(t, 101, fetched.ID)
	require.NotNil(t, fetched.Report)
	require.Equal(t, report.StatsFromBlocks(2), fetched.Report.Semesters["2024.1"])

	result := sink.last().Result.(BooksResult)
	require.Len(t, result.Books, 2)
	require.Equal(t, report.StatsFromBlocks(1), result.Books[1].Report.Semesters["2024.2"])
}

func TestProfessorRef(t *testing.T) {
	cases := []struct {
		input  string
		expect ProfessorRef
	}{
		{`"Maria Silva Souza"`, ProfessorRef{Name: "Maria Silva Souza"}},
		{`{"id": 42, "name": "Maria"}`, ProfessorRef{ID: 42, Name: "Maria"}},
		{`{"id": "42", "name": "Maria", "siape": "1234567"}`, ProfessorRef{ID: 42, Name: "Maria", Siape: "1234567"}},
		{`{"name": "Maria", "id": null}`, ProfessorRef{Name: "Maria"}},
	}
	for _, c := range cases {
		var got ProfessorRef
		require.NoError(t, json.Unmarshal([]byte(c.input), &got), c.input)
		require.Equal(t, c.expect, got)
	}

	var got ProfessorRef
	require.Error(t, json.Unmarshal([]byte(`{"id": "x"}`), &got))
}

func TestPostReport(t *testing.T) {
	f := newFixture(t)

	sink := f.dispatch(t, RouteDocument, map[string]any{
		"professor": map[string]any{"name": "Maria Silva Souza", "siape": "1234567"},
		"semesters": []string{"2024.1"},
		"books": []map[string]any{
			{
				"program":   "Técnico em Informática",
				"book":      "TEC.0021 - Banco de Dados",
				"component": "Banco de Dados",
				"report":    map[string]any{"semesters": map[string]any{"2024.1": report.StatsFromBlocks(40)}},
			},
		},
	})
	require.Equal(t, []string{"queued", "processing", "completed"}, sink.statuses())

	result, ok := sink.last().Result.(DocumentResult)
	require.True(t, ok, "%+v", sink.last())
	require.Equal(t, "report_2025-03-10-14-30-05_1234567.pdf", result.Filename)
	require.Equal(t, "application/pdf", result.MimeType)

	pdf, err := base64.StdEncoding.DecodeString(result.PDFData)
	require.NoError(t, err)
	require.Equal(t, result.Size, len(pdf))
	require.True(t, strings.HasPrefix(string(pdf), "%PDF-1.4"))
	require.Contains(t, string(pdf), "Banco de Dados")

	written, err := os.ReadFile(filepath.Join(f.outDir, result.Filename))
	require.NoError(t, err)
	require.Equal(t, pdf, written)

	entries, err := f.archive.ForProfessor(context.Background(), "1234567")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, []string{"2024.1"}, entries[0].Semesters)

	// printing does not need a login
	require.Equal(t, 0, f.browser.Logins())
	require.Len(t, f.browser.Printed(), 1)
}

func TestPostReportWithoutWorkload(t *testing.T) {
	f := newFixture(t)

	sink := f.dispatch(t, RouteDocument, map[string]any{
		"professor": map[string]any{"name": "Maria Silva Souza"},
		"semesters": []string{"2023.1"},
		"books":     []map[string]any{},
	})
	require.Equal(t, "error", sink.statuses()[2])
	require.Empty(t, f.browser.Printed())
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []alert.Message
}

func (n *recordingNotifier) Alert(_ context.Context, msg alert.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

func TestFailuresAreAlerted(t *testing.T) {
	notifier := &recordingNotifier{}
	rec := telemetry.NewRecorder()
	hook := AlertHook(notifier, rec)

	hook(RouteBooks, invalid("professorId is required"))
	hook(RouteReport, errors.New("portal unavailable"))
	hook(RouteProfessors, fmt.Errorf("%w: gave up after 3 attempts", session.ErrTransport))

	require.Eventually(t, func() bool { return notifier.count() == 1 }, time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return notifier.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond, "transport failures were already escalated")
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Equal(t, alert.Failure(RouteReport, errors.New("portal unavailable")), notifier.msgs[0])
}
