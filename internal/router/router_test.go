package router

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"suapreport/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	statuses []Status
	onSend   func(Status)
}

func (s *recordingSink) Send(status Status) {
	s.mu.Lock()
	s.statuses = append(s.statuses, status)
	hook := s.onSend
	s.mu.Unlock()
	if hook != nil {
		hook(status)
	}
}

func (s *recordingSink) snapshot() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Status{}, s.statuses...)
}

type step struct {
	status   string
	position int
	err      bool
}

func steps(statuses []Status) []step {
	out := []step{}
	for _, s := range statuses {
		st := step{status: s.Status, position: -1, err: s.Error != ""}
		if s.Position != nil {
			st.position = *s.Position
		}
		out = append(out, st)
	}
	return out
}

func TestSecondRequestSeesItsPositionDrop(t *testing.T) {
	r := New(context.Background(), telemetry.NewRecorder())

	release := make(chan struct{})
	r.Register("get_books", func(ctx context.Context, payload json.RawMessage, reply Sink) (any, error) {
		<-release
		return []string{"book"}, nil
	})
	r.Register("get_professors", func(ctx context.Context, payload json.RawMessage, reply Sink) (any, error) {
		return []string{"Maria Souza"}, nil
	})

	processing := make(chan struct{})
	a := &recordingSink{onSend: func(s Status) {
		if s.Status == StatusProcessing {
			close(processing)
		}
	}}
	require.NoError(t, r.Dispatch("get_books", nil, a))
	<-processing

	b := &recordingSink{}
	c := &recordingSink{}
	require.NoError(t, r.Dispatch("get_professors", json.RawMessage(`{"query":"Silva"}`), b))
	require.NoError(t, r.Dispatch("get_professors", nil, c))

	require.Equal(t, []step{{status: StatusQueued, position: 2}}, steps(b.snapshot()))
	require.Equal(t, []step{{status: StatusQueued, position: 3}}, steps(c.snapshot()))

	close(release)
	r.Wait()

	require.Equal(t, []step{
		{status: StatusQueued, position: 2},
		{status: StatusQueued, position: 1},
		{status: StatusProcessing, position: 0},
		{status: StatusCompleted, position: -1},
	}, steps(b.snapshot()))
	require.Equal(t, []string{"Maria Souza"}, b.snapshot()[3].Result)

	require.Equal(t, []step{
		{status: StatusQueued, position: 3},
		{status: StatusQueued, position: 2},
		{status: StatusQueued, position: 1},
		{status: StatusProcessing, position: 0},
		{status: StatusCompleted, position: -1},
	}, steps(c.snapshot()))

	require.Equal(t, StatusCompleted, a.snapshot()[len(a.snapshot())-1].Status)
}

func TestIdleRouterReportsPositionZero(t *testing.T) {
	r := New(context.Background(), telemetry.NewRecorder())
	r.Register("get_professors", func(ctx context.Context, payload json.RawMessage, reply Sink) (any, error) {
		return nil, nil
	})

	sink := &recordingSink{}
	require.NoError(t, r.Dispatch("get_professors", nil, sink))
	r.Wait()

	got := steps(sink.snapshot())
	require.Equal(t, step{status: StatusQueued, position: 0}, got[0])
	require.Equal(t, StatusCompleted, got[len(got)-1].status)
}

func TestHandlerFailureBecomesErrorStatus(t *testing.T) {
	rec := telemetry.NewRecorder()

	var hookMu sync.Mutex
	var failedRoutes []string
	r := New(context.Background(), rec, WithFailureHook(func(route string, err error) {
		hookMu.Lock()
		failedRoutes = append(failedRoutes, route)
		hookMu.Unlock()
	}))

	r.Register("get_report", func(ctx context.Context, payload json.RawMessage, reply Sink) (any, error) {
		return nil, errors.New("portal unavailable")
	})
	r.Register("post_report", func(ctx context.Context, payload json.RawMessage, reply Sink) (any, error) {
		panic("no page")
	})
	r.Register("get_professors", func(ctx context.Context, payload json.RawMessage, reply Sink) (any, error) {
		return "ok", nil
	})

	failing := &recordingSink{}
	panicking := &recordingSink{}
	after := &recordingSink{}
	require.NoError(t, r.Dispatch("get_report", nil, failing))
	require.NoError(t, r.Dispatch("post_report", nil, panicking))
	require.NoError(t, r.Dispatch("get_professors", nil, after))
	r.Wait()

	last := failing.snapshot()[len(failing.snapshot())-1]
	require.Equal(t, "portal unavailable", last.Error)
	require.Empty(t, last.Status)

	last = panicking.snapshot()[len(panicking.snapshot())-1]
	require.Contains(t, last.Error, "no page")

	last = after.snapshot()[len(after.snapshot())-1]
	require.Equal(t, StatusCompleted, last.Status)
	require.Equal(t, "ok", last.Result)

	require.Equal(t, []string{"get_report", "post_report"}, failedRoutes)
	require.True(t, rec.Has("warning", report_router_handler))
}

func TestIntermediateStatusesStayOrdered(t *testing.T) {
	r := New(context.Background(), telemetry.NewRecorder())
	r.Register("get_report", func(ctx context.Context, payload json.RawMessage, reply Sink) (any, error) {
		reply.Send(Authenticating())
		for i := 0; i < 3; i++ {
			reply.Send(Fetched(i))
		}
		return "done", nil
	})

	sink := &recordingSink{}
	require.NoError(t, r.Dispatch("get_report", nil, sink))
	r.Wait()

	got := []string{}
	for _, s := range sink.snapshot() {
		got = append(got, s.Status)
	}
	require.Equal(t, []string{
		StatusQueued,
		StatusProcessing,
		StatusAuthenticating,
		StatusFetched,
		StatusFetched,
		StatusFetched,
		StatusCompleted,
	}, got)
}

func TestUnknownRoute(t *testing.T) {
	r := New(context.Background(), telemetry.NewRecorder())

	sink := &recordingSink{}
	err := r.Dispatch("delete_everything", nil, sink)
	require.ErrorIs(t, err, ErrUnknownRoute)

	got := sink.snapshot()
	require.Len(t, got, 1)
	require.Contains(t, got[0].Error, "delete_everything")
}

func TestDecode(t *testing.T) {
	type payload struct {
		Siape string `json:"siape"`
	}

	out, err := Decode[payload](json.RawMessage(`{"siape":"1234567"}`))
	require.NoError(t, err)
	require.Equal(t, "1234567", out.Siape)

	out, err = Decode[payload](nil)
	require.NoError(t, err)
	require.Empty(t, out.Siape)

	_, err = Decode[payload](json.RawMessage(`{"siape":`))
	require.Error(t, err)
}
