package alert

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"suapreport/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestTelegramRender(t *testing.T) {
	tg := NewTelegram(TelegramConfig{}, telemetry.NewRecorder())

	cases := []struct {
		name     string
		msg      Message
		text     string
		markdown bool
	}{
		{
			name: "plain lines are sent as is",
			msg:  Message{Lines: []string{"servidor v1.2", "reiniciado"}},
			text: "servidor v1.2\r\nreiniciado",
		},
		{
			name:     "fields turn on markdown",
			msg:      Failure("get_report", errors.New("timeout after 5.0s")),
			text:     "Falha ao processar requisição\r\nrota: *get_report*\r\nerro: *timeout after 5\\.0s*",
			markdown: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			text, markdown := tg.render(c.msg)
			require.Equal(t, c.text, text)
			require.Equal(t, c.markdown, markdown)
		})
	}
}

func TestTelegramAlert(t *testing.T) {
	var got url.Values
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		got = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	rec := telemetry.NewRecorder()
	tg := NewTelegram(TelegramConfig{
		Enabled: true,
		ChatID:  "-100",
		Token:   "123:abc",
		BaseURL: server.URL,
	}, rec)

	err := tg.Alert(context.Background(), Failure("post_report", errors.New("printer offline")))
	require.NoError(t, err)
	require.Equal(t, "/bot123:abc/sendMessage", path)
	require.Equal(t, "-100", got.Get("chat_id"))
	require.Equal(t, "MarkdownV2", got.Get("parse_mode"))
	require.True(t, strings.HasSuffix(got.Get("text"), "erro: *printer offline*"))
}

func TestTelegramDisabledSendsNothing(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	tg := NewTelegram(TelegramConfig{BaseURL: server.URL}, telemetry.NewRecorder())
	require.NoError(t, tg.Alert(context.Background(), Message{Lines: []string{"x"}}))
	require.False(t, called)
}

func TestTelegramErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	rec := telemetry.NewRecorder()
	tg := NewTelegram(TelegramConfig{Enabled: true, BaseURL: server.URL}, rec)
	require.Error(t, tg.Alert(context.Background(), Message{Lines: []string{"x"}}))
	require.True(t, rec.Has("warning", report_telegram_alert))
}

type failing struct{ err error }

func (f failing) Alert(context.Context, Message) error { return f.err }

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	m := Multi{Nop{}, failing{boom}, Nop{}}
	require.ErrorIs(t, m.Alert(context.Background(), Message{}), boom)
	require.NoError(t, Multi{Nop{}}.Alert(context.Background(), Message{}))
}

func TestEmailCompose(t *testing.T) {
	e := NewEmail(SmtpConfig{EmailAddress: "alertas@ifsul.edu.br", To: []string{"ti@ifsul.edu.br"}}, telemetry.NewRecorder())
	mail := e.compose(Failure("get_books", errors.New("login expired")))

	require.Equal(t, "Relatório SUAP <alertas@ifsul.edu.br>", mail.From)
	require.Equal(t, []string{"ti@ifsul.edu.br"}, mail.To)
	require.Equal(t, "Falha ao processar requisição", mail.Subject)
	require.Equal(t, "rota: get_books\nerro: login expired", string(mail.Text))

	// disabled notifiers never dial
	require.NoError(t, e.Alert(context.Background(), Message{}))
}

type captured chan Message

func (c captured) Alert(_ context.Context, msg Message) error {
	c <- msg
	return nil
}

func TestEscalateBroken(t *testing.T) {
	rec := telemetry.NewRecorder()
	sent := make(captured, 1)
	tel := Escalate(rec, sent)

	tel.ReportWarning("session.navigate", "slow")
	tel.ReportBroken("session.connect", "connection refused")
	require.True(t, rec.Has("broken", "session.connect"))
	require.True(t, rec.Has("warning", "session.navigate"))

	select {
	case msg := <-sent:
		require.Equal(t, "Componente quebrado", msg.Subject)
		require.Equal(t, []Field{
			{Key: "componente", Value: "session.connect"},
			{Key: "detalhe", Value: "connection refused"},
		}, msg.Fields)
	case <-time.After(5 * time.Second):
		t.Fatal("broken report was not escalated")
	}
}

func TestTelegramTransportErrorHidesToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := server.URL
	server.Close()

	rec := telemetry.NewRecorder()
	tg := NewTelegram(TelegramConfig{Enabled: true, Token: "123:abc", BaseURL: base}, rec)
	err := tg.Alert(context.Background(), Message{Lines: []string{"x"}})
	require.Error(t, err)
	require.NotContains(t, err.Error(), "123:abc")
	for _, r := range rec.Reports("") {
		for _, p := range r.Params {
			require.NotContains(t, fmt.Sprint(p), "123:abc")
		}
	}
}
