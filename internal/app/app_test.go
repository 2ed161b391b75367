package app

import (
	"context"
	"path/filepath"
	"testing"

	"suapreport/internal/components/telemetry"
	"suapreport/internal/config"
	"suapreport/internal/service"
	"suapreport/internal/session"

	"github.com/stretchr/testify/require"
)

func TestNewWiresEveryRoute(t *testing.T) {
	cfg := config.Defaults()
	cfg.Portal.Username = "servidor"
	cfg.Portal.Password = "secret"
	cfg.Report.Archive.File = filepath.Join(t.TempDir(), "archive.db")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := New(ctx, cfg, telemetry.NewRecorder())
	require.NoError(t, err)
	defer a.Close()

	// nothing is dialed until the first navigation
	require.Equal(t, session.Disconnected, a.Session.State())

	r := a.Router(ctx)
	require.ElementsMatch(t, []string{
		service.RouteProfessors,
		service.RouteBooks,
		service.RouteReport,
		service.RouteDocument,
	}, r.Routes())

	entries, err := a.Archive.List(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestNewFailsWithoutArchive(t *testing.T) {
	cfg := config.Defaults()
	cfg.Report.Archive.File = ""

	_, err := New(context.Background(), cfg, telemetry.NewRecorder())
	require.Error(t, err)
}
