// Package app assembles the components both executables run on: the
// browser session, the portal scraper, the document archive and the
// service operations.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"suapreport/internal/alert"
	"suapreport/internal/archive"
	"suapreport/internal/browser"
	"suapreport/internal/components/telemetry"
	"suapreport/internal/config"
	"suapreport/internal/router"
	"suapreport/internal/scrapers/suap"
	"suapreport/internal/service"
	"suapreport/internal/session"
)

type App struct {
	Config  config.Config
	Session *session.Session
	Scraper *suap.Scraper
	Archive archive.Store
	Service *service.Service
	Alerts  alert.Notifier

	db  *sql.DB
	tel telemetry.API
}

// Alerts builds the notifiers enabled in cfg. Disabled notifiers drop
// their messages.
func Alerts(cfg config.AlertsConfig, tel telemetry.API) alert.Notifier {
	return alert.Multi{
		alert.NewTelegram(cfg.Telegram, tel),
		alert.NewEmail(cfg.Email, tel),
	}
}

// New connects nothing yet, the session dials the browser on first use.
func New(ctx context.Context, cfg config.Config, tel telemetry.API) (*App, error) {
	notifier := Alerts(cfg.Alerts, tel)
	tel = alert.Escalate(tel, notifier)

	database, err := cfg.Report.Archive.OpenDB()
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := archive.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	store := archive.NewStore(database, tel)

	connector := browser.NewRodConnector(cfg.Browser.ControlURL, cfg.Viewport(), tel)
	sess := session.New(cfg.SessionOptions(), connector, tel)
	scraper := suap.New(sess, cfg.ScraperOptions(), tel)

	svc, err := service.New(sess, scraper, service.Options{
		OutputDir: cfg.Report.OutputDir,
		City:      cfg.Report.City,
		Signatory: cfg.Report.Signatory,
	}, tel, service.WithArchive(store))
	if err != nil {
		database.Close()
		return nil, err
	}

	return &App{
		Config:  cfg,
		Session: sess,
		Scraper: scraper,
		Archive: store,
		Service: svc,
		Alerts:  notifier,
		db:      database,
		tel:     tel,
	}, nil
}

// Router returns a router serving every operation, failures are alerted.
func (a *App) Router(ctx context.Context) *router.Router {
	r := router.New(ctx, a.tel, router.WithFailureHook(service.AlertHook(a.Alerts, a.tel)))
	a.Service.Register(r)
	return r
}

func (a *App) Close() {
	a.Session.Close()
	a.db.Close()
}
