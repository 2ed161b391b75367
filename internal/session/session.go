// Package session owns the single portal tab. It reconnects when the tab is
// lost and logs in again when the portal silently drops the login.
//
// Transport failures are retried with a fixed backoff, a missing
// confirmation marker is treated as an expired login and retried with a
// fresh login a fixed number of times, a failed login is terminal.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"suapreport/internal/browser"
	"suapreport/internal/components/assert"
	"suapreport/internal/components/telemetry"
	"suapreport/internal/evalbridge"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("suapreport/internal/session")

const (
	report_session_connect      = "session.connect"
	report_session_authenticate = "session.authenticate"
	report_session_navigate     = "session.navigate"
	report_session_close        = "session.close"
)

var (
	// ErrTransport is returned once the connect ceiling is exhausted. Connect
	// and Navigate report the component broken before returning it.
	ErrTransport = errors.New("browser unreachable")
	// ErrAuthorizationExpired is returned when the confirmation marker is
	// still missing after logging in again.
	ErrAuthorizationExpired = errors.New("authorization expired")
	// ErrAuthenticationFailed is returned when the login never confirms.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

type State int32

const (
	Disconnected State = iota
	Connected
	Authenticated
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Authenticated:
		return "authenticated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Event string

const EventAuthenticating Event = "authenticating"

// Notifier receives intermediate session events for the current caller.
type Notifier func(event Event)

type Credentials struct {
	Username string
	Password string
}

type LoginForm struct {
	URL              string
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string
	// ReadySelector only exists once logged in.
	ReadySelector string
}

type Options struct {
	Credentials Credentials
	Login       LoginForm

	ConnectBackoff time.Duration
	// ConnectMaxAttempts caps connection attempts, 0 retries forever.
	ConnectMaxAttempts int
	AuthTimeout        time.Duration
	ConfirmTimeout     time.Duration
	// ReauthAttempts is how many times an expired login is repaired within
	// a single navigation.
	ReauthAttempts int
	// NavigationsPerSecond paces navigations, 0 disables pacing.
	NavigationsPerSecond float64
}

// NavigationRequest is a page to load. ConfirmSelector, when set, must become
// visible for the navigation to count, its absence means the login expired.
type NavigationRequest struct {
	URL             string
	ConfirmSelector string
}

// Session must only be used by one goroutine at a time, the broker running
// its callers guarantees that.
type Session struct {
	opts      Options
	connector browser.Connector
	bridge    evalbridge.Bridge
	limiter   *rate.Limiter
	tel       telemetry.API

	state atomic.Int32
	page  browser.Page
}

func New(opts Options, connector browser.Connector, tel telemetry.API) *Session {
	assert.NotNil(connector, "connector")
	assert.NotNil(tel, "tel")

	limit := rate.Inf
	if opts.NavigationsPerSecond > 0 {
		limit = rate.Limit(opts.NavigationsPerSecond)
	}
	if opts.ReauthAttempts < 0 {
		opts.ReauthAttempts = 0
	}

	return &Session{
		opts:      opts,
		connector: connector,
		bridge:    evalbridge.New(tel),
		limiter:   rate.NewLimiter(limit, 1),
		tel:       telemetry.NewScopedAPI("session", tel),
	}
}

// State is safe to call from any goroutine.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// Connect acquires a fresh page, retrying with a fixed backoff. On success
// the session is Connected and no longer Authenticated.
func (s *Session) Connect(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session.connect")
	defer span.End()

	s.drop()

	for attempt := 1; ; attempt++ {
		page, err := s.connector.Open(ctx)
		if err == nil {
			s.page = page
			s.setState(Connected)
			span.SetAttributes(attribute.Int("attempts", attempt))
			s.tel.ReportDebug("connected", attempt)
			return nil
		}
		s.tel.ReportWarning(report_session_connect, err, attempt)

		if s.opts.ConnectMaxAttempts > 0 && attempt >= s.opts.ConnectMaxAttempts {
			err = fmt.Errorf("%w: gave up after %d attempts: %w", ErrTransport, attempt, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "connect ceiling reached")
			s.tel.ReportBroken(report_session_connect, err)
			return err
		}

		if err := s.backoff(ctx); err != nil {
			return err
		}
	}
}

func (s *Session) backoff(ctx context.Context) error {
	timer := time.NewTimer(s.opts.ConnectBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Authenticate logs in on the current page, connecting first if needed.
// Transport errors wrap ErrTransport, a login that never confirms is
// ErrAuthenticationFailed.
func (s *Session) Authenticate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session.authenticate")
	defer span.End()

	if s.page == nil {
		if err := s.Connect(ctx); err != nil {
			return err
		}
	}

	err := s.login(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		s.tel.ReportWarning(report_session_authenticate, err)
		return err
	}
	s.setState(Authenticated)
	s.tel.ReportDebug("authenticated", s.opts.Credentials.Username)
	return nil
}

func (s *Session) login(ctx context.Context) error {
	form := s.opts.Login

	if err := s.goTo(ctx, form.URL); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if err := s.page.Fill(ctx, form.UsernameSelector, s.opts.Credentials.Username); err != nil {
		return fmt.Errorf("%w: fill username: %w", ErrTransport, err)
	}
	if err := s.page.Fill(ctx, form.PasswordSelector, s.opts.Credentials.Password); err != nil {
		return fmt.Errorf("%w: fill password: %w", ErrTransport, err)
	}
	if err := s.page.Click(ctx, form.SubmitSelector); err != nil {
		return fmt.Errorf("%w: submit: %w", ErrTransport, err)
	}

	err := s.page.WaitVisible(ctx, form.ReadySelector, s.opts.AuthTimeout)
	if errors.Is(err, browser.ErrTimeout) {
		return fmt.Errorf("%w: logged-in marker %s never appeared", ErrAuthenticationFailed, form.ReadySelector)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// Navigate loads req.URL, logging in first when needed (notify receives
// EventAuthenticating). A navigation that throws reconnects and tries again,
// a confirmation marker that never shows logs in again up to
// ReauthAttempts times.
func (s *Session) Navigate(ctx context.Context, req NavigationRequest, notify Notifier) error {
	ctx, span := tracer.Start(ctx, "session.navigate")
	span.SetAttributes(attribute.String("url", req.URL))
	defer span.End()

	err := s.navigate(ctx, req, notify)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigation failed")
		s.tel.ReportWarning(report_session_navigate, err, req.URL)
	}
	return err
}

func (s *Session) navigate(ctx context.Context, req NavigationRequest, notify Notifier) error {
	if notify == nil {
		notify = func(Event) {}
	}

	expiries := 0
	transportFailures := 0
	// the first transport failure reconnects right away, repeated ones back
	// off. A navigation gives up once its failures exceed the connect ceiling.
	retryTransport := func(cause error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.tel.ReportDebug("reconnecting", req.URL, cause)
		s.drop()
		transportFailures++
		if s.opts.ConnectMaxAttempts > 0 && transportFailures > s.opts.ConnectMaxAttempts {
			err := fmt.Errorf("%w: gave up after %d failures: %w", ErrTransport, transportFailures, cause)
			s.tel.ReportBroken(report_session_navigate, err)
			return err
		}
		if transportFailures > 1 {
			return s.backoff(ctx)
		}
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.page == nil {
			if err := s.Connect(ctx); err != nil {
				return err
			}
		}

		if s.State() != Authenticated {
			notify(EventAuthenticating)
			err := s.Authenticate(ctx)
			if errors.Is(err, ErrTransport) {
				if err := retryTransport(err); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
		}

		if err := s.goTo(ctx, req.URL); err != nil {
			if err := retryTransport(err); err != nil {
				return err
			}
			continue
		}

		if req.ConfirmSelector == "" {
			return nil
		}

		err := s.page.WaitVisible(ctx, req.ConfirmSelector, s.opts.ConfirmTimeout)
		if err == nil {
			return nil
		}
		if !errors.Is(err, browser.ErrTimeout) {
			if err := retryTransport(err); err != nil {
				return err
			}
			continue
		}

		expiries++
		s.setState(Connected)
		if expiries > s.opts.ReauthAttempts {
			return fmt.Errorf("%w: %s never appeared on %s", ErrAuthorizationExpired, req.ConfirmSelector, req.URL)
		}
		s.tel.ReportDebug("login expired, authenticating again", req.URL)
	}
}

func (s *Session) goTo(ctx context.Context, url string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.page.Navigate(ctx, url)
}

// drop discards the current page, the next use reconnects.
func (s *Session) drop() {
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			s.tel.ReportWarning(report_session_close, err)
		}
	}
	s.page = nil
	s.setState(Disconnected)
}

// Evaluate runs cmd on the current page.
func (s *Session) Evaluate(ctx context.Context, cmd evalbridge.Command) (evalbridge.Result, error) {
	if s.page == nil {
		return evalbridge.Result{}, fmt.Errorf("%w: not connected", evalbridge.ErrExtraction)
	}
	return s.bridge.Evaluate(ctx, s.page, cmd)
}

// RenderPDF prints html, connecting first if needed.
func (s *Session) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	if s.page == nil {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
	}
	return s.page.PrintPDF(ctx, html)
}

// Close releases the page.
func (s *Session) Close() {
	s.drop()
}
