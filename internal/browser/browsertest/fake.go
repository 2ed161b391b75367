// Package browsertest serves HTML fixtures through the browser.Page port.
// Commands sent through Eval are interpreted by evalbridge.LocalDispatcher,
// so extractors run unchanged against fixtures.
package browsertest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"suapreport/internal/browser"
	"suapreport/internal/evalbridge"

	"github.com/PuerkitoBio/goquery"
)

var ErrTransport = errors.New("browsertest: target closed")

// Login describes the fixture login form.
type Login struct {
	URL              string
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string
	Username         string
	Password         string
	// Page is rendered at URL, Home is rendered after a successful submit.
	Page string
	Home string
}

// Browser is an in-memory browser.Connector. Pages behind the login only
// render their fixture while the browser is authenticated, otherwise they
// render the login page.
type Browser struct {
	mu sync.Mutex

	login    Login
	pages    map[string]string
	loggedIn bool

	openFailures     int
	navigateFailures int
	expirations      int

	opened      int
	logins      int
	navigations []string
	pdfs        []string
}

func New(login Login) *Browser {
	return &Browser{login: login, pages: map[string]string{}}
}

// Handle serves html at url.
func (b *Browser) Handle(url, html string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[url] = html
}

// FailOpens makes the next n Open calls fail.
func (b *Browser) FailOpens(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openFailures = n
}

// FailNavigations makes the next n navigations throw.
func (b *Browser) FailNavigations(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.navigateFailures = n
}

// Expire logs the browser out before each of the next n navigations to a
// protected page.
func (b *Browser) Expire(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expirations = n
}

func (b *Browser) Opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

func (b *Browser) Logins() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logins
}

func (b *Browser) Navigations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.navigations...)
}

// Printed returns every html document printed to PDF.
func (b *Browser) Printed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.pdfs...)
}

func (b *Browser) Open(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openFailures > 0 {
		b.openFailures--
		return nil, fmt.Errorf("%w: connection refused", ErrTransport)
	}
	b.opened++
	return &Page{browser: b, fields: map[string]string{}}, nil
}

// Page is a single fixture tab.
type Page struct {
	browser *Browser

	mu     sync.Mutex
	url    string
	html   string
	fields map[string]string
	closed bool
}

func (p *Page) document() (*goquery.Document, error) {
	p.mu.Lock()
	html := p.html
	p.mu.Unlock()
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b := p.browser
	b.mu.Lock()
	b.navigations = append(b.navigations, url)
	if b.navigateFailures > 0 {
		b.navigateFailures--
		b.mu.Unlock()
		return fmt.Errorf("%w: navigating to %s", ErrTransport, url)
	}

	var html string
	switch {
	case url == b.login.URL:
		html = b.login.Page
	default:
		if b.expirations > 0 {
			b.expirations--
			b.loggedIn = false
		}
		if b.loggedIn {
			html = b.pages[url]
		} else {
			html = b.login.Page
		}
	}
	b.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("%w: page closed", ErrTransport)
	}
	p.url = url
	p.html = html
	return nil
}

func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	doc, err := p.document()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", browser.ErrTimeout, selector)
	}
	return nil
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	doc, err := p.document()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("no element matches %s", selector)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fields[selector] = value
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	doc, err := p.document()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("no element matches %s", selector)
	}

	b := p.browser
	if selector != b.login.SubmitSelector {
		return nil
	}

	p.mu.Lock()
	user := p.fields[b.login.UsernameSelector]
	pass := p.fields[b.login.PasswordSelector]
	p.mu.Unlock()

	b.mu.Lock()
	ok := user == b.login.Username && pass == b.login.Password
	if ok {
		b.loggedIn = true
		b.logins++
	}
	home := b.login.Home
	b.mu.Unlock()

	if ok {
		p.mu.Lock()
		p.html = home
		p.mu.Unlock()
	}
	return nil
}

func (p *Page) Eval(ctx context.Context, script string, arg any) (json.RawMessage, error) {
	p.mu.Lock()
	html, url := p.html, p.url
	p.mu.Unlock()

	d, err := evalbridge.NewLocalDispatcher([]byte(html), url)
	if err != nil {
		return nil, err
	}
	return d.Eval(ctx, script, arg)
}

func (p *Page) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	b := p.browser
	b.mu.Lock()
	b.pdfs = append(b.pdfs, html)
	b.mu.Unlock()
	return []byte("%PDF-1.4\n" + html), nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
