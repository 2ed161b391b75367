package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"suapreport/internal/components/telemetry"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	report_rod_connect = "rod.connect"
	report_rod_close   = "rod.close"
)

// RodConnector opens tabs on a remote Chrome reachable through its devtools
// endpoint.
type RodConnector struct {
	// ControlURL is either the http debugging endpoint (http://chrome:3000)
	// or a resolved websocket url.
	ControlURL string
	Viewport   Viewport

	tel telemetry.API

	mu      sync.Mutex
	browser *rod.Browser
}

func NewRodConnector(controlURL string, viewport Viewport, tel telemetry.API) *RodConnector {
	return &RodConnector{
		ControlURL: controlURL,
		Viewport:   viewport,
		tel:        telemetry.NewScopedAPI("browser", tel),
	}
}

func (c *RodConnector) connect() (*rod.Browser, error) {
	if c.browser != nil {
		return c.browser, nil
	}

	u := c.ControlURL
	if u == "" {
		return nil, errors.New("no control url configured")
	}
	resolved, err := launcher.ResolveURL(u)
	if err != nil {
		return nil, fmt.Errorf("resolve control url %s: %w", u, err)
	}

	b := rod.New().ControlURL(resolved)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	c.browser = b
	return c.browser, nil
}

func (c *RodConnector) Open(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := c.connect()
	if err != nil {
		c.tel.ReportWarning(report_rod_connect, err, c.ControlURL)
		return nil, err
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		// the connection is probably gone, drop it so the next attempt dials again.
		c.browser = nil
		c.tel.ReportWarning(report_rod_connect, err, c.ControlURL)
		return nil, fmt.Errorf("create target: %w", err)
	}

	if c.Viewport.Width > 0 && c.Viewport.Height > 0 {
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  c.Viewport.Width,
			Height: c.Viewport.Height,
		})
		if err != nil {
			c.tel.ReportWarning(report_rod_connect, fmt.Errorf("set viewport: %w", err))
		}
	}

	c.tel.ReportDebug("opened page", c.ControlURL)
	return rodPage{page: page, tel: c.tel}, nil
}

type rodPage struct {
	page *rod.Page
	tel  telemetry.API
}

func (p rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p rodPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	page := p.page.Context(ctx).Timeout(timeout)
	el, err := page.Element(selector)
	if err == nil {
		err = el.WaitVisible()
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %s", ErrTimeout, selector)
	}
	return err
}

func (p rodPage) Fill(ctx context.Context, selector, value string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	_, err = el.Eval(`function (v) { this.value = v }`, value)
	return err
}

func (p rodPage) Click(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p rodPage) Eval(ctx context.Context, script string, arg any) (json.RawMessage, error) {
	if raw, ok := arg.(json.RawMessage); ok {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, err
		}
		arg = decoded
	}

	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           script,
		JSArgs:       []any{arg},
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(res.Value.JSON("", "")), nil
}

func (p rodPage) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	scratch, err := p.page.Browser().Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := scratch.Close(); err != nil {
			p.tel.ReportWarning(report_rod_close, err)
		}
	}()

	scratch = scratch.Context(ctx)
	if err := scratch.SetDocumentContent(html); err != nil {
		return nil, err
	}
	if err := scratch.WaitLoad(); err != nil {
		return nil, err
	}

	stream, err := scratch.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, err
	}
	return io.ReadAll(stream)
}

func (p rodPage) Close() error {
	return p.page.Close()
}
