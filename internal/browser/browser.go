// Package browser is the page automation capability the session drives.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrTimeout is returned when a bounded wait elapses.
var ErrTimeout = errors.New("timed out waiting for selector")

// Page is a single remote tab.
//
// note: fault injection point
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// WaitVisible waits up to timeout for selector to be visible, it returns
	// ErrTimeout when it never is.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Fill sets the value of the input matching selector.
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	// Eval calls the function expression script with arg in the document and
	// returns its result by value.
	Eval(ctx context.Context, script string, arg any) (json.RawMessage, error)
	// PrintPDF renders html in a scratch tab and prints it.
	PrintPDF(ctx context.Context, html string) ([]byte, error)
	Close() error
}

// Connector acquires pages from the browsing engine.
type Connector interface {
	Open(ctx context.Context) (Page, error)
}

type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
