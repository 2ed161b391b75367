package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
)

type startedAtKey struct{}

// InstrumentResty reports the outcome of every request made by client to
// tel. Only the host is reported, paths and queries may carry credentials.
func InstrumentResty(client *resty.Client, tel API) {
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		req.SetContext(context.WithValue(req.Context(), startedAtKey{}, time.Now()))
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		req := res.Request
		if res.IsError() {
			tel.ReportWarning(
				report_resty_response,
				fmt.Errorf("unexpected status %s", res.Status()),
				req.Method,
				RequestHost(req),
				elapsed(req),
			)
			return nil
		}
		tel.ReportDebug("http response", req.Method, RequestHost(req), res.StatusCode(), elapsed(req))
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		tel.ReportWarning(report_resty_request, RedactURL(err), req.Method, RequestHost(req), elapsed(req))
	})
}

func elapsed(req *resty.Request) time.Duration {
	start, ok := req.Context().Value(startedAtKey{}).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}

// RequestHost is the host req was sent to, empty before it was built.
func RequestHost(req *resty.Request) string {
	if req.RawRequest != nil && req.RawRequest.URL != nil {
		return req.RawRequest.URL.Host
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return ""
	}
	return u.Host
}

// RedactURL drops the url a transport error carries in its message.
func RedactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
