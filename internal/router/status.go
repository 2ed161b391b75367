package router

import "sync"

const (
	StatusQueued         = "queued"
	StatusProcessing     = "processing"
	StatusAuthenticating = "authenticating"
	StatusFetched        = "fetched"
	StatusCompleted      = "completed"
)

// Status is one message of a request's lifecycle.
type Status struct {
	Status   string `json:"status,omitempty"`
	Position *int   `json:"position,omitempty"`
	Result   any    `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

func Queued(position int) Status {
	return Status{Status: StatusQueued, Position: &position}
}

func Processing() Status {
	zero := 0
	return Status{Status: StatusProcessing, Position: &zero}
}

func Authenticating() Status {
	return Status{Status: StatusAuthenticating}
}

func Fetched(item any) Status {
	return Status{Status: StatusFetched, Result: item}
}

func Completed(result any) Status {
	return Status{Status: StatusCompleted, Result: result}
}

func Failed(err error) Status {
	msg := "an error occurred"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Status{Error: msg}
}

// Sink receives the statuses of one request. It is provided by the
// transport, delivery guarantees are its own business.
type Sink interface {
	Send(status Status)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(status Status)

func (f SinkFunc) Send(status Status) {
	f(status)
}

// Discard drops every status.
var Discard Sink = SinkFunc(func(Status) {})

// jobSink serializes every status of a single request.
type jobSink struct {
	mu   sync.Mutex
	sink Sink
}

func (s *jobSink) Send(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendLocked(status)
}

func (s *jobSink) sendLocked(status Status) {
	s.sink.Send(status)
}
