// Package router binds named operations to the broker and streams each
// request's lifecycle back to its caller.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"suapreport/internal/broker"
	"suapreport/internal/components/assert"
	"suapreport/internal/components/telemetry"
)

const (
	report_router_dispatch = "router.dispatch"
	report_router_handler  = "router.handler"
)

var ErrUnknownRoute = errors.New("unknown route")

// Handler runs an operation. Intermediate statuses go through reply, the
// returned value is sent as the terminal status.
type Handler func(ctx context.Context, payload json.RawMessage, reply Sink) (any, error)

// FailureHook is called with every terminal handler failure.
type FailureHook func(route string, err error)

type request struct {
	route   string
	payload json.RawMessage
	handler Handler
	sink    *jobSink
}

type Router struct {
	broker    *broker.Broker[request]
	tel       telemetry.API
	onFailure FailureHook

	mu       sync.RWMutex
	handlers map[string]Handler
}

type Option func(r *Router)

func WithFailureHook(hook FailureHook) Option {
	return func(r *Router) {
		r.onFailure = hook
	}
}

// New creates a router with its own broker, jobs run with ctx.
func New(ctx context.Context, tel telemetry.API, options ...Option) *Router {
	assert.NotNil(tel, "tel")

	r := &Router{
		broker:   broker.New[request](ctx, tel),
		tel:      telemetry.NewScopedAPI("router", tel),
		handlers: map[string]Handler{},
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Register binds handler to route, replacing any previous binding.
func (r *Router) Register(route string, handler Handler) {
	assert.NotEmptyStr(route, "route")
	assert.NotNil(handler, "handler")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[route] = handler
}

// Routes lists registered route names.
func (r *Router) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	return out
}

// Dispatch enqueues a request for route. Before returning it has already
// sent the caller a "queued" status carrying its place in line, 0 meaning the
// request is about to run.
func (r *Router) Dispatch(route string, payload json.RawMessage, sink Sink) error {
	assert.NotNil(sink, "sink")

	r.mu.RLock()
	handler, ok := r.handlers[route]
	r.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownRoute, route)
		r.tel.ReportWarning(report_router_dispatch, err)
		sink.Send(Status{Error: err.Error()})
		return err
	}

	js := &jobSink{sink: sink}

	// holding the job sink until "queued" is out keeps position updates and
	// "processing" behind it.
	js.mu.Lock()
	id := r.broker.Enqueue(request{
		route:   route,
		payload: payload,
		handler: handler,
		sink:    js,
	}, r.run)
	r.broker.Observe(id, func(position int) {
		js.Send(Queued(position))
	})
	position := 0
	if p, ok := r.broker.Position(id); ok {
		position = p + 1
	}
	js.sendLocked(Queued(position))
	js.mu.Unlock()

	r.tel.ReportDebug("dispatched", route, id, position)
	return nil
}

// Queued returns the number of requests waiting behind the in-flight one.
func (r *Router) Queued() int {
	return r.broker.Len()
}

// Busy reports whether a request is being processed.
func (r *Router) Busy() bool {
	return r.broker.Busy()
}

// Wait blocks until every dispatched request settled.
func (r *Router) Wait() {
	r.broker.Wait()
}

func (r *Router) run(ctx context.Context, req request) error {
	req.sink.Send(Processing())

	result, err := r.invoke(ctx, req)
	if err != nil {
		r.tel.ReportWarning(report_router_handler, err, req.route)
		if r.onFailure != nil {
			r.onFailure(req.route, err)
		}
		req.sink.Send(Failed(err))
		return nil
	}

	req.sink.Send(Completed(result))
	return nil
}

func (r *Router) invoke(ctx context.Context, req request) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s: handler panicked: %v", req.route, rec)
		}
	}()
	return req.handler(ctx, req.payload, req.sink)
}

// Decode unmarshals a request payload into T.
func Decode[T any](payload json.RawMessage) (T, error) {
	var out T
	if len(payload) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}
