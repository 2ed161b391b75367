// Package broker serializes jobs onto a single worker. At most one job is in
// flight at any time, jobs run strictly in enqueue order and callers can
// observe their position while they wait.
package broker

import (
	"context"
	"fmt"
	"sync"

	"suapreport/internal/components/assert"
	"suapreport/internal/components/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("suapreport/internal/broker")

const (
	report_broker_job        = "broker.job"
	report_broker_queue_size = "broker.queue-size"
)

type Status int

const (
	StatusQueued Status = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Handler runs a job's operation logic against its payload.
type Handler[P any] func(ctx context.Context, payload P) error

// Job is one enqueued unit of work. It is owned by the broker while it
// waits and handed to its handler once dequeued.
type Job[P any] struct {
	ID      string
	Payload P
	Handler Handler[P]
	Status  Status
}

type observer struct {
	jobID  string
	notify func(position int)
}

type notification struct {
	notify   func(position int)
	position int
}

// Broker is a FIFO queue that guarantees one job in flight.
type Broker[P any] struct {
	ctx context.Context
	tel telemetry.API

	mu        sync.Mutex
	queue     []*Job[P]
	inflight  *Job[P]
	draining  bool
	observers []observer
	idle      *sync.Cond
}

// New creates a broker. Jobs run with ctx, a caller going away never cancels
// its job.
func New[P any](ctx context.Context, tel telemetry.API) *Broker[P] {
	assert.NotNil(ctx, "ctx")
	assert.NotNil(tel, "tel")

	b := &Broker[P]{
		ctx: ctx,
		tel: telemetry.NewScopedAPI("broker", tel),
	}
	b.idle = sync.NewCond(&b.mu)
	return b
}

// Enqueue appends a job and starts draining if the broker is idle. It never
// rejects, the queue is unbounded.
func (b *Broker[P]) Enqueue(payload P, handler Handler[P]) string {
	assert.NotNil(handler, "handler")

	job := &Job[P]{
		ID:      uuid.NewString(),
		Payload: payload,
		Handler: handler,
		Status:  StatusQueued,
	}

	b.mu.Lock()
	b.queue = append(b.queue, job)
	var first *Job[P]
	if !b.draining {
		b.draining = true
		first = b.popLocked()
	}
	size := len(b.queue)
	b.mu.Unlock()

	b.tel.ReportCount(report_broker_queue_size, int64(size))

	if first != nil {
		go b.drain(first)
	}
	return job.ID
}

// Position returns the 1-based distance of the job from the front of the
// still-queued jobs. ok is false once the job is no longer waiting.
func (b *Broker[P]) Position(jobID string) (position int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.positionLocked(jobID)
}

// Observe registers notify to be called with the job's new position every
// time the queue shrinks. The observer is dropped once the job leaves the
// queue, it is not called for that transition.
func (b *Broker[P]) Observe(jobID string, notify func(position int)) {
	assert.NotNil(notify, "notify")

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.positionLocked(jobID); !ok {
		return
	}
	b.observers = append(b.observers, observer{jobID: jobID, notify: notify})
}

// Len returns the number of jobs waiting, the in-flight job excluded.
func (b *Broker[P]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Busy reports whether a job is in flight.
func (b *Broker[P]) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inflight != nil
}

// Wait blocks until nothing is queued or in flight.
func (b *Broker[P]) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.draining {
		b.idle.Wait()
	}
}

func (b *Broker[P]) positionLocked(jobID string) (int, bool) {
	for i, job := range b.queue {
		if job.ID == jobID {
			return i + 1, true
		}
	}
	return 0, false
}

func (b *Broker[P]) popLocked() *Job[P] {
	if len(b.queue) == 0 {
		return nil
	}
	job := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	job.Status = StatusProcessing
	b.inflight = job
	return job
}

// settleLocked marks the in-flight job terminal and collects the positions
// of every job still being observed.
func (b *Broker[P]) settleLocked(job *Job[P], err error) []notification {
	if err != nil {
		job.Status = StatusFailed
	} else {
		job.Status = StatusCompleted
	}
	b.inflight = nil

	pending := []notification{}
	kept := b.observers[:0]
	for _, o := range b.observers {
		position, ok := b.positionLocked(o.jobID)
		if !ok {
			continue
		}
		kept = append(kept, o)
		pending = append(pending, notification{notify: o.notify, position: position})
	}
	for i := len(kept); i < len(b.observers); i++ {
		b.observers[i] = observer{}
	}
	b.observers = kept
	return pending
}

func (b *Broker[P]) drain(job *Job[P]) {
	for job != nil {
		err := b.execute(job)

		b.mu.Lock()
		pending := b.settleLocked(job, err)
		b.mu.Unlock()

		for _, n := range pending {
			n.notify(n.position)
		}

		b.mu.Lock()
		job = b.popLocked()
		if job == nil {
			b.draining = false
			b.idle.Broadcast()
		}
		size := len(b.queue)
		b.mu.Unlock()

		b.tel.ReportCount(report_broker_queue_size, int64(size))
	}
}

func (b *Broker[P]) execute(job *Job[P]) (err error) {
	ctx, span := tracer.Start(b.ctx, "broker.job")
	span.SetAttributes(attribute.String("job.id", job.ID))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "job failed")
			b.tel.ReportBroken(report_broker_job, err, job.ID)
		}
	}()

	return job.Handler(ctx, job.Payload)
}
