package broker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"suapreport/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

type gate struct {
	started chan struct{}
	release chan struct{}
}

func newGate() gate {
	return gate{started: make(chan struct{}), release: make(chan struct{})}
}

func (g gate) handler(ctx context.Context, _ int) error {
	close(g.started)
	<-g.release
	return nil
}

func TestJobsRunInOrderWithoutOverlap(t *testing.T) {
	b := New[int](context.Background(), telemetry.NewRecorder())

	var (
		mu       sync.Mutex
		order    []int
		inflight int32
		overlaps int32
	)
	handler := func(ctx context.Context, n int) error {
		if atomic.AddInt32(&inflight, 1) > 1 {
			atomic.AddInt32(&overlaps, 1)
		}
		defer atomic.AddInt32(&inflight, -1)

		mu.Lock()
		order = append(order, n)
		mu.Unlock()
		return nil
	}

	const total = 64
	for i := 0; i < total; i++ {
		b.Enqueue(i, handler)
	}
	b.Wait()

	require.Zero(t, atomic.LoadInt32(&overlaps))
	require.Len(t, order, total)
	for i, n := range order {
		require.Equal(t, i, n)
	}
	require.False(t, b.Busy())
	require.Zero(t, b.Len())
}

func TestPositionDecreasesAsJobsAheadComplete(t *testing.T) {
	b := New[int](context.Background(), telemetry.NewRecorder())

	g0, gA, gB, gC := newGate(), newGate(), newGate(), newGate()
	id0 := b.Enqueue(0, g0.handler)
	<-g0.started

	_, ok := b.Position(id0)
	require.False(t, ok, "in-flight job is no longer queued")

	b.Enqueue(1, gA.handler)
	b.Enqueue(2, gB.handler)
	idC := b.Enqueue(3, gC.handler)

	position, ok := b.Position(idC)
	require.True(t, ok)
	require.Equal(t, 3, position)

	var (
		mu       sync.Mutex
		notified []int
	)
	b.Observe(idC, func(position int) {
		mu.Lock()
		notified = append(notified, position)
		mu.Unlock()
	})
	snapshot := func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int{}, notified...)
	}

	close(g0.release)
	<-gA.started
	position, ok = b.Position(idC)
	require.True(t, ok)
	require.Equal(t, 2, position)
	require.Equal(t, []int{3}, snapshot())

	close(gA.release)
	<-gB.started
	position, ok = b.Position(idC)
	require.True(t, ok)
	require.Equal(t, 1, position)
	require.Equal(t, []int{3, 2}, snapshot())

	close(gB.release)
	<-gC.started
	_, ok = b.Position(idC)
	require.False(t, ok, "position is absent once the job is processing")
	require.Equal(t, []int{3, 2, 1}, snapshot())

	close(gC.release)
	b.Wait()
	require.Equal(t, []int{3, 2, 1}, snapshot(), "observer is dropped once its job leaves the queue")
}

func TestFailingJobsDoNotStopDraining(t *testing.T) {
	rec := telemetry.NewRecorder()
	b := New[string](context.Background(), rec)

	var ran []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		ran = append(ran, name)
		mu.Unlock()
	}

	b.Enqueue("fails", func(ctx context.Context, p string) error {
		record(p)
		return errors.New("portal exploded")
	})
	b.Enqueue("panics", func(ctx context.Context, p string) error {
		record(p)
		panic("nil page")
	})
	b.Enqueue("succeeds", func(ctx context.Context, p string) error {
		record(p)
		return nil
	})
	b.Wait()

	require.Equal(t, []string{"fails", "panics", "succeeds"}, ran)
	require.Len(t, rec.Reports("broken"), 2)
	require.True(t, rec.Has("broken", "broker.job"))
}

func TestObserveIgnoresJobsThatAreNotQueued(t *testing.T) {
	b := New[int](context.Background(), telemetry.NewRecorder())

	g := newGate()
	id := b.Enqueue(0, g.handler)
	<-g.started

	called := false
	b.Observe(id, func(int) { called = true })
	b.Observe("unknown", func(int) { called = true })

	close(g.release)
	b.Wait()
	require.False(t, called)
}
