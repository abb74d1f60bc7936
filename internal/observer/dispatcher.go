package observer

import (
	"context"
	"hash/fnv"
	"sync"

	"arpledger/internal/domain"
)

// job is one submission and its completion callback
type job struct {
	binding domain.Binding
	done    func(err error)
}

// submitFunc performs one ledger submission
type submitFunc func(ctx context.Context, b domain.Binding) error

// Dispatcher runs submissions on a fixed pool of workers. Jobs are
// partitioned by ip so submissions for one ip are applied in the order
// they were dispatched. With zero workers submissions run inline.
type Dispatcher struct {
	submit submitFunc
	queues []chan job
	wg     sync.WaitGroup
}

// NewDispatcher starts workers goroutines. Call Close to drain them.
func NewDispatcher(ctx context.Context, workers int, submit submitFunc) *Dispatcher {
	d := &Dispatcher{submit: submit}
	if workers <= 0 {
		return d
	}

	d.queues = make([]chan job, workers)
	for i := range d.queues {
		q := make(chan job, 32)
		d.queues[i] = q
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range q {
				j.done(d.submit(ctx, j.binding))
			}
		}()
	}
	return d
}

// Dispatch queues b on its ip's worker. It blocks when that worker's queue is
// full. done is called from the worker once the submission finishes.
func (d *Dispatcher) Dispatch(ctx context.Context, b domain.Binding, done func(err error)) {
	if len(d.queues) == 0 {
		done(d.submit(ctx, b))
		return
	}
	d.queues[partition(b.IP, len(d.queues))] <- job{binding: b, done: done}
}

// Close stops accepting work and waits for queued submissions
func (d *Dispatcher) Close() {
	for _, q := range d.queues {
		close(q)
	}
	d.wg.Wait()
}

// partition maps ip onto one of n workers
func partition(ip string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(ip))
	return int(h.Sum32() % uint32(n))
}
